package ensemble

import "fmt"

// SourceState is the serializable snapshot of one source's feedback window
// and derived stats.
type SourceState struct {
	Name        string    `json:"name"`
	Predictions []float64 `json:"predictions"`
	Outcomes    []float64 `json:"outcomes"`
	Weight      float64   `json:"weight"`
	RawFit      float64   `json:"raw_fit"`
	FitHistory  []float64 `json:"fit_history"`
	Declines    int       `json:"declines"`
	Status      Status    `json:"status"`
}

// State is the full serializable ensemble snapshot. Restoring it must
// reproduce subsequent decisions exactly, so every field that feeds weight
// or drift computation is included.
type State struct {
	Updates int           `json:"updates"`
	Sources []SourceState `json:"sources"`
}

// Export snapshots the ensemble in deterministic (sorted) source order.
func (e *Ensemble) Export() State {
	st := State{Updates: e.updates, Sources: make([]SourceState, 0, len(e.names))}
	for _, name := range e.names {
		src := e.sources[name]
		st.Sources = append(st.Sources, SourceState{
			Name:        name,
			Predictions: append([]float64(nil), src.preds...),
			Outcomes:    append([]float64(nil), src.outcomes...),
			Weight:      src.weight,
			RawFit:      src.rawFit,
			FitHistory:  append([]float64(nil), src.fitHistory...),
			Declines:    src.declines,
			Status:      src.status,
		})
	}
	return st
}

// Restore replaces the ensemble's internal state with a snapshot. Every
// source in the snapshot must be registered; unknown names are an error so
// a configuration change is caught instead of silently dropped.
func (e *Ensemble) Restore(st State) error {
	for _, ss := range st.Sources {
		if _, ok := e.sources[ss.Name]; !ok {
			return fmt.Errorf("ensemble: snapshot references unknown source %q", ss.Name)
		}
	}
	e.updates = st.Updates
	for _, ss := range st.Sources {
		src := e.sources[ss.Name]
		src.preds = append([]float64(nil), ss.Predictions...)
		src.outcomes = append([]float64(nil), ss.Outcomes...)
		src.weight = ss.Weight
		src.rawFit = ss.RawFit
		src.fit = ss.RawFit
		if src.fit < 0 {
			src.fit = 0
		}
		src.fitHistory = append([]float64(nil), ss.FitHistory...)
		src.declines = ss.Declines
		if ss.Status != "" {
			src.status = ss.Status
		}
	}
	return nil
}

// SourceHealth is a point-in-time view of one source for reporting.
type SourceHealth struct {
	Name     string
	Weight   float64
	Fit      float64
	Status   Status
	Declines int
	Window   int
}

// Health reports every source's current standing, sorted by name.
func (e *Ensemble) Health() []SourceHealth {
	out := make([]SourceHealth, 0, len(e.names))
	for _, name := range e.names {
		src := e.sources[name]
		out = append(out, SourceHealth{
			Name:     name,
			Weight:   src.weight,
			Fit:      src.rawFit,
			Status:   src.status,
			Declines: src.declines,
			Window:   len(src.outcomes),
		})
	}
	return out
}
