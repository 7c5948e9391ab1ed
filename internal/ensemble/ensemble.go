package ensemble

import (
	"fmt"
	"math"
	"sort"

	"github.com/quantara/ensemble-trader/internal/signal"
)

// Status describes a source's recent predictive health.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusDrifted    Status = "DRIFTED"
	StatusStruggling Status = "STRUGGLING"
)

// Config tunes the adaptive weighting.
type Config struct {
	WindowSize  int     // rolling (prediction, outcome) pairs per source
	Alpha       float64 // EMA smoothing factor for weight changes
	WeightFloor float64 // minimum weight so struggling sources can recover
	Temperature float64 // softmax temperature on fit scores
	DriftStreak int     // consecutive declining fits before DRIFTED
	DriftFloor  float64 // raw fit below this is DRIFTED outright
	HealthyFit  float64 // fit at or above this is ACTIVE
	MinUpdates  int     // observations before weights move off equal
}

func DefaultConfig() Config {
	return Config{
		WindowSize:  50,
		Alpha:       0.3,
		WeightFloor: 0.01,
		Temperature: 2.0,
		DriftStreak: 5,
		DriftFloor:  0.0,
		HealthyFit:  0.5,
		MinUpdates:  10,
	}
}

const fitHistoryCap = 20

type source struct {
	preds      []float64
	outcomes   []float64
	weight     float64
	rawFit     float64
	fit        float64 // rawFit floored at zero, used for weighting
	fitHistory []float64
	declines   int
	status     Status
}

// Ensemble combines the registered sources' signals with adaptive weights
// and tracks each source's accuracy against realized outcomes. It owns its
// windows exclusively; feedback arrives only through Update.
type Ensemble struct {
	cfg     Config
	sources map[string]*source
	names   []string // sorted, for deterministic iteration
	updates int
}

func New(sourceNames []string, cfg Config) (*Ensemble, error) {
	if len(sourceNames) == 0 {
		return nil, fmt.Errorf("ensemble: at least one source required")
	}
	if cfg.WindowSize <= 0 {
		cfg = DefaultConfig()
	}
	e := &Ensemble{cfg: cfg, sources: make(map[string]*source, len(sourceNames))}
	for _, name := range sourceNames {
		if _, dup := e.sources[name]; dup {
			return nil, fmt.Errorf("ensemble: duplicate source %q", name)
		}
		e.sources[name] = &source{
			weight: 1.0 / float64(len(sourceNames)),
			status: StatusActive,
		}
		e.names = append(e.names, name)
	}
	sort.Strings(e.names)
	return e, nil
}

// Combine reduces the cycle's signals to one (action, confidence) pair by
// weighted vote: each source's confidence is added to its action's class
// score, scaled by the source's weight. The winning class's aggregate score
// becomes the combined confidence. HOLD wins ties. If every source is
// struggling or drifted the ensemble abstains with HOLD at zero confidence.
func (e *Ensemble) Combine(signals []signal.Signal) (signal.Action, float64) {
	if e.allUnhealthy() {
		return signal.ActionHold, 0
	}

	var buy, sell, hold float64
	for _, s := range signals {
		src, ok := e.sources[s.Source]
		if !ok {
			continue
		}
		switch s.Action {
		case signal.ActionBuy:
			buy += src.weight * s.Confidence
		case signal.ActionSell:
			sell += src.weight * s.Confidence
		default:
			hold += src.weight * s.Confidence
		}
	}

	switch {
	case buy > sell && buy > hold:
		return signal.ActionBuy, buy
	case sell > buy && sell > hold:
		return signal.ActionSell, sell
	default:
		return signal.ActionHold, hold
	}
}

func (e *Ensemble) allUnhealthy() bool {
	for _, src := range e.sources {
		if src.status == StatusActive {
			return false
		}
	}
	return true
}

// Update feeds one realized outcome back into every source's window and,
// once enough observations exist, recomputes weights and drift status.
// Outcomes must arrive strictly in cycle order for a given instrument.
func (e *Ensemble) Update(signals []signal.Signal, outcome float64) {
	for _, s := range signals {
		src, ok := e.sources[s.Source]
		if !ok {
			continue
		}
		src.preds = pushCapped(src.preds, s.Directional(), e.cfg.WindowSize)
		src.outcomes = pushCapped(src.outcomes, outcome, e.cfg.WindowSize)
	}
	e.updates++

	if e.updates < e.cfg.MinUpdates {
		return
	}
	e.recalculateWeights()
	e.detectDrift()
}

func pushCapped(buf []float64, v float64, capacity int) []float64 {
	buf = append(buf, v)
	if len(buf) > capacity {
		buf = buf[1:]
	}
	return buf
}

// recalculateWeights scores each source with a rolling R²-style fit between
// its predictions and realized outcomes, converts fits to weights via
// softmax, smooths the reallocation with an EMA and renormalizes onto the
// simplex with a floor so no source is starved to zero.
func (e *Ensemble) recalculateWeights() {
	fits := make([]float64, len(e.names))
	maxFit := 0.0
	for i, name := range e.names {
		src := e.sources[name]
		raw := rSquared(src.preds, src.outcomes)
		src.rawFit = raw
		src.fit = math.Max(0, raw)
		fits[i] = src.fit
		if src.fit > maxFit {
			maxFit = src.fit
		}
	}

	target := make([]float64, len(e.names))
	if maxFit < 0.1 {
		// Nothing is predicting well; fall back to equal allocation.
		for i := range target {
			target[i] = 1.0 / float64(len(target))
		}
	} else {
		sum := 0.0
		for i, fit := range fits {
			target[i] = math.Exp(fit * e.cfg.Temperature)
			sum += target[i]
		}
		for i := range target {
			target[i] /= sum
		}
	}

	total := 0.0
	for i, name := range e.names {
		src := e.sources[name]
		src.weight = e.cfg.Alpha*target[i] + (1-e.cfg.Alpha)*src.weight
		total += src.weight
	}
	for _, name := range e.names {
		e.sources[name].weight /= total
	}

	// Weight floor, then renormalize once more.
	total = 0.0
	for _, name := range e.names {
		src := e.sources[name]
		if src.weight < e.cfg.WeightFloor {
			src.weight = e.cfg.WeightFloor
		}
		total += src.weight
	}
	for _, name := range e.names {
		e.sources[name].weight /= total
	}
}

// rSquared computes 1 - SSres/SStot over the paired windows, 0 when the
// outcomes carry no variance or the windows are empty.
func rSquared(preds, outcomes []float64) float64 {
	n := len(outcomes)
	if n == 0 || len(preds) != n {
		return 0
	}
	mean := 0.0
	for _, v := range outcomes {
		mean += v
	}
	mean /= float64(n)

	ssRes, ssTot := 0.0, 0.0
	for i := range outcomes {
		r := outcomes[i] - preds[i]
		ssRes += r * r
		d := outcomes[i] - mean
		ssTot += d * d
	}
	if ssTot <= 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// detectDrift updates per-source status: a fit trending downward for the
// configured streak, or a raw fit below the floor, marks the source
// DRIFTED; healthy fits are ACTIVE; the middle ground is STRUGGLING.
func (e *Ensemble) detectDrift() {
	for _, name := range e.names {
		src := e.sources[name]

		if n := len(src.fitHistory); n > 0 {
			if src.rawFit < src.fitHistory[n-1] {
				src.declines++
			} else {
				src.declines = 0
			}
		}
		src.fitHistory = pushCapped(src.fitHistory, src.rawFit, fitHistoryCap)

		switch {
		case src.rawFit < e.cfg.DriftFloor || src.declines >= e.cfg.DriftStreak:
			src.status = StatusDrifted
		case src.fit >= e.cfg.HealthyFit:
			src.status = StatusActive
		default:
			src.status = StatusStruggling
		}
	}
}

// ShouldRetrain is advisory: true when at least two sources have drifted or
// fewer than half remain active. An external retraining process acts on it;
// the engine itself never halts because of it.
func (e *Ensemble) ShouldRetrain() bool {
	drifted, active := 0, 0
	for _, src := range e.sources {
		switch src.status {
		case StatusDrifted:
			drifted++
		case StatusActive:
			active++
		}
	}
	return drifted >= 2 || active < (len(e.sources)+1)/2
}

// Weights returns a copy of the current weight vector keyed by source.
func (e *Ensemble) Weights() map[string]float64 {
	out := make(map[string]float64, len(e.sources))
	for name, src := range e.sources {
		out[name] = src.weight
	}
	return out
}

// Statuses returns a copy of the current status per source.
func (e *Ensemble) Statuses() map[string]Status {
	out := make(map[string]Status, len(e.sources))
	for name, src := range e.sources {
		out[name] = src.status
	}
	return out
}
