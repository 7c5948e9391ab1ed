package anomaly

import (
	"fmt"
	"math"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// EventType identifies which detector produced a finding.
type EventType string

const (
	TypeNone       EventType = ""
	TypeGap        EventType = "GAP"
	TypeVolatility EventType = "VOLATILITY"
	TypeVolume     EventType = "VOLUME"
	TypePattern    EventType = "PATTERN"
)

// Action is the trading-intensity recommendation derived from severity.
type Action string

const (
	Proceed        Action = "PROCEED"
	ReduceSize     Action = "REDUCE_SIZE"
	Pause          Action = "PAUSE"
	ClosePositions Action = "CLOSE_POSITIONS"
)

// Severity bands. A detector that fires produces a score of at least
// bandReduce; scores scale linearly with how far past its threshold the
// measurement landed, capped at 1.
const (
	bandReduce = 0.50
	bandPause  = 0.60
	bandClose  = 0.70
)

// Finding is one detector's verdict for the current bar.
type Finding struct {
	Type     EventType `json:"type"`
	Score    float64   `json:"score"`
	Measure  float64   `json:"measure"`
	Detail   string    `json:"detail"`
}

// Event is the consolidated result for one evaluation: the most severe
// finding and the action its severity maps to.
type Event struct {
	Type     EventType `json:"type"`
	Severity float64   `json:"severity"`
	Action   Action    `json:"action"`
	Findings []Finding `json:"findings,omitempty"`
	ColdStart bool     `json:"cold_start,omitempty"`
}

// Config tunes the individual detectors.
type Config struct {
	GapThreshold     float64 `yaml:"gap_threshold" json:"gap_threshold"`           // fractional gap vs previous close, default 0.05
	Sensitivity      float64 `yaml:"sensitivity" json:"sensitivity"`               // standard deviations for volatility/volume, default 2.0
	MinWindow        int     `yaml:"min_window" json:"min_window"`                 // bars required before detectors arm, default 20
	WindowSize       int     `yaml:"window_size" json:"window_size"`               // rolling window capacity, default 50
	ReduceSizeFactor float64 `yaml:"reduce_size_factor" json:"reduce_size_factor"` // sizing multiplier forwarded on REDUCE_SIZE, default 0.5
}

func DefaultConfig() Config {
	return Config{
		GapThreshold:     0.05,
		Sensitivity:      2.0,
		MinWindow:        20,
		WindowSize:       50,
		ReduceSizeFactor: 0.5,
	}
}

// Stats summarizes the anomalies a detector has seen over its lifetime.
type Stats struct {
	ByType      map[EventType]int `json:"by_type"`
	MaxSeverity float64           `json:"max_severity"`
}

// Detector runs the gap, volatility, volume and pattern checks over a
// rolling window of recent bars and returns the most severe finding.
// Evaluation is deterministic: identical snapshot and window state always
// produce the identical event.
type Detector struct {
	cfg           Config
	ranges        *ring
	volumes       *ring
	reconstructor *Reconstructor

	byType      map[EventType]int
	maxSeverity float64
}

func NewDetector(cfg Config) *Detector {
	if cfg.WindowSize <= 0 {
		cfg = DefaultConfig()
	}
	return &Detector{
		cfg:     cfg,
		ranges:  newRing(cfg.WindowSize),
		volumes: newRing(cfg.WindowSize),
		byType:  make(map[EventType]int),
	}
}

// SetReconstructor arms the pattern detector with a trained scorer.
// Without one the pattern check is skipped (fail-open).
func (d *Detector) SetReconstructor(r *Reconstructor) { d.reconstructor = r }

// ReduceFactor is the sizing multiplier the risk manager applies when the
// recommended action is REDUCE_SIZE.
func (d *Detector) ReduceFactor() float64 { return d.cfg.ReduceSizeFactor }

// Evaluate inspects the snapshot against the rolling window and returns the
// consolidated event. It never mutates the window, so evaluating the same
// snapshot twice yields the identical event; callers advance the window with
// Observe once per cycle.
func (d *Detector) Evaluate(snapshot *types.Snapshot) Event {
	bar := snapshot.Bar
	barRange := 0.0
	if bar.Close > 0 {
		barRange = (bar.High - bar.Low) / bar.Close
	}

	// Cold start: not enough history to judge anything. Fail open.
	if d.ranges.Len() < d.cfg.MinWindow {
		return Event{Type: TypeNone, Severity: 0, Action: Proceed, ColdStart: true}
	}

	var findings []Finding

	if f, ok := d.checkGap(snapshot); ok {
		findings = append(findings, f)
	}
	if f, ok := d.checkVolatility(barRange); ok {
		findings = append(findings, f)
	}
	if f, ok := d.checkVolume(bar.Volume); ok {
		findings = append(findings, f)
	}
	if f, ok := d.checkPattern(snapshot); ok {
		findings = append(findings, f)
	}

	ev := Event{Type: TypeNone, Severity: 0, Action: Proceed, Findings: findings}
	for _, f := range findings {
		if f.Score > ev.Severity {
			ev.Severity = f.Score
			ev.Type = f.Type
		}
	}
	ev.Action = actionFor(ev.Severity)
	return ev
}

// Observe appends the snapshot's bar to the rolling window and tallies the
// cycle's finding counts. Call exactly once per cycle, after Evaluate.
func (d *Detector) Observe(snapshot *types.Snapshot) {
	ev := d.Evaluate(snapshot)
	if ev.Type != TypeNone {
		d.byType[ev.Type]++
	}
	if ev.Severity > d.maxSeverity {
		d.maxSeverity = ev.Severity
	}

	bar := snapshot.Bar
	barRange := 0.0
	if bar.Close > 0 {
		barRange = (bar.High - bar.Low) / bar.Close
	}
	d.ranges.Push(barRange)
	d.volumes.Push(bar.Volume)
}

// Stats reports cumulative anomaly counts by type and the highest severity
// seen since the detector started.
func (d *Detector) Stats() Stats {
	counts := make(map[EventType]int, len(d.byType))
	for t, n := range d.byType {
		counts[t] = n
	}
	return Stats{ByType: counts, MaxSeverity: d.maxSeverity}
}

// actionFor maps a severity score onto the fixed recommendation bands.
func actionFor(severity float64) Action {
	switch {
	case severity >= bandClose:
		return ClosePositions
	case severity >= bandPause:
		return Pause
	case severity >= bandReduce:
		return ReduceSize
	default:
		return Proceed
	}
}

// score converts a measurement into a severity score: zero below the firing
// threshold, 0.5 exactly at it, scaling linearly with the exceedance ratio
// and capped at 1.
func score(measure, threshold float64) float64 {
	if threshold <= 0 || measure < threshold {
		return 0
	}
	return math.Min(1, 0.5*measure/threshold)
}

func (d *Detector) checkGap(snapshot *types.Snapshot) (Finding, bool) {
	prev := snapshot.PrevClose()
	if prev <= 0 {
		return Finding{}, false
	}
	gap := math.Abs(snapshot.Bar.Open-prev) / prev
	s := score(gap, d.cfg.GapThreshold)
	if s == 0 {
		return Finding{}, false
	}
	return Finding{
		Type:    TypeGap,
		Score:   s,
		Measure: gap,
		Detail:  fmt.Sprintf("opening gap of %.1f%% vs previous close", gap*100),
	}, true
}

func (d *Detector) checkVolatility(barRange float64) (Finding, bool) {
	mean, std := d.ranges.Stats()
	if std <= 0 {
		return Finding{}, false
	}
	z := (barRange - mean) / std
	s := score(z, d.cfg.Sensitivity)
	if s == 0 {
		return Finding{}, false
	}
	return Finding{
		Type:    TypeVolatility,
		Score:   s,
		Measure: z,
		Detail:  fmt.Sprintf("bar range %.1f%% is %.1f standard deviations above normal", barRange*100, z),
	}, true
}

func (d *Detector) checkVolume(volume float64) (Finding, bool) {
	mean, _ := d.volumes.Stats()
	if mean <= 0 {
		return Finding{}, false
	}
	ratio := volume / mean
	s := score(ratio, d.cfg.Sensitivity)
	if s == 0 {
		return Finding{}, false
	}
	return Finding{
		Type:    TypeVolume,
		Score:   s,
		Measure: ratio,
		Detail:  fmt.Sprintf("volume %.1fx the rolling mean", ratio),
	}, true
}

func (d *Detector) checkPattern(snapshot *types.Snapshot) (Finding, bool) {
	if d.reconstructor == nil || !d.reconstructor.Trained() {
		return Finding{}, false
	}
	features, ok := featuresFor(snapshot)
	if !ok {
		return Finding{}, false
	}
	err := d.reconstructor.Error(features)
	s := score(err, d.reconstructor.Threshold())
	if s == 0 {
		return Finding{}, false
	}
	return Finding{
		Type:    TypePattern,
		Score:   s,
		Measure: err,
		Detail:  fmt.Sprintf("reconstruction error %.4f above the %.0fth percentile threshold", err, d.reconstructor.Percentile()*100),
	}, true
}

// featuresFor flattens a snapshot into the feature vector the pattern
// scorer was trained on.
func featuresFor(snapshot *types.Snapshot) ([]float64, bool) {
	b := snapshot.Bar
	if b.Close <= 0 {
		return nil, false
	}
	ind := snapshot.Indicators
	return []float64{
		b.Open / b.Close,
		b.High / b.Close,
		b.Low / b.Close,
		b.Volume,
		ind.RSI,
		ind.MACD,
		ind.ATR / b.Close,
	}, true
}
