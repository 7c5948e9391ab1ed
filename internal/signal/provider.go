package signal

import (
	"math"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// Action is the trade direction a signal source recommends.
type Action int

const (
	ActionHold Action = iota
	ActionBuy
	ActionSell
)

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Signal is the common contract every predictor normalizes into.
// Confidence is always within [0,1]; New clamps out-of-range inputs at the
// boundary so invalid values never propagate downstream.
type Signal struct {
	Source     string  `json:"source"`
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	RawScore   float64 `json:"raw_score"`
}

// New builds a Signal with confidence clamped into [0,1].
// NaN confidence collapses to 0.
func New(source string, action Action, confidence, rawScore float64) Signal {
	if math.IsNaN(confidence) {
		confidence = 0
	}
	confidence = math.Max(0, math.Min(1, confidence))
	return Signal{Source: source, Action: action, Confidence: confidence, RawScore: rawScore}
}

// Directional returns the signed confidence used as the source's prediction
// when scoring it against realized outcomes: positive for BUY, negative for
// SELL, zero for HOLD.
func (s Signal) Directional() float64 {
	switch s.Action {
	case ActionBuy:
		return s.Confidence
	case ActionSell:
		return -s.Confidence
	default:
		return 0
	}
}

// Provider is a single predictive source. Implementations must be
// side-effect-free with respect to the snapshot and safe to call once per
// cycle. New sources plug in without touching the ensemble.
type Provider interface {
	Name() string
	Predict(snapshot *types.Snapshot) (Signal, error)
}
