package orchestrator

import (
	"time"

	"github.com/quantara/ensemble-trader/internal/anomaly"
	"github.com/quantara/ensemble-trader/internal/risk"
	"github.com/quantara/ensemble-trader/internal/signal"
	"github.com/quantara/ensemble-trader/internal/validation"
	"github.com/quantara/ensemble-trader/pkg/types"
)

// Action is the final per-cycle outcome for one instrument.
type Action string

const (
	ActionEnterLong  Action = "ENTER_LONG"
	ActionEnterShort Action = "ENTER_SHORT"
	ActionExit       Action = "EXIT"
	ActionHold       Action = "HOLD"
	ActionBlocked    Action = "BLOCKED"  // anomaly gate or kill switch
	ActionRejected   Action = "REJECTED" // validator refused the order
	ActionSkipped    Action = "SKIPPED"  // no usable data this cycle
)

// EnsembleDecision is the combined vote before gating and sizing.
type EnsembleDecision struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
}

// DecisionRecord is the structured trace of one evaluation cycle for one
// instrument. It is the engine's sole observability surface; dashboards,
// notifiers and the journal all consume it rather than engine internals.
type DecisionRecord struct {
	Symbol      string             `json:"symbol"`
	Timestamp   time.Time          `json:"timestamp"`
	Signals     []signal.Signal    `json:"signals,omitempty"`
	Weights     map[string]float64 `json:"weights,omitempty"`
	Anomaly     anomaly.Event      `json:"anomaly"`
	Ensemble    EnsembleDecision   `json:"ensemble"`
	Sizing      *risk.Sizing       `json:"sizing,omitempty"`
	Validation  *validation.Report `json:"validation,omitempty"`
	FinalAction Action             `json:"final_action"`
	Reason      string             `json:"reason,omitempty"`
	Trade       *types.TradeResult `json:"trade,omitempty"`
}
