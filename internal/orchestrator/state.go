package orchestrator

import (
	"github.com/quantara/ensemble-trader/internal/anomaly"
	"github.com/quantara/ensemble-trader/internal/signal"
	"github.com/quantara/ensemble-trader/pkg/types"
)

// State is the orchestrator's serializable snapshot: open positions, the
// closed-trade window, session counters, the pending feedback pairs and the
// anomaly windows. Together with the ensemble and risk snapshots it is
// sufficient to reproduce the next decision exactly after a restart.
type State struct {
	Positions      map[string]types.Position        `json:"positions"`
	Trades         []types.TradeResult              `json:"trades"`
	OrdersToday    int                              `json:"orders_today"`
	SessionDay     string                           `json:"session_day"`
	PendingSignals map[string][]signal.Signal       `json:"pending_signals"`
	PendingClose   map[string]float64               `json:"pending_close"`
	Detectors      map[string]anomaly.DetectorState `json:"detectors"`
}

func (o *Orchestrator) Export() State {
	st := State{
		Positions:      make(map[string]types.Position, len(o.positions)),
		Trades:         o.Trades(),
		OrdersToday:    o.ordersToday,
		SessionDay:     o.sessionDay,
		PendingSignals: make(map[string][]signal.Signal, len(o.pendingSignals)),
		PendingClose:   make(map[string]float64, len(o.pendingClose)),
		Detectors:      make(map[string]anomaly.DetectorState, len(o.detectors)),
	}
	for sym, pos := range o.positions {
		st.Positions[sym] = *pos
	}
	for sym, sigs := range o.pendingSignals {
		st.PendingSignals[sym] = append([]signal.Signal(nil), sigs...)
	}
	for sym, ref := range o.pendingClose {
		st.PendingClose[sym] = ref
	}
	for sym, det := range o.detectors {
		st.Detectors[sym] = det.Export()
	}
	return st
}

func (o *Orchestrator) Restore(st State) {
	o.positions = make(map[string]*types.Position, len(st.Positions))
	for sym, pos := range st.Positions {
		p := pos
		o.positions[sym] = &p
	}
	o.trades = append([]types.TradeResult(nil), st.Trades...)
	o.ordersToday = st.OrdersToday
	o.sessionDay = st.SessionDay
	o.pendingSignals = make(map[string][]signal.Signal, len(st.PendingSignals))
	for sym, sigs := range st.PendingSignals {
		o.pendingSignals[sym] = append([]signal.Signal(nil), sigs...)
	}
	o.pendingClose = make(map[string]float64, len(st.PendingClose))
	for sym, ref := range st.PendingClose {
		o.pendingClose[sym] = ref
	}
	for sym, ds := range st.Detectors {
		o.detector(sym).Restore(ds)
	}
}
