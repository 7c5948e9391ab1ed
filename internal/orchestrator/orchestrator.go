package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantara/ensemble-trader/internal/anomaly"
	"github.com/quantara/ensemble-trader/internal/ensemble"
	"github.com/quantara/ensemble-trader/internal/exchange"
	"github.com/quantara/ensemble-trader/internal/risk"
	"github.com/quantara/ensemble-trader/internal/signal"
	"github.com/quantara/ensemble-trader/internal/validation"
	"github.com/quantara/ensemble-trader/pkg/types"
)

const closedTradeWindow = 200

// Config holds orchestrator-level policy.
type Config struct {
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"` // entry threshold on combined confidence
	AllowShort    bool    `yaml:"allow_short" json:"allow_short"`
}

func DefaultConfig() Config {
	return Config{MinConfidence: 0.5, AllowShort: true}
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Log       zerolog.Logger
	Providers []signal.Provider
	Ensemble  *ensemble.Ensemble
	Risk      *risk.Manager
	Adjuster  *risk.Adjuster
	Gateway   exchange.OrderGateway
	Account   exchange.AccountProvider
	Anomaly   anomaly.Config
	Valid     validation.Config
	Config    Config
}

// Orchestrator drives the per-instrument position state machine. Each cycle
// it gates on anomalies, combines signals, sizes and validates a candidate
// order and applies exactly one transition. It is single-threaded by
// contract: one Cycle call at a time, cycles for different instruments
// sequenced by the caller.
type Orchestrator struct {
	log       zerolog.Logger
	cfg       Config
	providers []signal.Provider
	ens       *ensemble.Ensemble
	riskMgr   *risk.Manager
	adjuster  *risk.Adjuster
	gateway   exchange.OrderGateway
	account   exchange.AccountProvider
	anomCfg   anomaly.Config
	valCfg    validation.Config

	detectors map[string]*anomaly.Detector
	positions map[string]*types.Position

	// Previous cycle's signals await their realized outcome.
	pendingSignals map[string][]signal.Signal
	pendingClose   map[string]float64

	trades      []types.TradeResult
	ordersToday int
	sessionDay  string
}

func New(d Deps) (*Orchestrator, error) {
	if len(d.Providers) == 0 {
		return nil, fmt.Errorf("orchestrator: no signal providers")
	}
	if d.Ensemble == nil || d.Risk == nil || d.Gateway == nil || d.Account == nil {
		return nil, fmt.Errorf("orchestrator: missing dependency")
	}
	if d.Config.MinConfidence <= 0 {
		d.Config = DefaultConfig()
	}
	return &Orchestrator{
		log:            d.Log,
		cfg:            d.Config,
		providers:      d.Providers,
		ens:            d.Ensemble,
		riskMgr:        d.Risk,
		adjuster:       d.Adjuster,
		gateway:        d.Gateway,
		account:        d.Account,
		anomCfg:        d.Anomaly,
		valCfg:         d.Valid,
		detectors:      make(map[string]*anomaly.Detector),
		positions:      make(map[string]*types.Position),
		pendingSignals: make(map[string][]signal.Signal),
		pendingClose:   make(map[string]float64),
	}, nil
}

func (o *Orchestrator) detector(symbol string) *anomaly.Detector {
	det, ok := o.detectors[symbol]
	if !ok {
		det = anomaly.NewDetector(o.anomCfg)
		o.detectors[symbol] = det
	}
	return det
}

// Cycle evaluates one instrument against one snapshot and applies at most
// one position transition. The returned record is complete even when the
// cycle is skipped or blocked.
func (o *Orchestrator) Cycle(ctx context.Context, snap *types.Snapshot, now time.Time) (*DecisionRecord, error) {
	rec := &DecisionRecord{Timestamp: now, FinalAction: ActionHold}
	if snap == nil || snap.Stale {
		rec.FinalAction = ActionSkipped
		rec.Reason = "stale or missing snapshot"
		if snap != nil {
			rec.Symbol = snap.Symbol
		}
		o.logRecord(rec)
		return rec, nil
	}
	rec.Symbol = snap.Symbol
	o.rolloverSession(now)

	price := snap.Bar.Close
	det := o.detector(snap.Symbol)

	// Close the feedback loop from the previous cycle before anything else
	// so this cycle's weights reflect the latest realized outcome.
	if prev, ok := o.pendingSignals[snap.Symbol]; ok {
		if ref := o.pendingClose[snap.Symbol]; ref > 0 {
			o.ens.Update(prev, (price-ref)/ref)
		}
		delete(o.pendingSignals, snap.Symbol)
		delete(o.pendingClose, snap.Symbol)
	}

	// Anomaly gate on the pristine window, then advance it exactly once.
	evt := det.Evaluate(snap)
	det.Observe(snap)
	rec.Anomaly = evt

	sigs := o.collect(snap)
	rec.Signals = sigs
	rec.Weights = o.ens.Weights()

	// These signals get their outcome next cycle, whatever we decide now.
	if len(sigs) > 0 {
		o.pendingSignals[snap.Symbol] = sigs
		o.pendingClose[snap.Symbol] = price
	}

	bal, balErr := o.account.Balance(ctx)
	if balErr == nil {
		o.riskMgr.ObserveEquity(bal.Free + o.openValue(price, snap.Symbol))
	}

	// Exit management runs before entries and ignores the pause gate:
	// an open position keeps being monitored under PAUSE.
	if pos := o.positions[snap.Symbol]; pos != nil && pos.State == types.PositionOpen {
		o.riskMgr.UpdateTrailingStop(pos, price)
		if evt.Action == anomaly.ClosePositions {
			return o.exit(ctx, rec, pos, price, "anomaly_close", now)
		}
		if hit, reason := o.riskMgr.ShouldExit(pos, price); hit {
			return o.exit(ctx, rec, pos, price, reason, now)
		}
	}

	action, conf := o.ens.Combine(sigs)
	rec.Ensemble = EnsembleDecision{Action: action.String(), Confidence: conf}

	switch {
	case o.positions[snap.Symbol] != nil:
		rec.Reason = "position open"
	case evt.Action == anomaly.Pause || evt.Action == anomaly.ClosePositions:
		rec.FinalAction = ActionBlocked
		rec.Reason = "anomaly gate: " + string(evt.Action)
	case o.riskMgr.Halted():
		rec.FinalAction = ActionBlocked
		rec.Reason = "drawdown kill switch"
	case action == signal.ActionHold || conf < o.cfg.MinConfidence:
		rec.Reason = "no actionable consensus"
	case balErr != nil:
		rec.FinalAction = ActionSkipped
		rec.Reason = "account state unavailable"
	default:
		return o.enter(ctx, rec, snap, action, bal, evt, now)
	}

	o.logRecord(rec)
	return rec, nil
}

func (o *Orchestrator) collect(snap *types.Snapshot) []signal.Signal {
	sigs := make([]signal.Signal, 0, len(o.providers))
	for _, p := range o.providers {
		s, err := p.Predict(snap)
		if err != nil {
			o.log.Warn().Err(err).Str("provider", p.Name()).Str("symbol", snap.Symbol).
				Msg("signal provider skipped")
			continue
		}
		sigs = append(sigs, s)
	}
	return sigs
}

func (o *Orchestrator) enter(ctx context.Context, rec *DecisionRecord, snap *types.Snapshot,
	action signal.Action, bal types.Balance, evt anomaly.Event, now time.Time) (*DecisionRecord, error) {

	dir := types.DirectionLong
	side := types.OrderSideBuy
	final := ActionEnterLong
	if action == signal.ActionSell {
		if !o.cfg.AllowShort {
			rec.Reason = "short entries disabled"
			o.logRecord(rec)
			return rec, nil
		}
		dir = types.DirectionShort
		side = types.OrderSideSell
		final = ActionEnterShort
	}

	price := snap.Bar.Close
	sizeFactor := 1.0
	if evt.Action == anomaly.ReduceSize {
		sizeFactor = o.detector(snap.Symbol).ReduceFactor()
	}

	sz, err := o.riskMgr.SizePosition(bal.Free, price, snap.Indicators.ATR, dir, sizeFactor)
	if err != nil {
		rec.Reason = "sizing failed: " + err.Error()
		o.logRecord(rec)
		return rec, nil
	}
	if sz.Quantity == 0 {
		rec.Reason = "risk budget below one unit"
		o.logRecord(rec)
		return rec, nil
	}
	rec.Sizing = &sz

	order := types.OrderRequest{
		ID:        uuid.NewString(),
		Symbol:    snap.Symbol,
		Side:      side,
		Quantity:  sz.Quantity,
		Price:     price,
		CreatedAt: now,
	}
	rep := validation.Validate(order, validation.AccountState{
		Balance:        bal.Free,
		LastQuote:      price,
		OrdersToday:    o.ordersToday,
		PositionValue:  0,
		PortfolioValue: bal.Free + o.openValue(price, ""),
	}, o.valCfg, now)
	rec.Validation = &rep
	if !rep.Accepted {
		rec.FinalAction = ActionRejected
		rec.Reason = "order validation failed"
		o.logRecord(rec)
		return rec, nil
	}

	// Optimistic transition, reverted on anything but a confirmed fill.
	pos := &types.Position{
		Symbol:     snap.Symbol,
		Direction:  dir,
		Quantity:   sz.Quantity,
		EntryPrice: price,
		StopLoss:   sz.StopLoss,
		TakeProfit: sz.TakeProfit,
		OpenedAt:   now,
		State:      types.PositionEntering,
	}
	o.positions[snap.Symbol] = pos

	res, err := o.gateway.Execute(ctx, &order)
	if err != nil || res == nil || !res.Filled {
		delete(o.positions, snap.Symbol)
		rec.FinalAction = ActionHold
		rec.Reason = "entry not filled"
		o.log.Warn().Err(err).Str("symbol", snap.Symbol).Str("order_id", order.ID).
			Msg("entry reverted, fill not confirmed")
		o.logRecord(rec)
		return rec, nil
	}

	pos.EntryPrice = res.FillPrice
	pos.Quantity = res.FillQuantity
	pos.State = types.PositionOpen
	o.ordersToday++

	rec.FinalAction = final
	o.logRecord(rec)
	return rec, nil
}

func (o *Orchestrator) exit(ctx context.Context, rec *DecisionRecord, pos *types.Position,
	price float64, reason string, now time.Time) (*DecisionRecord, error) {

	prev := pos.State
	pos.State = types.PositionExiting

	side := types.OrderSideSell
	if pos.Direction == types.DirectionShort {
		side = types.OrderSideBuy
	}
	order := types.OrderRequest{
		ID:        uuid.NewString(),
		Symbol:    pos.Symbol,
		Side:      side,
		Quantity:  pos.Quantity,
		Price:     price,
		Reduce:    true,
		CreatedAt: now,
	}

	res, err := o.gateway.Execute(ctx, &order)
	if err != nil || res == nil || !res.Filled {
		pos.State = prev
		rec.FinalAction = ActionHold
		rec.Reason = "exit not filled: " + reason
		o.log.Error().Err(err).Str("symbol", pos.Symbol).Str("trigger", reason).
			Msg("exit reverted, fill not confirmed")
		o.logRecord(rec)
		return rec, nil
	}

	pnl := (res.FillPrice - pos.EntryPrice) * pos.Quantity
	if pos.Direction == types.DirectionShort {
		pnl = -pnl
	}
	trade := types.TradeResult{
		Symbol:    pos.Symbol,
		Direction: pos.Direction,
		Quantity:  pos.Quantity,
		Entry:     pos.EntryPrice,
		Exit:      res.FillPrice,
		PnL:       pnl,
		ReturnPct: pnl / (pos.EntryPrice * pos.Quantity),
		Reason:    reason,
		ClosedAt:  now,
	}
	o.trades = append(o.trades, trade)
	if len(o.trades) > closedTradeWindow {
		o.trades = o.trades[1:]
	}
	o.ordersToday++
	delete(o.positions, pos.Symbol)

	rec.FinalAction = ActionExit
	rec.Reason = reason
	rec.Trade = &trade
	o.logRecord(rec)
	return rec, nil
}

// RunAdjustment executes one self-adjustment pass over the closed-trade
// window. The caller schedules it; the adjuster enforces the period.
func (o *Orchestrator) RunAdjustment(now time.Time) (risk.Adjustment, bool) {
	if o.adjuster == nil {
		return risk.Adjustment{}, false
	}
	next, adj, ok := o.adjuster.MaybeAdjust(now, o.trades, o.riskMgr.Profile())
	if !ok {
		return adj, false
	}
	if adj.Applied {
		o.riskMgr.SetProfile(next)
	}
	o.log.Info().
		Bool("applied", adj.Applied).
		Float64("score", adj.Score).
		Float64("multiplier", adj.Multiplier).
		Float64("risk_per_trade", o.riskMgr.Profile().RiskPerTrade).
		Msg("risk self-adjustment")
	return adj, true
}

// openValue sums current position notionals. price is used for the named
// symbol; other symbols are valued at entry as an approximation.
func (o *Orchestrator) openValue(price float64, symbol string) float64 {
	total := 0.0
	for sym, pos := range o.positions {
		if sym == symbol {
			total += pos.Value(price)
		} else {
			total += pos.Value(pos.EntryPrice)
		}
	}
	return total
}

// Positions returns a copy of the open position map.
func (o *Orchestrator) Positions() map[string]types.Position {
	out := make(map[string]types.Position, len(o.positions))
	for sym, pos := range o.positions {
		out[sym] = *pos
	}
	return out
}

// Trades returns a copy of the retained closed trades, oldest first.
func (o *Orchestrator) Trades() []types.TradeResult {
	out := make([]types.TradeResult, len(o.trades))
	copy(out, o.trades)
	return out
}

func (o *Orchestrator) ShouldRetrain() bool { return o.ens.ShouldRetrain() }

func (o *Orchestrator) rolloverSession(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if o.sessionDay != day {
		if o.sessionDay != "" {
			o.log.Info().Str("session", day).Int("orders", o.ordersToday).Msg("session rollover")
		}
		o.sessionDay = day
		o.ordersToday = 0
	}
}

func (o *Orchestrator) logRecord(rec *DecisionRecord) {
	ev := o.log.Info().
		Str("symbol", rec.Symbol).
		Time("ts", rec.Timestamp).
		Str("final_action", string(rec.FinalAction)).
		Str("anomaly", string(rec.Anomaly.Action)).
		Float64("severity", rec.Anomaly.Severity).
		Str("ensemble_action", rec.Ensemble.Action).
		Float64("confidence", rec.Ensemble.Confidence)
	if rec.Reason != "" {
		ev = ev.Str("reason", rec.Reason)
	}
	if rec.Trade != nil {
		ev = ev.Float64("pnl", rec.Trade.PnL).Str("exit_reason", rec.Trade.Reason)
	}
	ev.Msg("decision")
}
