package risk

import (
	"math"
	"time"

	"github.com/quantara/ensemble-trader/pkg/types"
)

const adjustmentHistoryCap = 50

// Performance score component weights and band multipliers.
const (
	weightWinRate  = 0.30
	weightSharpe   = 0.25
	weightReturn   = 0.25
	weightDrawdown = 0.20
)

// Adjuster periodically rescores recent performance and scales the profile's
// adjustable parameters up or down. It only proposes profiles; the caller
// installs them on the Manager so the hand-off is explicit and auditable.
type Adjuster struct {
	period    time.Duration
	minTrades int
	lastRun   time.Time
	history   []Adjustment
}

// NewAdjuster creates an adjuster that runs at most once per period and
// refuses to adjust on fewer than minTrades closed trades.
func NewAdjuster(period time.Duration, minTrades int) *Adjuster {
	if period <= 0 {
		period = 7 * 24 * time.Hour
	}
	if minTrades <= 0 {
		minTrades = 10
	}
	return &Adjuster{period: period, minTrades: minTrades}
}

// MaybeAdjust runs one adjustment cycle. It returns the profile to use and
// the audit record; ok is false when the period has not elapsed yet and no
// record was produced.
func (a *Adjuster) MaybeAdjust(now time.Time, trades []types.TradeResult, p Profile) (Profile, Adjustment, bool) {
	if !a.lastRun.IsZero() && now.Sub(a.lastRun) < a.period {
		return p, Adjustment{}, false
	}
	a.lastRun = now

	adj := Adjustment{At: now, Before: p, After: p, Multiplier: 1.0}
	if len(trades) < a.minTrades {
		adj.Reason = "insufficient closed trades"
		adj.Stats = Stats{Trades: len(trades)}
		a.record(adj)
		return p, adj, true
	}

	stats := ComputeStats(trades)
	score := Score(stats)
	mult := multiplierFor(score)

	next := p
	next.RiskPerTrade *= mult
	next.MaxPositionPct *= mult
	next = next.Clamp()

	adj.Stats = stats
	adj.Score = score
	adj.Multiplier = mult
	adj.After = next
	adj.Applied = true
	a.record(adj)
	return next, adj, true
}

func (a *Adjuster) record(adj Adjustment) {
	a.history = append(a.history, adj)
	if len(a.history) > adjustmentHistoryCap {
		a.history = a.history[1:]
	}
}

// History returns a copy of the retained audit records, oldest first.
func (a *Adjuster) History() []Adjustment {
	out := make([]Adjustment, len(a.history))
	copy(out, a.history)
	return out
}

func (a *Adjuster) Export() AdjusterState {
	return AdjusterState{LastRun: a.lastRun, History: a.History()}
}

func (a *Adjuster) Restore(st AdjusterState) {
	a.lastRun = st.LastRun
	a.history = append([]Adjustment(nil), st.History...)
}

// ComputeStats derives the scoring inputs from closed trades, oldest first.
func ComputeStats(trades []types.TradeResult) Stats {
	st := Stats{Trades: len(trades)}
	if len(trades) == 0 {
		return st
	}

	wins := 0
	sum := 0.0
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
		}
		sum += t.ReturnPct
	}
	st.WinRate = float64(wins) / float64(len(trades))
	st.AvgReturn = sum / float64(len(trades))

	// Per-trade Sharpe over the window.
	variance := 0.0
	for _, t := range trades {
		d := t.ReturnPct - st.AvgReturn
		variance += d * d
	}
	variance /= float64(len(trades))
	if sd := math.Sqrt(variance); sd > 0 {
		st.Sharpe = st.AvgReturn / sd
	}

	// Max drawdown of the cumulative return path.
	cum, peak, maxDD := 0.0, 0.0, 0.0
	for _, t := range trades {
		cum += t.ReturnPct
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDD {
			maxDD = dd
		}
	}
	st.MaxDrawdown = maxDD
	return st
}

// Score maps stats onto a 0 to 100 composite. Each component is normalized
// to 0..100 before weighting: win rate directly, Sharpe saturating at 2,
// average return saturating at plus or minus 2 percent per trade, drawdown
// exhausting its component at 20 percent.
func Score(st Stats) float64 {
	winComp := clamp01(st.WinRate) * 100
	sharpeComp := clamp01(st.Sharpe/2.0) * 100
	returnComp := clamp01(0.5+st.AvgReturn/0.04) * 100
	ddComp := clamp01(1-st.MaxDrawdown/0.20) * 100

	return weightWinRate*winComp +
		weightSharpe*sharpeComp +
		weightReturn*returnComp +
		weightDrawdown*ddComp
}

// multiplierFor maps a score band to the profile multiplier.
func multiplierFor(score float64) float64 {
	switch {
	case score >= 80:
		return 1.15
	case score >= 60:
		return 1.05
	case score >= 40:
		return 1.0
	case score >= 20:
		return 0.85
	default:
		return 0.70
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
