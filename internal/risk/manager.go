package risk

import (
	"fmt"
	"math"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// Exit reasons reported by ShouldExit.
const (
	ExitStopLoss   = "stop_loss"
	ExitTakeProfit = "take_profit"
)

// Manager sizes entries from volatility, derives protective brackets and
// tracks equity against the drawdown kill switch. It holds no positions
// itself; the caller owns position state.
type Manager struct {
	profile       Profile
	drawdownLimit float64
	peakEquity    float64
	halted        bool
}

// NewManager creates a manager with the given profile. drawdownLimit is the
// peak-to-trough equity fraction that trips the kill switch; 0 disables it.
func NewManager(profile Profile, drawdownLimit float64) *Manager {
	return &Manager{profile: profile.Clamp(), drawdownLimit: drawdownLimit}
}

func (m *Manager) Profile() Profile { return m.profile }

// SetProfile installs an adjusted profile, clamped to the hard bounds.
func (m *Manager) SetProfile(p Profile) { m.profile = p.Clamp() }

// SizePosition computes quantity and brackets for a prospective entry.
// sizeFactor scales the risk budget down (1.0 normally, less when anomaly
// gating asks for reduced size). A zero quantity is not an error; it means
// the stop distance is too wide for the risk budget and the entry should be
// skipped.
func (m *Manager) SizePosition(balance, price, atr float64, dir types.Direction, sizeFactor float64) (Sizing, error) {
	if balance <= 0 {
		return Sizing{}, fmt.Errorf("risk: non-positive balance %.2f", balance)
	}
	if price <= 0 {
		return Sizing{}, fmt.Errorf("risk: non-positive price %.4f", price)
	}
	if atr <= 0 {
		return Sizing{}, fmt.Errorf("risk: non-positive ATR %.4f", atr)
	}
	if sizeFactor <= 0 || sizeFactor > 1 {
		sizeFactor = 1
	}

	stopDist := atr * m.profile.StopLossATR
	riskBudget := balance * m.profile.RiskPerTrade * sizeFactor
	qty := math.Floor(riskBudget / stopDist)

	// Position value ceiling.
	maxValue := balance * m.profile.MaxPositionPct
	if qty*price > maxValue {
		qty = math.Floor(maxValue / price)
	}
	if qty <= 0 {
		return Sizing{}, nil
	}

	s := Sizing{Quantity: qty, RiskAmount: qty * stopDist}
	profitDist := stopDist * m.profile.TakeProfitRatio
	if dir == types.DirectionLong {
		s.StopLoss = price - stopDist
		s.TakeProfit = price + profitDist
	} else {
		s.StopLoss = price + stopDist
		s.TakeProfit = price - profitDist
	}
	return s, nil
}

// ShouldExit reports whether the price has reached the position's stop or
// target. The stop is checked first so a bar that spans both exits at the
// conservative side.
func (m *Manager) ShouldExit(pos *types.Position, price float64) (bool, string) {
	if pos == nil {
		return false, ""
	}
	if pos.Direction == types.DirectionLong {
		if price <= pos.StopLoss {
			return true, ExitStopLoss
		}
		if price >= pos.TakeProfit {
			return true, ExitTakeProfit
		}
	} else {
		if price >= pos.StopLoss {
			return true, ExitStopLoss
		}
		if price <= pos.TakeProfit {
			return true, ExitTakeProfit
		}
	}
	return false, ""
}

// UpdateTrailingStop ratchets the stop toward price when trailing is
// enabled. Stops only ever tighten; a pullback never loosens them.
func (m *Manager) UpdateTrailingStop(pos *types.Position, price float64) {
	if pos == nil || m.profile.TrailingStopPct <= 0 {
		return
	}
	if pos.Direction == types.DirectionLong {
		if candidate := price * (1 - m.profile.TrailingStopPct); candidate > pos.StopLoss {
			pos.StopLoss = candidate
		}
	} else {
		if candidate := price * (1 + m.profile.TrailingStopPct); candidate < pos.StopLoss {
			pos.StopLoss = candidate
		}
	}
}

// ObserveEquity records the latest account equity and trips the kill switch
// when drawdown from peak exceeds the limit. Returns true while halted.
func (m *Manager) ObserveEquity(equity float64) bool {
	if equity > m.peakEquity {
		m.peakEquity = equity
	}
	if m.drawdownLimit > 0 && m.peakEquity > 0 {
		dd := (m.peakEquity - equity) / m.peakEquity
		if dd > m.drawdownLimit {
			m.halted = true
		}
	}
	return m.halted
}

// Halted reports whether the drawdown kill switch has tripped. It stays
// tripped until an operator calls Resume.
func (m *Manager) Halted() bool { return m.halted }

// Resume clears the kill switch and resets the equity peak so the limit
// measures from current equity, not the old high-water mark.
func (m *Manager) Resume() {
	m.halted = false
	m.peakEquity = 0
}

func (m *Manager) Export() ManagerState {
	return ManagerState{Profile: m.profile, PeakEquity: m.peakEquity, Halted: m.halted}
}

func (m *Manager) Restore(st ManagerState) {
	m.profile = st.Profile.Clamp()
	m.peakEquity = st.PeakEquity
	m.halted = st.Halted
}
