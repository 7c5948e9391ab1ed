package risk

import "time"

// Hard bounds the adjuster can never push a profile past.
const (
	MinRiskPerTrade   = 0.005
	MaxRiskPerTrade   = 0.05
	MinMaxPositionPct = 0.10
	MaxMaxPositionPct = 0.30
)

// Profile holds the tunable sizing parameters. The adjuster revises
// RiskPerTrade and MaxPositionPct; the rest are operator-set.
type Profile struct {
	RiskPerTrade    float64 `yaml:"risk_per_trade" json:"risk_per_trade"`       // fraction of balance risked per trade
	MaxPositionPct  float64 `yaml:"max_position_pct" json:"max_position_pct"`   // position value ceiling as fraction of balance
	StopLossATR     float64 `yaml:"stop_loss_atr" json:"stop_loss_atr"`         // stop distance in ATR multiples
	TakeProfitRatio float64 `yaml:"take_profit_ratio" json:"take_profit_ratio"` // profit target as multiple of the stop distance
	TrailingStopPct float64 `yaml:"trailing_stop_pct" json:"trailing_stop_pct"` // trail distance as fraction of price, 0 disables
}

// DefaultProfile returns the baseline profile before any self-adjustment.
func DefaultProfile() Profile {
	return Profile{
		RiskPerTrade:    0.02,
		MaxPositionPct:  0.20,
		StopLossATR:     2.0,
		TakeProfitRatio: 1.5,
		TrailingStopPct: 0,
	}
}

// Clamp forces the adjustable parameters back inside their hard bounds.
func (p Profile) Clamp() Profile {
	if p.RiskPerTrade < MinRiskPerTrade {
		p.RiskPerTrade = MinRiskPerTrade
	}
	if p.RiskPerTrade > MaxRiskPerTrade {
		p.RiskPerTrade = MaxRiskPerTrade
	}
	if p.MaxPositionPct < MinMaxPositionPct {
		p.MaxPositionPct = MinMaxPositionPct
	}
	if p.MaxPositionPct > MaxMaxPositionPct {
		p.MaxPositionPct = MaxMaxPositionPct
	}
	return p
}

// Sizing is the result of sizing one prospective entry.
type Sizing struct {
	Quantity   float64 `json:"quantity"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	RiskAmount float64 `json:"risk_amount"` // currency at risk if the stop fills exactly
}

// Stats summarizes a window of closed trades for the adjuster.
type Stats struct {
	Trades      int     `json:"trades"`
	WinRate     float64 `json:"win_rate"`
	Sharpe      float64 `json:"sharpe"`
	AvgReturn   float64 `json:"avg_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Adjustment is the audit record of one adjuster run, applied or not.
type Adjustment struct {
	At         time.Time `json:"at"`
	Score      float64   `json:"score"`
	Multiplier float64   `json:"multiplier"`
	Before     Profile   `json:"before"`
	After      Profile   `json:"after"`
	Stats      Stats     `json:"stats"`
	Applied    bool      `json:"applied"`
	Reason     string    `json:"reason,omitempty"`
}

// ManagerState is the serializable snapshot of a Manager.
type ManagerState struct {
	Profile    Profile `json:"profile"`
	PeakEquity float64 `json:"peak_equity"`
	Halted     bool    `json:"halted"`
}

// AdjusterState is the serializable snapshot of an Adjuster.
type AdjusterState struct {
	LastRun time.Time    `json:"last_run"`
	History []Adjustment `json:"history,omitempty"`
}
