package types

import "time"

// PositionState tracks where a position sits in its lifecycle.
// Transitions are owned exclusively by the orchestrator.
type PositionState string

const (
	PositionFlat     PositionState = "FLAT"
	PositionEntering PositionState = "ENTERING"
	PositionOpen     PositionState = "OPEN"
	PositionExiting  PositionState = "EXITING"
)

// Position is the single open position an instrument may carry.
// At most one per instrument exists in ENTERING/OPEN/EXITING at a time.
type Position struct {
	Symbol     string        `json:"symbol"`
	Direction  Direction     `json:"direction"`
	Quantity   float64       `json:"quantity"`
	EntryPrice float64       `json:"entry_price"`
	StopLoss   float64       `json:"stop_loss"`
	TakeProfit float64       `json:"take_profit"`
	OpenedAt   time.Time     `json:"opened_at"`
	State      PositionState `json:"state"`
}

// Value returns the position's exposure at the given price.
func (p *Position) Value(price float64) float64 {
	return p.Quantity * price
}

// OrderSide is the side of a proposed order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderRequest is an ephemeral proposed trade, created per decision and
// discarded once validated and either submitted or rejected.
type OrderRequest struct {
	ID        string
	Symbol    string
	Side      OrderSide
	Quantity  float64
	Price     float64
	Reduce    bool // true when the order closes an existing position
	CreatedAt time.Time
}

// OrderResult is the gateway's definitive answer for a submitted order.
type OrderResult struct {
	Filled       bool
	FillPrice    float64
	FillQuantity float64
}

// TradeResult records one realized (closed) trade for performance review.
type TradeResult struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Quantity  float64   `json:"quantity"`
	Entry     float64   `json:"entry"`
	Exit      float64   `json:"exit"`
	PnL       float64   `json:"pnl"`
	ReturnPct float64   `json:"return_pct"`
	Reason    string    `json:"reason"`
	ClosedAt  time.Time `json:"closed_at"`
}
