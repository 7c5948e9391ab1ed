package types

import "time"

type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// IndicatorSet holds the derived indicator values computed for a snapshot.
type IndicatorSet struct {
	RSI            float64
	MACD           float64
	MACDSignal     float64
	ATR            float64
	BollingerUpper float64
	BollingerMid   float64
	BollingerLower float64
	SMAFast        float64
	SMASlow        float64
}

// Snapshot is a single per-cycle view of one instrument: the current bar,
// enough trailing history for rolling computations, and derived indicators.
// Immutable once produced.
type Snapshot struct {
	Symbol     string
	Bar        OHLCV
	History    []OHLCV // trailing bars, oldest first, current bar last
	Indicators IndicatorSet
	Stale      bool // set by the data provider when the quote is unavailable
}

// PrevClose returns the close of the bar before the current one,
// or 0 when there is not enough history.
func (s *Snapshot) PrevClose() float64 {
	if len(s.History) < 2 {
		return 0
	}
	return s.History[len(s.History)-2].Close
}

type Direction int

const (
	DirectionLong Direction = iota
	DirectionShort
)

func (d Direction) String() string {
	if d == DirectionShort {
		return "SHORT"
	}
	return "LONG"
}

type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}
