package data

import (
	"context"
	"fmt"
	"time"

	"github.com/quantara/ensemble-trader/internal/indicators"
	"github.com/quantara/ensemble-trader/pkg/types"
)

const replayHistoryWindow = 250

// Replay serves historical series bar by bar through the market data
// contract. Each symbol holds a cursor; Advance moves every cursor one bar
// so a multi-symbol replay stays in lockstep.
type Replay struct {
	params  indicators.Params
	series  map[string][]types.OHLCV
	cursors map[string]int
}

// NewReplay builds a replay provider. Cursors start at the first bar with
// enough history behind it to derive a full indicator set.
func NewReplay(params indicators.Params) *Replay {
	return &Replay{
		params:  params,
		series:  make(map[string][]types.OHLCV),
		cursors: make(map[string]int),
	}
}

// AddSeries registers a symbol's history, oldest bar first.
func (r *Replay) AddSeries(symbol string, bars []types.OHLCV) error {
	if len(bars) <= r.params.MinBars() {
		return fmt.Errorf("data: %s: %d bars is too short for replay (need more than %d)",
			symbol, len(bars), r.params.MinBars())
	}
	r.series[symbol] = bars
	r.cursors[symbol] = r.params.MinBars()
	return nil
}

// Snapshot returns the view at the symbol's current cursor. It does not
// move the cursor; repeated calls within one cycle see the same bar.
func (r *Replay) Snapshot(_ context.Context, symbol string) (*types.Snapshot, error) {
	bars, ok := r.series[symbol]
	if !ok {
		return nil, fmt.Errorf("data: no series loaded for %s", symbol)
	}
	cursor := r.cursors[symbol]
	if cursor >= len(bars) {
		return nil, fmt.Errorf("data: %s is exhausted", symbol)
	}

	start := cursor + 1 - replayHistoryWindow
	if start < 0 {
		start = 0
	}
	window := bars[start : cursor+1]
	history := make([]types.OHLCV, len(window))
	copy(history, window)

	snap := &types.Snapshot{
		Symbol:  symbol,
		Bar:     history[len(history)-1],
		History: history,
	}
	derived, err := indicators.Derive(history, r.params)
	if err != nil {
		snap.Stale = true
		return snap, nil
	}
	snap.Indicators = derived
	return snap, nil
}

// Ticker quotes the close of the current bar.
func (r *Replay) Ticker(_ context.Context, symbol string) (*types.Ticker, error) {
	bars, ok := r.series[symbol]
	if !ok {
		return nil, fmt.Errorf("data: no series loaded for %s", symbol)
	}
	cursor := r.cursors[symbol]
	if cursor >= len(bars) {
		return nil, fmt.Errorf("data: %s is exhausted", symbol)
	}
	bar := bars[cursor]
	return &types.Ticker{
		Symbol:    symbol,
		Price:     bar.Close,
		Volume:    bar.Volume,
		Timestamp: bar.Timestamp,
	}, nil
}

// Advance moves every cursor one bar forward. It returns false when any
// symbol has run out of data, which ends the replay.
func (r *Replay) Advance() bool {
	for symbol := range r.cursors {
		r.cursors[symbol]++
		if r.cursors[symbol] >= len(r.series[symbol]) {
			return false
		}
	}
	return len(r.cursors) > 0
}

// Clock returns the timestamp of the current bar of any symbol, for replay
// progress reporting. Zero time when nothing is loaded.
func (r *Replay) Clock() time.Time {
	for symbol, cursor := range r.cursors {
		if cursor < len(r.series[symbol]) {
			return r.series[symbol][cursor].Timestamp
		}
	}
	return time.Time{}
}
