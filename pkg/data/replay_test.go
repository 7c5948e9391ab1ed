package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantara/ensemble-trader/internal/indicators"
	"github.com/quantara/ensemble-trader/pkg/types"
)

func syntheticBars(n int) []types.OHLCV {
	bars := make([]types.OHLCV, n)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := range bars {
		if i%2 == 0 {
			price += 1.5
		} else {
			price -= 0.5
		}
		bars[i] = types.OHLCV{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price - 0.5,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	return bars
}

func TestReplaySnapshotDerivesIndicators(t *testing.T) {
	replay := NewReplay(indicators.DefaultParams())
	require.NoError(t, replay.AddSeries("BTCUSDT", syntheticBars(80)))

	snap, err := replay.Snapshot(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, snap.Stale)
	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Greater(t, snap.Indicators.ATR, 0.0)
	assert.Greater(t, snap.Indicators.SMASlow, 0.0)
	assert.Equal(t, snap.History[len(snap.History)-1], snap.Bar)
}

func TestReplaySnapshotIsStableWithinCycle(t *testing.T) {
	replay := NewReplay(indicators.DefaultParams())
	require.NoError(t, replay.AddSeries("BTCUSDT", syntheticBars(80)))

	first, err := replay.Snapshot(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	second, err := replay.Snapshot(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, first.Bar, second.Bar)

	require.True(t, replay.Advance())
	third, err := replay.Snapshot(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, third.Bar.Timestamp.After(first.Bar.Timestamp))
}

func TestReplayAdvanceStopsAtEnd(t *testing.T) {
	params := indicators.DefaultParams()
	replay := NewReplay(params)
	bars := syntheticBars(params.MinBars() + 3)
	require.NoError(t, replay.AddSeries("ETHUSDT", bars))

	steps := 0
	for replay.Advance() {
		steps++
	}
	assert.Equal(t, 2, steps)

	_, err := replay.Ticker(context.Background(), "ETHUSDT")
	assert.Error(t, err)
}

func TestReplayTickerMatchesCurrentBar(t *testing.T) {
	replay := NewReplay(indicators.DefaultParams())
	bars := syntheticBars(80)
	require.NoError(t, replay.AddSeries("BTCUSDT", bars))

	ticker, err := replay.Ticker(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	snap, err := replay.Snapshot(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, snap.Bar.Close, ticker.Price)
	assert.Equal(t, snap.Bar.Timestamp, ticker.Timestamp)
}

func TestReplayRejectsShortSeries(t *testing.T) {
	replay := NewReplay(indicators.DefaultParams())
	err := replay.AddSeries("BTCUSDT", syntheticBars(10))
	assert.Error(t, err)

	_, err = replay.Snapshot(context.Background(), "BTCUSDT")
	assert.Error(t, err)
}
