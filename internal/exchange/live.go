package exchange

import (
	"context"
	"time"

	engerr "github.com/quantara/ensemble-trader/internal/errors"
	"github.com/quantara/ensemble-trader/internal/exchange/bybit"
	"github.com/quantara/ensemble-trader/internal/indicators"
	"github.com/quantara/ensemble-trader/pkg/types"
)

// Live adapts a Bybit client to the engine's provider contracts. It owns
// indicator derivation so every snapshot arrives fully populated.
type Live struct {
	client      *bybit.Client
	params      indicators.Params
	bars        int
	quoteAsset  string
	barInterval time.Duration
}

// NewLive builds the live adapter. quoteAsset is the settlement coin used
// for balance reads, typically USDT. barInterval matches the configured
// kline interval and drives staleness detection; zero disables the check.
func NewLive(client *bybit.Client, params indicators.Params, quoteAsset string, barInterval time.Duration) *Live {
	bars := params.MinBars() + 50
	if quoteAsset == "" {
		quoteAsset = "USDT"
	}
	return &Live{client: client, params: params, bars: bars, quoteAsset: quoteAsset, barInterval: barInterval}
}

var _ MarketDataProvider = (*Live)(nil)
var _ OrderGateway = (*Live)(nil)
var _ AccountProvider = (*Live)(nil)

// Snapshot fetches trailing klines, derives indicators and stamps the
// result. When the history is too short for the indicator windows the
// snapshot comes back marked stale instead of failing the cycle.
func (l *Live) Snapshot(ctx context.Context, symbol string) (*types.Snapshot, error) {
	history, err := l.client.Klines(ctx, symbol, l.bars)
	if err != nil {
		return nil, engerr.NewDataError("exchange", "snapshot", symbol, err)
	}

	snap := &types.Snapshot{
		Symbol:  symbol,
		Bar:     history[len(history)-1],
		History: history,
	}

	derived, err := indicators.Derive(history, l.params)
	if err != nil {
		snap.Stale = true
		return snap, nil
	}
	snap.Indicators = derived

	// A last bar older than two intervals means the feed stopped moving.
	if l.barInterval > 0 && time.Since(snap.Bar.Timestamp) > 2*l.barInterval {
		snap.Stale = true
	}
	return snap, nil
}

func (l *Live) Ticker(ctx context.Context, symbol string) (*types.Ticker, error) {
	ticker, err := l.client.Ticker(ctx, symbol)
	if err != nil {
		return nil, engerr.NewDataError("exchange", "ticker", symbol, err)
	}
	return ticker, nil
}

func (l *Live) Execute(ctx context.Context, order *types.OrderRequest) (*types.OrderResult, error) {
	result, err := l.client.PlaceMarketOrder(ctx, order)
	if err != nil {
		return nil, engerr.NewExecutionError("exchange", "execute", order.Symbol, err)
	}
	return result, nil
}

func (l *Live) Balance(ctx context.Context) (types.Balance, error) {
	balance, err := l.client.Balance(ctx, l.quoteAsset)
	if err != nil {
		return types.Balance{}, engerr.NewExchangeError("exchange", "balance", l.quoteAsset, err)
	}
	return balance, nil
}
