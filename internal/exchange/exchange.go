package exchange

import (
	"context"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// MarketDataProvider produces the per-cycle snapshot for one instrument.
// Implementations own indicator derivation so the engine always receives a
// fully populated snapshot or an error.
type MarketDataProvider interface {
	Snapshot(ctx context.Context, symbol string) (*types.Snapshot, error)
	Ticker(ctx context.Context, symbol string) (*types.Ticker, error)
}

// OrderGateway submits orders and reports definitive fill results. An error
// means the fill status is unknown and the caller must treat the position
// as unchanged.
type OrderGateway interface {
	Execute(ctx context.Context, order *types.OrderRequest) (*types.OrderResult, error)
}

// AccountProvider reads account state. Both methods return snapshots; the
// engine never mutates account state directly.
type AccountProvider interface {
	Balance(ctx context.Context) (types.Balance, error)
}
