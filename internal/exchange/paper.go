package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// Paper is an in-memory gateway and account used for dry runs and replay.
// Orders fill immediately at the requested price plus configured slippage.
type Paper struct {
	mu       sync.Mutex
	cash     float64
	asset    string
	slippage float64 // fraction of price, applied against the taker
	fills    int
}

func NewPaper(startingCash float64, asset string, slippage float64) *Paper {
	if asset == "" {
		asset = "USD"
	}
	return &Paper{cash: startingCash, asset: asset, slippage: slippage}
}

func (p *Paper) Execute(_ context.Context, order *types.OrderRequest) (*types.OrderResult, error) {
	if order == nil || order.Quantity <= 0 || order.Price <= 0 {
		return nil, fmt.Errorf("paper: invalid order")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	fillPrice := order.Price
	if order.Side == types.OrderSideBuy {
		fillPrice *= 1 + p.slippage
	} else {
		fillPrice *= 1 - p.slippage
	}
	value := order.Quantity * fillPrice

	if order.Reduce {
		// Closing trades return the position's notional to cash. The caller
		// books realized PnL; the paper account only moves cash.
		if order.Side == types.OrderSideSell {
			p.cash += value
		} else {
			p.cash -= value
		}
	} else {
		if order.Side == types.OrderSideBuy {
			if value > p.cash {
				return &types.OrderResult{Filled: false}, nil
			}
			p.cash -= value
		} else {
			p.cash += value
		}
	}

	p.fills++
	return &types.OrderResult{Filled: true, FillPrice: fillPrice, FillQuantity: order.Quantity}, nil
}

func (p *Paper) Balance(_ context.Context) (types.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return types.Balance{Asset: p.asset, Free: p.cash}, nil
}

// Fills reports how many orders have filled, for replay summaries.
func (p *Paper) Fills() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fills
}
