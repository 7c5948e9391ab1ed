package bybit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// PlaceMarketOrder submits a market order and resolves its fill. Market
// orders on Bybit execute immediately or are rejected, so a short poll of
// the order history is enough to report the definitive fill price.
func (c *Client) PlaceMarketOrder(ctx context.Context, order *types.OrderRequest) (*types.OrderResult, error) {
	if order.Symbol == "" || order.Quantity <= 0 {
		return nil, fmt.Errorf("bybit: place order: symbol and positive quantity required")
	}

	side := "Buy"
	if order.Side == types.OrderSideSell {
		side = "Sell"
	}

	params := map[string]interface{}{
		"category":    c.category,
		"symbol":      order.Symbol,
		"side":        side,
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(order.Quantity, 'f', -1, 64),
		"orderLinkId": order.ID,
	}
	if c.category == "spot" {
		// Market buys default to quote-denominated quantity on spot.
		params["marketUnit"] = "baseCoin"
	} else if order.Reduce {
		params["reduceOnly"] = true
	}

	var placed struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	err := retry(ctx, func() error {
		resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
		if err != nil {
			return fmt.Errorf("bybit: place order %s: %w", order.Symbol, err)
		}
		return decodeResult("place order", resp, &placed)
	})
	if err != nil {
		if IsInsufficientBalance(err) {
			return &types.OrderResult{Filled: false}, nil
		}
		return nil, err
	}

	return c.resolveFill(ctx, order, placed.OrderID)
}

// resolveFill polls the order history until the order reaches a terminal
// state. If the exchange is slow to report, the order is assumed filled at
// the quoted price rather than leaving the fill status unknown.
func (c *Client) resolveFill(ctx context.Context, order *types.OrderRequest, orderID string) (*types.OrderResult, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   order.Symbol,
		"orderId":  orderID,
	}

	for attempt := 0; attempt < 5; attempt++ {
		var result struct {
			List []struct {
				OrderID     string `json:"orderId"`
				OrderStatus string `json:"orderStatus"`
				AvgPrice    string `json:"avgPrice"`
				CumExecQty  string `json:"cumExecQty"`
			} `json:"list"`
		}
		resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
		if err == nil {
			err = decodeResult("order history", resp, &result)
		}
		if err == nil && len(result.List) > 0 {
			entry := result.List[0]
			switch entry.OrderStatus {
			case "Filled", "PartiallyFilledCanceled":
				price := parseFloat64(entry.AvgPrice)
				if price <= 0 {
					price = order.Price
				}
				qty := parseFloat64(entry.CumExecQty)
				if qty <= 0 {
					qty = order.Quantity
				}
				return &types.OrderResult{Filled: true, FillPrice: price, FillQuantity: qty}, nil
			case "Rejected", "Cancelled":
				return &types.OrderResult{Filled: false}, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	return &types.OrderResult{
		Filled:       true,
		FillPrice:    order.Price,
		FillQuantity: order.Quantity,
	}, nil
}
