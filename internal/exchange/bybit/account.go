package bybit

import (
	"context"
	"fmt"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// Balance fetches the unified account balance for one coin.
func (c *Client) Balance(ctx context.Context, coin string) (types.Balance, error) {
	if coin == "" {
		return types.Balance{}, fmt.Errorf("bybit: balance: coin is required")
	}

	params := map[string]interface{}{
		"accountType": "UNIFIED",
		"coin":        coin,
	}

	var result struct {
		List []struct {
			AccountType string `json:"accountType"`
			Coin        []struct {
				Coin            string `json:"coin"`
				WalletBalance   string `json:"walletBalance"`
				Locked          string `json:"locked"`
				TotalOrderIM    string `json:"totalOrderIM"`
				TotalPositionIM string `json:"totalPositionIM"`
			} `json:"coin"`
		} `json:"list"`
	}
	err := retry(ctx, func() error {
		resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
		if err != nil {
			return fmt.Errorf("bybit: balance %s: %w", coin, err)
		}
		return decodeResult("balance", resp, &result)
	})
	if err != nil {
		return types.Balance{}, err
	}

	for _, account := range result.List {
		for _, entry := range account.Coin {
			if entry.Coin != coin {
				continue
			}
			total := parseFloat64(entry.WalletBalance)
			locked := parseFloat64(entry.Locked) +
				parseFloat64(entry.TotalOrderIM) +
				parseFloat64(entry.TotalPositionIM)
			free := total - locked
			if free < 0 {
				free = 0
			}
			return types.Balance{Asset: coin, Free: free, Locked: locked}, nil
		}
	}
	return types.Balance{}, fmt.Errorf("bybit: balance: coin %s not found in wallet", coin)
}
