// Package bybit adapts the Bybit v5 unified trading API to the engine's
// market data, account and order gateway contracts.
package bybit

import (
	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// Config holds connection settings for the Bybit client. Credentials are
// required for account and trading calls; market data works without them.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool   // demo trading environment (paper fills on live data)
	Category  string // product category: spot, linear, inverse
	Interval  string // kline interval in minutes ("60"), or D/W/M
}

// Client wraps the Bybit HTTP client with typed request and parse helpers.
type Client struct {
	httpClient *bybit_api.Client
	category   string
	interval   string
	testnet    bool
	demo       bool
}

// NewClient builds a client for the environment selected by the config.
func NewClient(config Config) *Client {
	var baseURL string
	if config.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	category := config.Category
	if category == "" {
		category = "spot"
	}
	interval := config.Interval
	if interval == "" {
		interval = "60"
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Client{
		httpClient: httpClient,
		category:   category,
		interval:   interval,
		testnet:    config.Testnet,
		demo:       config.Demo,
	}
}

// Environment describes the endpoint the client talks to.
func (c *Client) Environment() string {
	switch {
	case c.demo:
		return "demo"
	case c.testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}
