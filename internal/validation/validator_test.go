package validation

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantara/ensemble-trader/pkg/types"
)

var tradingDay = time.Date(2026, 3, 3, 14, 30, 0, 0, time.UTC) // a Tuesday

func goodOrder() types.OrderRequest {
	return types.OrderRequest{Symbol: "AAPL", Side: types.OrderSideBuy, Quantity: 100, Price: 150}
}

func goodAccount() AccountState {
	return AccountState{
		Balance:        100_000,
		LastQuote:      150,
		OrdersToday:    2,
		PositionValue:  0,
		PortfolioValue: 200_000,
	}
}

func resultFor(t *testing.T, rep Report, rule string) Result {
	t.Helper()
	for _, r := range rep.Results {
		if r.Rule == rule {
			return r
		}
	}
	t.Fatalf("rule %s missing from report", rule)
	return Result{}
}

func TestValidateAcceptsCleanOrder(t *testing.T) {
	rep := Validate(goodOrder(), goodAccount(), DefaultConfig(), tradingDay)

	assert.True(t, rep.Accepted)
	require.Len(t, rep.Results, 8, "every rule reports even when passing")
	for _, r := range rep.Results {
		assert.True(t, r.Passed, "rule %s", r.Rule)
	}
}

func TestValidateRuleOrderIsFixed(t *testing.T) {
	rep := Validate(goodOrder(), goodAccount(), DefaultConfig(), tradingDay)

	want := []string{
		RuleBalance, RulePositionCeil, RuleMarketHours, RulePriceDeviation,
		RuleQuantity, RuleDailyLimit, RuleExposure, RuleSymbol,
	}
	require.Len(t, rep.Results, len(want))
	for i, r := range rep.Results {
		assert.Equal(t, want[i], r.Rule)
	}
}

func TestValidateInsufficientBalanceBlocks(t *testing.T) {
	acct := goodAccount()
	acct.Balance = 1000

	rep := Validate(goodOrder(), acct, DefaultConfig(), tradingDay)

	assert.False(t, rep.Accepted)
	r := resultFor(t, rep, RuleBalance)
	assert.False(t, r.Passed)
	assert.Equal(t, SeverityError, r.Severity)
}

func TestValidatePositionCeilingBlocks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOrderValue = 10_000

	rep := Validate(goodOrder(), goodAccount(), cfg, tradingDay)
	assert.False(t, rep.Accepted)
	assert.Equal(t, SeverityError, resultFor(t, rep, RulePositionCeil).Severity)
}

func TestValidateOutsideMarketHoursWarnsButPasses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TradingStart = "09:30"
	cfg.TradingEnd = "16:00"

	night := time.Date(2026, 3, 3, 3, 0, 0, 0, time.UTC)
	rep := Validate(goodOrder(), goodAccount(), cfg, night)

	assert.True(t, rep.Accepted, "a WARNING must not block the order")
	r := resultFor(t, rep, RuleMarketHours)
	assert.False(t, r.Passed)
	assert.Equal(t, SeverityWarning, r.Severity)
}

func TestValidateWeekendBlocksWhenConfigured(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipWeekends = true

	saturday := time.Date(2026, 3, 7, 14, 30, 0, 0, time.UTC)
	rep := Validate(goodOrder(), goodAccount(), cfg, saturday)

	assert.True(t, rep.Accepted)
	assert.False(t, resultFor(t, rep, RuleMarketHours).Passed)
}

func TestValidatePriceDeviationBlocks(t *testing.T) {
	order := goodOrder()
	order.Price = 200 // 33% away from the 150 quote

	rep := Validate(order, goodAccount(), DefaultConfig(), tradingDay)
	assert.False(t, rep.Accepted)
	assert.Equal(t, SeverityError, resultFor(t, rep, RulePriceDeviation).Severity)
}

func TestValidateMissingQuoteBlocks(t *testing.T) {
	acct := goodAccount()
	acct.LastQuote = 0

	rep := Validate(goodOrder(), acct, DefaultConfig(), tradingDay)
	assert.False(t, rep.Accepted)
	assert.False(t, resultFor(t, rep, RulePriceDeviation).Passed)
}

func TestValidateQuantityRules(t *testing.T) {
	for _, qty := range []float64{0, -10, 10.5} {
		order := goodOrder()
		order.Quantity = qty
		rep := Validate(order, goodAccount(), DefaultConfig(), tradingDay)
		assert.False(t, rep.Accepted, "quantity %v", qty)
		assert.False(t, resultFor(t, rep, RuleQuantity).Passed)
	}
}

func TestValidateDailyOrderLimitBlocks(t *testing.T) {
	acct := goodAccount()
	acct.OrdersToday = 20

	rep := Validate(goodOrder(), acct, DefaultConfig(), tradingDay)
	assert.False(t, rep.Accepted)
	assert.Equal(t, SeverityError, resultFor(t, rep, RuleDailyLimit).Severity)
}

func TestValidateExposureWarnsButPasses(t *testing.T) {
	acct := goodAccount()
	acct.PositionValue = 50_000 // plus a 15k order on a 200k portfolio: 32.5%

	rep := Validate(goodOrder(), acct, DefaultConfig(), tradingDay)

	assert.True(t, rep.Accepted)
	r := resultFor(t, rep, RuleExposure)
	assert.False(t, r.Passed)
	assert.Equal(t, SeverityWarning, r.Severity)
}

func TestValidateSymbolRules(t *testing.T) {
	order := goodOrder()
	order.Symbol = "btc-usd"
	rep := Validate(order, goodAccount(), DefaultConfig(), tradingDay)
	assert.False(t, rep.Accepted, "lowercase and punctuation fail the format check")

	cfg := DefaultConfig()
	cfg.Symbols = []string{"MSFT", "NVDA"}
	rep = Validate(goodOrder(), goodAccount(), cfg, tradingDay)
	assert.False(t, rep.Accepted, "AAPL is not on the allow-list")
	assert.Equal(t, SeverityError, resultFor(t, rep, RuleSymbol).Severity)
}

func TestValidateOvernightWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TradingStart = "22:00"
	cfg.TradingEnd = "04:00"

	inside := time.Date(2026, 3, 3, 23, 30, 0, 0, time.UTC)
	outside := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)

	assert.True(t, resultFor(t, Validate(goodOrder(), goodAccount(), cfg, inside), RuleMarketHours).Passed)
	assert.False(t, resultFor(t, Validate(goodOrder(), goodAccount(), cfg, outside), RuleMarketHours).Passed)
}

func TestValidateIsPure(t *testing.T) {
	order, acct, cfg := goodOrder(), goodAccount(), DefaultConfig()
	first := Validate(order, acct, cfg, tradingDay)
	second := Validate(order, acct, cfg, tradingDay)
	assert.Equal(t, first, second)
}

func TestBalanceRuleProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("orders above available cash are always rejected with a balance ERROR", prop.ForAll(
		func(qty int, price, balance float64) bool {
			order := types.OrderRequest{Symbol: "AAPL", Side: types.OrderSideBuy, Quantity: float64(qty), Price: price}
			acct := AccountState{Balance: balance, LastQuote: price, PortfolioValue: balance}
			if float64(qty)*price <= balance {
				return true
			}
			rep := Validate(order, acct, DefaultConfig(), tradingDay)
			if rep.Accepted {
				return false
			}
			for _, r := range rep.Results {
				if r.Rule == RuleBalance && !r.Passed && r.Severity == SeverityError {
					return true
				}
			}
			return false
		},
		gen.IntRange(1, 10_000),
		gen.Float64Range(1, 1000),
		gen.Float64Range(100, 1_000_000),
	))

	properties.TestingRun(t)
}
