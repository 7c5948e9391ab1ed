package validation

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// Severity tags one rule outcome. ERROR blocks the order; WARNING and INFO
// pass through but stay in the audit trail.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Rule names, in evaluation order.
const (
	RuleBalance        = "sufficient_balance"
	RulePositionCeil   = "position_ceiling"
	RuleMarketHours    = "market_hours"
	RulePriceDeviation = "price_deviation"
	RuleQuantity       = "quantity"
	RuleDailyLimit     = "daily_order_limit"
	RuleExposure       = "exposure_ceiling"
	RuleSymbol         = "symbol"
)

// Result is one rule's outcome. Passing rules are reported too so the full
// audit trail survives into the decision record.
type Result struct {
	Rule     string   `json:"rule"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Report is the full validation outcome for one proposed order.
type Report struct {
	Accepted bool     `json:"accepted"`
	Results  []Result `json:"results"`
}

// AccountState is the read-only snapshot the validator judges against.
type AccountState struct {
	Balance        float64 // available cash
	LastQuote      float64 // last known market price for the instrument
	OrdersToday    int     // orders already submitted this session
	PositionValue  float64 // current position value in this instrument
	PortfolioValue float64 // total portfolio value including cash
}

// Config holds the fixed rule thresholds.
type Config struct {
	MaxOrderValue     float64  `yaml:"max_order_value" json:"max_order_value"`
	TradingStart      string   `yaml:"trading_start" json:"trading_start"` // "15:04", empty means always open
	TradingEnd        string   `yaml:"trading_end" json:"trading_end"`
	SkipWeekends      bool     `yaml:"skip_weekends" json:"skip_weekends"`
	MaxPriceDeviation float64  `yaml:"max_price_deviation" json:"max_price_deviation"` // fraction of last quote
	MaxDailyOrders    int      `yaml:"max_daily_orders" json:"max_daily_orders"`
	MaxExposurePct    float64  `yaml:"max_exposure_pct" json:"max_exposure_pct"` // per instrument, fraction of portfolio
	Symbols           []string `yaml:"symbols" json:"symbols"`                   // allow-list, empty disables membership check
}

func DefaultConfig() Config {
	return Config{
		MaxOrderValue:     250_000,
		MaxPriceDeviation: 0.05,
		MaxDailyOrders:    20,
		MaxExposurePct:    0.30,
	}
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,12}$`)

// Validate applies the fixed rule set to one proposed order. It is a pure
// function of its arguments: the session clock arrives as an explicit
// timestamp and no state is read or written anywhere else. The order is
// accepted only when no ERROR-level result is present.
func Validate(order types.OrderRequest, acct AccountState, cfg Config, now time.Time) Report {
	value := order.Quantity * order.Price
	results := make([]Result, 0, 8)

	// 1. Sufficient balance.
	results = append(results, check(RuleBalance, SeverityError,
		value <= acct.Balance,
		fmt.Sprintf("order value %.2f vs available %.2f", value, acct.Balance)))

	// 2. Absolute position-size ceiling.
	results = append(results, check(RulePositionCeil, SeverityError,
		cfg.MaxOrderValue <= 0 || value <= cfg.MaxOrderValue,
		fmt.Sprintf("order value %.2f vs ceiling %.2f", value, cfg.MaxOrderValue)))

	// 3. Market hours.
	results = append(results, check(RuleMarketHours, SeverityWarning,
		withinTradingWindow(cfg, now),
		fmt.Sprintf("submitted at %s", now.Format("Mon 15:04 MST"))))

	// 4. Price deviation from the last quote.
	devOK := false
	devMsg := "no reference quote available"
	if acct.LastQuote > 0 {
		dev := math.Abs(order.Price-acct.LastQuote) / acct.LastQuote
		devOK = dev <= cfg.MaxPriceDeviation
		devMsg = fmt.Sprintf("deviation %.2f%% vs limit %.2f%%", dev*100, cfg.MaxPriceDeviation*100)
	}
	results = append(results, check(RulePriceDeviation, SeverityError, devOK, devMsg))

	// 5. Quantity validity.
	results = append(results, check(RuleQuantity, SeverityError,
		order.Quantity > 0 && order.Quantity == math.Trunc(order.Quantity),
		fmt.Sprintf("quantity %v must be a positive whole number", order.Quantity)))

	// 6. Daily order-count ceiling.
	results = append(results, check(RuleDailyLimit, SeverityError,
		cfg.MaxDailyOrders <= 0 || acct.OrdersToday < cfg.MaxDailyOrders,
		fmt.Sprintf("%d of %d orders used today", acct.OrdersToday, cfg.MaxDailyOrders)))

	// 7. Per-instrument exposure ceiling.
	expOK := true
	expMsg := "portfolio value unknown, exposure not assessed"
	if acct.PortfolioValue > 0 && cfg.MaxExposurePct > 0 {
		exposure := (acct.PositionValue + value) / acct.PortfolioValue
		expOK = exposure <= cfg.MaxExposurePct
		expMsg = fmt.Sprintf("exposure %.2f%% vs limit %.2f%%", exposure*100, cfg.MaxExposurePct*100)
	}
	results = append(results, check(RuleExposure, SeverityWarning, expOK, expMsg))

	// 8. Symbol format and membership.
	symOK := symbolPattern.MatchString(order.Symbol)
	if symOK && len(cfg.Symbols) > 0 {
		symOK = false
		for _, s := range cfg.Symbols {
			if s == order.Symbol {
				symOK = true
				break
			}
		}
	}
	results = append(results, check(RuleSymbol, SeverityError, symOK,
		fmt.Sprintf("symbol %q", order.Symbol)))

	accepted := true
	for _, r := range results {
		if !r.Passed && r.Severity == SeverityError {
			accepted = false
			break
		}
	}
	return Report{Accepted: accepted, Results: results}
}

func check(rule string, sev Severity, passed bool, msg string) Result {
	r := Result{Rule: rule, Passed: passed, Message: msg, Severity: sev}
	if passed {
		r.Severity = SeverityInfo
	}
	return r
}

func withinTradingWindow(cfg Config, now time.Time) bool {
	if cfg.SkipWeekends {
		if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	if cfg.TradingStart == "" || cfg.TradingEnd == "" {
		return true
	}
	start, err := time.Parse("15:04", cfg.TradingStart)
	if err != nil {
		return true
	}
	end, err := time.Parse("15:04", cfg.TradingEnd)
	if err != nil {
		return true
	}
	mins := now.Hour()*60 + now.Minute()
	startMins := start.Hour()*60 + start.Minute()
	endMins := end.Hour()*60 + end.Minute()
	if startMins <= endMins {
		return mins >= startMins && mins < endMins
	}
	// Window crossing midnight.
	return mins >= startMins || mins < endMins
}
