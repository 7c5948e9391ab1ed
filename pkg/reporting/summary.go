// Package reporting renders engine activity for humans: console tables for
// live runs and an Excel journal for post-run review.
package reporting

import (
	"math"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// Summary condenses a run's closed trades into headline performance
// numbers.
type Summary struct {
	StartBalance  float64
	EndBalance    float64
	TotalReturn   float64 // fractional, (end-start)/start
	MaxDrawdown   float64 // fractional peak-to-trough of the cumulative PnL path
	SharpeRatio   float64 // per-trade, not annualized
	ProfitFactor  float64
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	BestTrade     float64
	WorstTrade    float64
}

// BuildSummary computes a Summary from the realized trade list.
func BuildSummary(startBalance, endBalance float64, trades []types.TradeResult) Summary {
	s := Summary{
		StartBalance: startBalance,
		EndBalance:   endBalance,
		TotalTrades:  len(trades),
	}
	if startBalance > 0 {
		s.TotalReturn = (endBalance - startBalance) / startBalance
	}
	if len(trades) == 0 {
		return s
	}

	var grossProfit, grossLoss float64
	var returns []float64
	equity := startBalance
	peak := startBalance
	for i, tr := range trades {
		if tr.PnL > 0 {
			s.WinningTrades++
			grossProfit += tr.PnL
		} else if tr.PnL < 0 {
			s.LosingTrades++
			grossLoss += -tr.PnL
		}
		if i == 0 || tr.PnL > s.BestTrade {
			s.BestTrade = tr.PnL
		}
		if i == 0 || tr.PnL < s.WorstTrade {
			s.WorstTrade = tr.PnL
		}
		returns = append(returns, tr.ReturnPct)

		equity += tr.PnL
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > s.MaxDrawdown {
				s.MaxDrawdown = dd
			}
		}
	}

	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		s.ProfitFactor = math.Inf(1)
	}
	s.SharpeRatio = sharpe(returns)
	return s
}

func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}
