package signal

import (
	"errors"
	"math"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// TechnicalProvider scores the snapshot's derived indicators with a fixed
// rule set and votes by weighted consensus: RSI extremes, MACD crossover,
// Bollinger band position and the SMA trend each contribute one vote.
type TechnicalProvider struct {
	rsiOversold   float64
	rsiOverbought float64
}

func NewTechnicalProvider() *TechnicalProvider {
	return &TechnicalProvider{
		rsiOversold:   30,
		rsiOverbought: 70,
	}
}

func (p *TechnicalProvider) Name() string { return "technical" }

func (p *TechnicalProvider) Predict(snapshot *types.Snapshot) (Signal, error) {
	if snapshot == nil || snapshot.Stale {
		return Signal{}, errors.New("technical: stale or missing snapshot")
	}
	ind := snapshot.Indicators
	price := snapshot.Bar.Close
	if price <= 0 || ind.ATR <= 0 {
		return Signal{}, errors.New("technical: snapshot carries no indicator values")
	}

	buy, sell := 0.0, 0.0

	// RSI: distance past the threshold scales the vote.
	if ind.RSI <= p.rsiOversold {
		buy += 1 + (p.rsiOversold-ind.RSI)/p.rsiOversold
	} else if ind.RSI >= p.rsiOverbought {
		sell += 1 + (ind.RSI-p.rsiOverbought)/(100-p.rsiOverbought)
	}

	// MACD line above its signal favors longs.
	if ind.MACD > ind.MACDSignal {
		buy++
	} else if ind.MACD < ind.MACDSignal {
		sell++
	}

	// Bollinger: closes outside the band are mean-reversion votes.
	if price <= ind.BollingerLower {
		buy++
	} else if price >= ind.BollingerUpper {
		sell++
	}

	// SMA trend filter.
	if ind.SMAFast > ind.SMASlow {
		buy++
	} else if ind.SMAFast < ind.SMASlow {
		sell++
	}

	const maxVotes = 5.0
	raw := (buy - sell) / maxVotes
	conf := math.Abs(raw)

	action := ActionHold
	switch {
	case buy > sell && conf >= 0.3:
		action = ActionBuy
	case sell > buy && conf >= 0.3:
		action = ActionSell
	default:
		// No consensus keeps us flat; confidence reflects how close it was.
	}

	return New(p.Name(), action, conf, raw), nil
}
