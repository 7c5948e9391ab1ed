package signal

import (
	"errors"
	"math"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// ScoreSource supplies an externally computed sentiment score in [-1,1] for
// an instrument. The classifier behind it (news model, social feed) is an
// external collaborator; this provider only adapts its output to the common
// signal contract.
type ScoreSource interface {
	Score(symbol string) (float64, bool)
}

// ScoreFunc adapts a plain function to a ScoreSource.
type ScoreFunc func(symbol string) (float64, bool)

func (f ScoreFunc) Score(symbol string) (float64, bool) { return f(symbol) }

// SentimentProvider converts an external sentiment score into a Signal.
type SentimentProvider struct {
	source    ScoreSource
	threshold float64 // minimum |score| to leave HOLD
}

func NewSentimentProvider(source ScoreSource) *SentimentProvider {
	return &SentimentProvider{source: source, threshold: 0.2}
}

func (p *SentimentProvider) Name() string { return "sentiment" }

func (p *SentimentProvider) Predict(snapshot *types.Snapshot) (Signal, error) {
	if snapshot == nil || snapshot.Stale {
		return Signal{}, errors.New("sentiment: stale or missing snapshot")
	}
	score, ok := p.source.Score(snapshot.Symbol)
	if !ok {
		return Signal{}, errors.New("sentiment: no score available")
	}
	if math.IsNaN(score) {
		return Signal{}, errors.New("sentiment: score is NaN")
	}
	score = math.Max(-1, math.Min(1, score))

	action := ActionHold
	if score >= p.threshold {
		action = ActionBuy
	} else if score <= -p.threshold {
		action = ActionSell
	}
	return New(p.Name(), action, math.Abs(score), score), nil
}
