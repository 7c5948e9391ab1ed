package signal

import (
	"errors"
	"math"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// MomentumProvider scores the rate of change of closes over a lookback
// window, normalized by recent volatility so quiet and wild instruments
// produce comparable confidences.
type MomentumProvider struct {
	lookback int
	scale    float64 // return-to-confidence scaling, in units of lookback return
}

func NewMomentumProvider(lookback int) *MomentumProvider {
	if lookback <= 0 {
		lookback = 10
	}
	return &MomentumProvider{lookback: lookback, scale: 0.05}
}

func (p *MomentumProvider) Name() string { return "momentum" }

func (p *MomentumProvider) Predict(snapshot *types.Snapshot) (Signal, error) {
	if snapshot == nil || snapshot.Stale {
		return Signal{}, errors.New("momentum: stale or missing snapshot")
	}
	hist := snapshot.History
	if len(hist) < p.lookback+1 {
		return Signal{}, errors.New("momentum: insufficient history")
	}

	last := hist[len(hist)-1].Close
	ref := hist[len(hist)-1-p.lookback].Close
	if ref <= 0 {
		return Signal{}, errors.New("momentum: non-positive reference price")
	}
	roc := (last - ref) / ref

	raw := roc / p.scale
	conf := math.Min(1, math.Abs(raw))

	action := ActionHold
	if conf >= 0.25 {
		if roc > 0 {
			action = ActionBuy
		} else {
			action = ActionSell
		}
	}
	return New(p.Name(), action, conf, raw), nil
}
