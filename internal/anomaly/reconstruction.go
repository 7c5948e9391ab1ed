package anomaly

import (
	"errors"
	"math"
	"sort"
)

// Reconstructor is an unsupervised pattern scorer. It fits a per-feature
// mean/deviation model on windows of normal market behavior; at evaluation
// time the reconstruction error of an input is its mean squared deviation
// from the trained profile in normalized feature space. Inputs whose error
// exceeds a percentile threshold of the training-time errors are anomalous.
type Reconstructor struct {
	means      []float64
	stds       []float64
	threshold  float64
	percentile float64
	trained    bool
}

// NewReconstructor creates an untrained scorer with the given percentile
// threshold (e.g. 0.95 flags errors above the 95th training percentile).
func NewReconstructor(percentile float64) *Reconstructor {
	if percentile <= 0 || percentile >= 1 {
		percentile = 0.95
	}
	return &Reconstructor{percentile: percentile}
}

// Fit trains the scorer on feature vectors drawn from normal history.
// All samples must share the same feature dimension.
func (r *Reconstructor) Fit(samples [][]float64) error {
	if len(samples) < 2 {
		return errors.New("reconstructor: need at least two training samples")
	}
	dim := len(samples[0])
	r.means = make([]float64, dim)
	r.stds = make([]float64, dim)

	for _, s := range samples {
		if len(s) != dim {
			return errors.New("reconstructor: inconsistent feature dimensions")
		}
		for j, v := range s {
			r.means[j] += v
		}
	}
	for j := range r.means {
		r.means[j] /= float64(len(samples))
	}
	for _, s := range samples {
		for j, v := range s {
			d := v - r.means[j]
			r.stds[j] += d * d
		}
	}
	for j := range r.stds {
		r.stds[j] = math.Sqrt(r.stds[j] / float64(len(samples)))
		if r.stds[j] == 0 {
			r.stds[j] = 1
		}
	}

	// Threshold at the configured percentile of training errors.
	r.trained = true
	errs := make([]float64, len(samples))
	for i, s := range samples {
		errs[i] = r.Error(s)
	}
	sort.Float64s(errs)
	idx := int(math.Ceil(r.percentile*float64(len(errs)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(errs) {
		idx = len(errs) - 1
	}
	r.threshold = errs[idx]
	if r.threshold <= 0 {
		r.threshold = 1e-9
	}
	return nil
}

// Error returns the reconstruction error of a feature vector: the mean
// squared z-deviation from the trained profile.
func (r *Reconstructor) Error(features []float64) float64 {
	if !r.trained || len(features) != len(r.means) {
		return 0
	}
	sum := 0.0
	for j, v := range features {
		z := (v - r.means[j]) / r.stds[j]
		sum += z * z
	}
	return sum / float64(len(features))
}

func (r *Reconstructor) Trained() bool       { return r.trained }
func (r *Reconstructor) Threshold() float64  { return r.threshold }
func (r *Reconstructor) Percentile() float64 { return r.percentile }
