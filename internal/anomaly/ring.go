package anomaly

import "math"

// ring is a fixed-capacity rolling window of float64 samples. Once full,
// new samples overwrite the oldest.
type ring struct {
	buf  []float64
	head int
	n    int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]float64, capacity)}
}

func (r *ring) Push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

func (r *ring) Len() int { return r.n }

// Stats returns the mean and population standard deviation of the window.
func (r *ring) Stats() (mean, std float64) {
	if r.n == 0 {
		return 0, 0
	}
	sum := 0.0
	for i := 0; i < r.n; i++ {
		sum += r.buf[i]
	}
	mean = sum / float64(r.n)
	variance := 0.0
	for i := 0; i < r.n; i++ {
		d := r.buf[i] - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(r.n))
}

// Values returns the window contents oldest-first, for serialization.
func (r *ring) Values() []float64 {
	out := make([]float64, 0, r.n)
	if r.n < len(r.buf) {
		out = append(out, r.buf[:r.n]...)
		return out
	}
	out = append(out, r.buf[r.head:]...)
	out = append(out, r.buf[:r.head]...)
	return out
}

// Restore refills the window from an oldest-first slice.
func (r *ring) Restore(values []float64) {
	r.head, r.n = 0, 0
	for _, v := range values {
		r.Push(v)
	}
}
