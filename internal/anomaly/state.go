package anomaly

// DetectorState is the serializable rolling-window snapshot. The
// reconstructor is retrained from data on start and is not carried here.
type DetectorState struct {
	Ranges  []float64 `json:"ranges"`
	Volumes []float64 `json:"volumes"`
}

func (d *Detector) Export() DetectorState {
	return DetectorState{Ranges: d.ranges.Values(), Volumes: d.volumes.Values()}
}

func (d *Detector) Restore(st DetectorState) {
	d.ranges.Restore(st.Ranges)
	d.volumes.Restore(st.Volumes)
}
