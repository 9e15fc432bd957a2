package core

// DemandPolicy turns a session's rate history into the demand the epoch
// pass schedules against. requestedRate is the floor declared at LoadModel
// time.
type DemandPolicy func(history []float64, requestedRate float64) float64

// MeanDemandPolicy is the default: mean of the observed window, clamped to
// never drop below a tenth of the declared rate nor exceed ten times it.
// With no history yet the declared rate stands. The mean over a bounded
// window moves at most one sample's worth per beacon, so the output is
// smooth in the observed rates. The floor holds even when every observation
// sits below it, so a declared session keeps a minimum footprint instead of
// shrinking to nothing.
func MeanDemandPolicy(history []float64, requestedRate float64) float64 {
	if len(history) == 0 {
		return requestedRate
	}
	var sum float64
	for _, rate := range history {
		sum += rate
	}
	mean := sum / float64(len(history))
	if floor := requestedRate * 0.1; mean < floor {
		return floor
	}
	if ceil := requestedRate * 10; requestedRate > 0 && mean > ceil {
		return ceil
	}
	return mean
}
