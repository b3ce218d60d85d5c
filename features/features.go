// Package features reduces frequency-domain audio snapshots to the compact
// vectors used for speaker attribution.
package features

// Vector is a five-number summary of one frequency snapshot.
type Vector struct {
	AverageFrequency float64 `json:"average_frequency"`
	Energy           float64 `json:"energy"`
	LowFreqEnergy    float64 `json:"low_freq_energy"`
	HighFreqEnergy   float64 `json:"high_freq_energy"`
	Ratio            float64 `json:"ratio"`
}

// Extract summarises bins, a snapshot of unsigned byte magnitudes.
// It returns false for an empty snapshot; callers skip that tick.
func Extract(bins []byte) (Vector, bool) {
	n := len(bins)
	if n == 0 {
		return Vector{}, false
	}

	half := n / 2
	var sum, energy, low, high float64
	for i, b := range bins {
		m := float64(b)
		sum += m
		energy += m * m
		if i < half {
			low += m * m
		} else {
			high += m * m
		}
	}

	// per-half energies are reported over N/2 bins each
	halfN := float64(n) / 2
	return Vector{
		AverageFrequency: sum / float64(n),
		Energy:           energy / float64(n),
		LowFreqEnergy:    low / halfN,
		HighFreqEnergy:   high / halfN,
		Ratio:            low / max(high, 1),
	}, true
}
