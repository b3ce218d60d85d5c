package attribution

import (
	"math"

	"github.com/maastricht-university/meeting-transcription/features"
)

// ChangeThresholds are the per-axis deltas above which a speaker change is
// assumed. Any single axis crossing its threshold is enough.
type ChangeThresholds struct {
	Frequency float64 `yaml:"frequency" mapstructure:"frequency"`
	Energy    float64 `yaml:"energy" mapstructure:"energy"`
	Ratio     float64 `yaml:"ratio" mapstructure:"ratio"`
}

// DefaultChangeThresholds returns the empirically fixed change thresholds.
func DefaultChangeThresholds() ChangeThresholds {
	return ChangeThresholds{Frequency: 20, Energy: 1000, Ratio: 0.3}
}

// ChangeDetector compares the latest features against the active speaker.
type ChangeDetector struct {
	th ChangeThresholds
}

// NewChangeDetector creates a ChangeDetector with the given thresholds.
func NewChangeDetector(th ChangeThresholds) *ChangeDetector {
	return &ChangeDetector{th: th}
}

// Thresholds returns the detector's thresholds.
func (d *ChangeDetector) Thresholds() ChangeThresholds { return d.th }

// IsChange reports whether current belongs to someone other than active.
//
// Without continuity (active.ID == 0) the answer is always yes. Without a
// current snapshot the current speaker continues, unless there is nothing to
// compare against either.
func (d *ChangeDetector) IsChange(current *features.Vector, active ActiveState) bool {
	if active.ID == 0 {
		return true
	}
	if current == nil {
		return active.Features == nil
	}
	if active.Features == nil {
		return true
	}

	df, de, dr := deltas(*current, *active.Features)
	return df > d.th.Frequency || de > d.th.Energy || dr > d.th.Ratio
}

func deltas(a, b features.Vector) (freq, energy, ratio float64) {
	return math.Abs(a.AverageFrequency - b.AverageFrequency),
		math.Abs(a.Energy - b.Energy),
		math.Abs(a.Ratio - b.Ratio)
}
