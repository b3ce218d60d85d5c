package attribution

import (
	"sort"

	"github.com/maastricht-university/meeting-transcription/features"
)

// MatchThresholds are the strict per-axis deltas a fingerprint must stay
// under to earn a point, and the points needed to count as a match.
type MatchThresholds struct {
	Frequency float64 `yaml:"frequency" mapstructure:"frequency"`
	Energy    float64 `yaml:"energy" mapstructure:"energy"`
	// Ratio has been run at both 0.2 and 0.3; 0.2 is the stricter default.
	Ratio    float64 `yaml:"ratio" mapstructure:"ratio"`
	MinScore int     `yaml:"min_score" mapstructure:"min_score"`
}

// DefaultMatchThresholds returns the default registry thresholds.
func DefaultMatchThresholds() MatchThresholds {
	return MatchThresholds{Frequency: 15, Energy: 800, Ratio: 0.2, MinScore: 2}
}

// Fingerprint is the feature snapshot a speaker was confirmed with.
type Fingerprint struct {
	Speaker  SpeakerID       `json:"speaker"`
	Features features.Vector `json:"features"`
}

// Registry holds one fingerprint per known speaker. It is not safe for
// concurrent use; the Attributor serialises access.
type Registry struct {
	th    MatchThresholds
	ids   []SpeakerID // ascending
	table map[SpeakerID]features.Vector
}

// NewRegistry creates an empty Registry.
func NewRegistry(th MatchThresholds) *Registry {
	return &Registry{th: th, table: make(map[SpeakerID]features.Vector)}
}

// Thresholds returns the registry's thresholds.
func (r *Registry) Thresholds() MatchThresholds { return r.th }

// Register stores v as the fingerprint for id, replacing any previous one.
func (r *Registry) Register(id SpeakerID, v features.Vector) {
	if _, ok := r.table[id]; !ok {
		i := sort.Search(len(r.ids), func(i int) bool { return r.ids[i] >= id })
		r.ids = append(r.ids, 0)
		copy(r.ids[i+1:], r.ids[i:])
		r.ids[i] = id
	}
	r.table[id] = v
}

// Match returns the registered speaker closest to v. Each axis under its
// threshold scores a point; the best score must reach MinScore. Ties go to
// the lowest SpeakerID.
func (r *Registry) Match(v features.Vector) (SpeakerID, bool) {
	var best SpeakerID
	bestScore := 0
	for _, id := range r.ids {
		if s := r.score(v, r.table[id]); s > bestScore {
			best, bestScore = id, s
		}
	}
	if best == 0 || bestScore < r.th.MinScore {
		return 0, false
	}
	return best, true
}

func (r *Registry) score(a, b features.Vector) int {
	df, de, dr := deltas(a, b)
	s := 0
	if df < r.th.Frequency {
		s++
	}
	if de < r.th.Energy {
		s++
	}
	if dr < r.th.Ratio {
		s++
	}
	return s
}

// Len returns the number of registered speakers.
func (r *Registry) Len() int { return len(r.ids) }

// Fingerprints returns all fingerprints in ascending SpeakerID order.
func (r *Registry) Fingerprints() []Fingerprint {
	out := make([]Fingerprint, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, Fingerprint{Speaker: id, Features: r.table[id]})
	}
	return out
}

// Reset forgets every speaker.
func (r *Registry) Reset() {
	r.ids = r.ids[:0]
	clear(r.table)
}
