package orchestrator

import (
	"sort"
	"strings"

	"github.com/maastricht-university/meeting-transcription/attribution"
)

// summarize computes per speaker turns and word share. Speakers are
// ordered by id.
func summarize(entries []attribution.Entry) Summary {
	s := Summary{Entries: len(entries)}
	if len(entries) == 0 {
		return s
	}

	stats := map[attribution.SpeakerID]*SpeakerStats{}
	var prev attribution.SpeakerID
	for i, e := range entries {
		st, ok := stats[e.Speaker]
		if !ok {
			st = &SpeakerStats{Speaker: e.Speaker}
			stats[e.Speaker] = st
		}
		n := len(strings.Fields(e.Text))
		st.Turns++
		st.Words += n
		s.Words += n
		if i > 0 && e.Speaker != prev {
			s.Switches++
		}
		prev = e.Speaker
	}

	for _, st := range stats {
		if s.Words > 0 {
			st.WordShare = float64(st.Words) / float64(s.Words)
		}
		s.Speakers = append(s.Speakers, *st)
	}
	sort.Slice(s.Speakers, func(i, j int) bool { return s.Speakers[i].Speaker < s.Speakers[j].Speaker })
	return s
}
