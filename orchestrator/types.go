package orchestrator

import (
	"time"

	"github.com/maastricht-university/meeting-transcription/attribution"
)

// SpeakerStats aggregates one speaker's share of the meeting.
type SpeakerStats struct {
	Speaker attribution.SpeakerID `json:"speaker"`
	Turns   int                   `json:"turns"`
	Words   int                   `json:"words"`
	// WordShare is Words over all words spoken, 0..1.
	WordShare float64 `json:"word_share"`
}

type Summary struct {
	Entries  int            `json:"entries"`
	Words    int            `json:"words"`
	Speakers []SpeakerStats `json:"speakers"`
	// Switches counts adjacent entries with different speakers.
	Switches int `json:"switches"`
}

// Bundle is everything persisted about one session.
type Bundle struct {
	SessionID    string                    `json:"session_id"`
	Source       string                    `json:"source"`
	Recognizer   string                    `json:"recognizer"`
	StartedAt    time.Time                 `json:"started_at"`
	EndedAt      time.Time                 `json:"ended_at"`
	Transcript   []attribution.Entry       `json:"transcript"`
	Fingerprints []attribution.Fingerprint `json:"fingerprints"`
	Summary      Summary                   `json:"summary"`
}

// Report is what Run hands back.
type Report struct {
	Bundle Bundle
	// Dir is the session output directory, empty when nothing was written.
	Dir   string
	Files []string
}
