// Package attribution assigns transcript segments to speakers using
// signal-level heuristics only. There are no enrolled voice profiles:
// speakers are told apart by coarse spectral features captured while they
// talk, and identities are only stable within one session.
//
// The package has three parts. ChangeDetector decides whether the latest
// features differ enough from the active speaker's. Registry keeps one
// fingerprint per confirmed speaker and finds the nearest match. Attributor
// is the state machine tying both to the transcript and to the silence
// expiry that breaks speaker continuity.
package attribution

import (
	"fmt"

	"github.com/maastricht-university/meeting-transcription/features"
)

// SpeakerID identifies a speaker within one session. IDs start at 1 and are
// never reused; the zero value means "no speaker".
type SpeakerID int

func (id SpeakerID) String() string {
	if id == 0 {
		return "none"
	}
	return fmt.Sprintf("Speaker %d", int(id))
}

// Entry is one transcript line.
type Entry struct {
	Speaker SpeakerID `json:"speaker"`
	Text    string    `json:"text"`
}

// ActiveState is the speaker currently holding the floor. ID == 0 means
// continuity was lost and the next segment takes a fresh decision.
type ActiveState struct {
	ID       SpeakerID
	Features *features.Vector
}

// ChangeKind tells observers what happened to the transcript.
type ChangeKind int

const (
	// Appended means a new entry was added at Index.
	Appended ChangeKind = iota
	// Extended means the entry at Index got more text.
	Extended
	// Expired means the silence timer broke continuity. Index is -1.
	Expired
	// Reset means a new session started and the transcript is empty.
	Reset
)

func (k ChangeKind) String() string {
	switch k {
	case Appended:
		return "appended"
	case Extended:
		return "extended"
	case Expired:
		return "expired"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is delivered to observers after every transcript mutation.
type Change struct {
	Kind  ChangeKind
	Index int
	Entry Entry
	// NewSpeaker is set when an Appended entry minted a new SpeakerID.
	NewSpeaker bool
}
