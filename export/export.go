// Package export renders attributed transcripts: the plain text download
// format, a markdown report and a live terminal view.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/maastricht-university/meeting-transcription/attribution"
)

// TextFileName is the default name of the plain text export.
const TextFileName = "meeting-transcript.txt"

// Text writes one "Speaker N: text" paragraph per entry.
func Text(w io.Writer, entries []attribution.Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "Speaker %d: %s\n\n", int(e.Speaker), e.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Meta describes the session in the markdown header.
type Meta struct {
	Title      string
	SessionID  string
	Source     string
	Recognizer string
	Started    time.Time
	Duration   time.Duration
	Speakers   int
}

// Markdown writes a meeting report with a metadata list followed by the
// transcript.
func Markdown(w io.Writer, meta Meta, entries []attribution.Entry) error {
	var b strings.Builder
	if meta.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", meta.Title)
	} else {
		b.WriteString("# Meeting Transcript\n\n")
	}
	if meta.SessionID != "" {
		fmt.Fprintf(&b, "- Session: `%s`\n", meta.SessionID)
	}
	if meta.Source != "" {
		fmt.Fprintf(&b, "- Source: `%s`\n", meta.Source)
	}
	if meta.Recognizer != "" {
		fmt.Fprintf(&b, "- Recognizer: `%s`\n", meta.Recognizer)
	}
	if !meta.Started.IsZero() {
		fmt.Fprintf(&b, "- Started: %s\n", meta.Started.Format(time.RFC3339))
	}
	if meta.Duration > 0 {
		fmt.Fprintf(&b, "- Duration: %s\n", meta.Duration.Truncate(time.Second))
	}
	fmt.Fprintf(&b, "- Speakers: %d\n", meta.Speakers)
	b.WriteString("\n---\n\n")

	if len(entries) == 0 {
		b.WriteString("_No speech was transcribed._\n")
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "**Speaker %d:** %s\n\n", int(e.Speaker), strings.TrimSpace(e.Text))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
