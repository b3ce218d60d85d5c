package export

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/maastricht-university/meeting-transcription/attribution"
)

var speakerColors = []lipgloss.Color{"39", "212", "82", "214", "141", "86"}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	textStyle  = lipgloss.NewStyle()
)

func speakerStyle(id attribution.SpeakerID) lipgloss.Style {
	c := speakerColors[(int(id)-1+len(speakerColors))%len(speakerColors)]
	return lipgloss.NewStyle().Bold(true).Foreground(c)
}

// Presenter prints transcript changes to a terminal as they happen. Use
// Observe as an attribution observer.
type Presenter struct {
	mu      sync.Mutex
	w       io.Writer
	printed map[int]int
	title   string
}

func NewPresenter(w io.Writer, title string) *Presenter {
	return &Presenter{w: w, printed: map[int]int{}, title: title}
}

// Observe renders one change. Extended entries print only the new text,
// indented under their speaker.
func (p *Presenter) Observe(c attribution.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch c.Kind {
	case attribution.Reset:
		clear(p.printed)
		if p.title != "" {
			fmt.Fprintln(p.w, titleStyle.Render(p.title))
		}
	case attribution.Appended:
		label := speakerStyle(c.Entry.Speaker).Render(c.Entry.Speaker.String() + ":")
		if c.NewSpeaker {
			label += dimStyle.Render(" (new)")
		}
		fmt.Fprintf(p.w, "%s %s\n", label, textStyle.Render(c.Entry.Text))
		p.printed[c.Index] = len(c.Entry.Text)
	case attribution.Extended:
		done := p.printed[c.Index]
		if done > len(c.Entry.Text) {
			done = 0
		}
		rest := strings.TrimSpace(c.Entry.Text[done:])
		if rest != "" {
			fmt.Fprintf(p.w, "  %s\n", textStyle.Render(rest))
		}
		p.printed[c.Index] = len(c.Entry.Text)
	case attribution.Expired:
		fmt.Fprintln(p.w, dimStyle.Render("  ..."))
	}
}
