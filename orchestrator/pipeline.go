package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcription/attribution"
	"github.com/maastricht-university/meeting-transcription/capture"
	"github.com/maastricht-university/meeting-transcription/clients"
	cfg "github.com/maastricht-university/meeting-transcription/config"
	"github.com/maastricht-university/meeting-transcription/features"
)

// drainTimeout bounds how long the recognizer may keep delivering results
// after capture has ended.
const drainTimeout = 5 * time.Second

// Session runs one live transcription: capture feeds both the analyser and
// the recognizer, and final recognition results are attributed to speakers.
type Session struct {
	cfg        *cfg.Root
	source     capture.Source
	recognizer clients.Recognizer
	analyser   *features.Analyser
	attr       *attribution.Attributor
	clock      clockwork.Clock
	log        *logrus.Entry
	observers  []func(attribution.Change)
	id         string
}

// Option customises a Session.
type Option func(*Session)

// WithSource replaces the capture source chosen from the config.
func WithSource(src capture.Source) Option {
	return func(s *Session) { s.source = src }
}

// WithRecognizer replaces the recognizer chosen from the config.
func WithRecognizer(r clients.Recognizer) Option {
	return func(s *Session) { s.recognizer = r }
}

// WithClock sets the clock behind timestamps and timeouts.
func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithObserver forwards transcript changes to fn, e.g. a live presenter.
func WithObserver(fn func(attribution.Change)) Option {
	return func(s *Session) { s.observers = append(s.observers, fn) }
}

// NewSession builds a session from c. Source and recognizer come from the
// config unless an option supplies them.
func NewSession(c *cfg.Root, opts ...Option) (*Session, error) {
	s := &Session{
		cfg:   c,
		clock: clockwork.NewRealClock(),
		id:    newSessionID(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = logrus.WithFields(logrus.Fields{"component": "session", "session": s.id})

	if s.source == nil {
		src, err := newSource(c)
		if err != nil {
			return nil, err
		}
		s.source = src
	}
	if s.recognizer == nil {
		s.recognizer = newRecognizer(c)
	}
	if c.Capture.Analyse {
		s.analyser = features.NewAnalyser(c.Analyser)
	}

	aopts := []attribution.Option{
		attribution.WithClock(s.clock),
		attribution.WithLogger(logrus.WithFields(logrus.Fields{"component": "attribution", "session": s.id})),
	}
	for _, fn := range s.observers {
		aopts = append(aopts, attribution.WithObserver(fn))
	}
	s.attr = attribution.New(c.Attribution, aopts...)
	return s, nil
}

func newSource(c *cfg.Root) (capture.Source, error) {
	switch c.Capture.Source {
	case "stdin":
		return capture.NewReaderSource(os.Stdin, c.Audio.SampleRate, c.Capture.Chunk), nil
	case "mic", "display":
		return capture.NewFFmpegSource(capture.FFmpegConfig{
			Binary:     c.Capture.FFmpeg,
			Driver:     c.Capture.Driver,
			Device:     c.Capture.Device,
			Display:    c.Capture.Source == "display",
			SampleRate: c.Audio.SampleRate,
			Chunk:      c.Capture.Chunk,
		}), nil
	default:
		return nil, fmt.Errorf("unknown capture source %q", c.Capture.Source)
	}
}

func newRecognizer(c *cfg.Root) clients.Recognizer {
	if c.Recognizer.Mode == "chunk" {
		return clients.NewChunkRecognizer(clients.ChunkConfig{
			URL:        c.Services.ASR.URL,
			SampleRate: c.Audio.SampleRate,
			Window:     c.Recognizer.ChunkDuration,
		}, clients.NewHTTP())
	}
	return clients.NewStreamRecognizer(clients.StreamConfig{
		URL:            c.Services.Speech.URL,
		APIKey:         c.Recognizer.APIKey,
		SampleRate:     c.Audio.SampleRate,
		LanguageCode:   c.Recognizer.LanguageCode,
		Punctuation:    c.Recognizer.Punctuation,
		InterimResults: c.Recognizer.InterimResults,
		SpeakerCount:   c.Recognizer.SpeakerCount,
		ReconnectDelay: c.Recognizer.ReconnectDelay,
	})
}

// ID returns the session id used for the output directory.
func (s *Session) ID() string { return s.id }

// Attributor exposes the session's attribution state, e.g. for a final
// transcript read.
func (s *Session) Attributor() *attribution.Attributor { return s.attr }

// Run captures until ctx is cancelled, the source runs dry or the
// recognizer gives up. The transcript is persisted in every case; the
// returned error reports why capture or recognition failed, if it did.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	started := s.clock.Now()
	s.attr.Start()

	if err := s.source.Start(ctx); err != nil {
		s.attr.Stop()
		return nil, fmt.Errorf("capture %s: %w", s.source.Name(), err)
	}
	defer s.source.Close()
	s.log.WithFields(logrus.Fields{
		"source":     s.source.Name(),
		"recognizer": s.cfg.Recognizer.Mode,
	}).Info("listening")

	// the recognizer outlives ctx so it can flush its last results
	recCtx, recCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer recCancel()

	audio := make(chan []byte, 32)
	results := make(chan clients.Result, 32)
	recDone := make(chan error, 1)
	go func() {
		err := s.recognizer.Recognize(recCtx, audio, results)
		close(results)
		recDone <- err
	}()
	consumed := make(chan struct{})
	go func() {
		s.consume(results)
		close(consumed)
	}()

	recFinished, recErr := s.pump(ctx, audio, recDone)
	close(audio)
	if !recFinished {
		select {
		case recErr = <-recDone:
		case <-s.clock.After(drainTimeout):
			s.log.Warn("recognizer did not finish in time")
			recCancel()
			recErr = <-recDone
		}
	}
	<-consumed
	s.attr.Stop()

	runErr := errors.Join(s.source.Err(), recErr)
	report, err := s.finish(started)
	if err != nil {
		return report, errors.Join(runErr, err)
	}
	return report, runErr
}

// pump moves captured chunks to the analyser and the recognizer.
func (s *Session) pump(ctx context.Context, audio chan<- []byte, recDone <-chan error) (recFinished bool, recErr error) {
	chunks := s.source.Chunks()
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case err := <-recDone:
			return true, err
		case c, ok := <-chunks:
			if !ok {
				return false, nil
			}
			if s.analyser != nil {
				s.analyser.Feed(c.Samples)
				if bins := s.analyser.Snapshot(); bins != nil {
					s.attr.ObserveBins(bins)
				}
			}
			select {
			case audio <- c.Bytes():
			case <-ctx.Done():
				return false, nil
			case err := <-recDone:
				return true, err
			}
		}
	}
}

// consume attributes final results. Interim hypotheses are only logged.
func (s *Session) consume(results <-chan clients.Result) {
	for r := range results {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		if !r.Final {
			s.log.WithField("text", text).Trace("interim result")
			continue
		}
		s.attr.HandleSegment(text)
	}
}

func (s *Session) finish(started time.Time) (*Report, error) {
	transcript := s.attr.Transcript()
	b := Bundle{
		SessionID:    s.id,
		Source:       s.source.Name(),
		Recognizer:   s.cfg.Recognizer.Mode,
		StartedAt:    started,
		EndedAt:      s.clock.Now(),
		Transcript:   transcript,
		Fingerprints: s.attr.Fingerprints(),
		Summary:      summarize(transcript),
	}
	report := &Report{Bundle: b}
	if s.cfg.Paths.Outputs == "" {
		return report, nil
	}
	dir, files, err := persist(s.cfg.Paths.Outputs, b)
	if err != nil {
		return report, err
	}
	report.Dir, report.Files = dir, files
	s.log.WithFields(logrus.Fields{
		"dir":      dir,
		"entries":  b.Summary.Entries,
		"speakers": len(b.Summary.Speakers),
	}).Info("session saved")
	return report, nil
}
