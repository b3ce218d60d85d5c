package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// FFmpegConfig selects the capture device.
type FFmpegConfig struct {
	Binary string
	// Driver is the ffmpeg input format: pulse, alsa, avfoundation, dshow.
	Driver string
	Device string
	// Display captures the monitor of the output device instead of a mic.
	Display    bool
	SampleRate int
	Chunk      time.Duration
}

// FFmpegSource captures live audio by running ffmpeg and reading mono
// s16le from its stdout.
type FFmpegSource struct {
	cfg    FFmpegConfig
	log    *logrus.Entry
	ctx    context.Context
	cmd    *exec.Cmd
	stderr lockedBuffer
	closed atomic.Bool

	waitOnce sync.Once
	waitErr  error
	*ReaderSource
}

// lockedBuffer collects ffmpeg's stderr, which exec copies from its own
// goroutine.
type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

// NewFFmpegSource creates an unstarted ffmpeg capture.
func NewFFmpegSource(cfg FFmpegConfig) *FFmpegSource {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.Driver == "" {
		cfg.Driver = "pulse"
	}
	if cfg.Device == "" || (cfg.Display && cfg.Device == "default") {
		cfg.Device = defaultDevice(cfg.Driver, cfg.Display)
	}
	return &FFmpegSource{cfg: cfg, log: logrus.WithField("component", "capture")}
}

func defaultDevice(driver string, display bool) string {
	switch driver {
	case "pulse":
		if display {
			return "@DEFAULT_MONITOR@"
		}
		return "default"
	case "avfoundation":
		return ":0"
	default:
		return "default"
	}
}

// Args returns the ffmpeg command line after the binary.
func (s *FFmpegSource) Args() []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", s.cfg.Driver, "-i", s.cfg.Device,
		"-ac", "1", "-ar", strconv.Itoa(s.cfg.SampleRate),
		"-f", "s16le", "-",
	}
}

func (s *FFmpegSource) Name() string {
	if s.cfg.Display {
		return "display"
	}
	return "mic"
}

func (s *FFmpegSource) Start(ctx context.Context) error {
	s.ctx = ctx
	s.cmd = exec.CommandContext(ctx, s.cfg.Binary, s.Args()...)
	s.cmd.Stderr = &s.stderr
	s.cmd.WaitDelay = time.Second
	out, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"source": s.Name(),
		"driver": s.cfg.Driver,
		"device": s.cfg.Device,
	}).Info("capture started")

	s.ReaderSource = NewReaderSource(out, s.cfg.SampleRate, s.cfg.Chunk)
	return s.ReaderSource.Start(ctx)
}

// wait reaps ffmpeg. It must only run once stdout is no longer read.
func (s *FFmpegSource) wait() error {
	s.waitOnce.Do(func() { s.waitErr = s.cmd.Wait() })
	return s.waitErr
}

// Err reports a read failure or, once the output has ended, a failed ffmpeg
// exit, with ffmpeg's own complaint attached. An exit caused by Close or by
// cancelling the start context is not an error.
func (s *FFmpegSource) Err() error {
	if s.ReaderSource == nil {
		return nil
	}
	if err := s.ReaderSource.Err(); err != nil {
		if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	select {
	case <-s.ReaderSource.ended:
	default:
		return nil
	}
	err := s.wait()
	if err == nil || s.closed.Load() || s.ctx.Err() != nil {
		return nil
	}
	if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return fmt.Errorf("ffmpeg: %w", err)
}

// Close stops ffmpeg and the reader.
func (s *FFmpegSource) Close() error {
	if s.ReaderSource == nil {
		return nil
	}
	s.closed.Store(true)
	err := s.ReaderSource.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.wait()
	}
	return err
}
