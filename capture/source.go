// Package capture provides PCM16 audio sources: any byte stream, or a live
// microphone / shared display audio captured through ffmpeg.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNoInput is returned when a source has nothing to read from.
var ErrNoInput = errors.New("capture: no input")

// Chunk is a block of mono PCM16 samples.
type Chunk struct {
	Samples    []int16
	SampleRate int
}

// Bytes returns the chunk as little-endian PCM16.
func (c Chunk) Bytes() []byte {
	buf := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

// Duration returns the playing time of the chunk.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// FromBytes decodes little-endian PCM16. A trailing odd byte is dropped.
func FromBytes(data []byte, sampleRate int) Chunk {
	c := Chunk{SampleRate: sampleRate, Samples: make([]int16, len(data)/2)}
	for i := range c.Samples {
		c.Samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return c
}

// Source produces audio chunks until it is closed or its input ends.
type Source interface {
	// Start begins capture. Chunks is valid after Start returns.
	Start(ctx context.Context) error
	// Chunks is closed when capture ends.
	Chunks() <-chan Chunk
	// Err reports why capture ended, nil on a clean end of input.
	Err() error
	Name() string
	io.Closer
}

// ReaderSource reads raw PCM16 from an io.Reader.
type ReaderSource struct {
	r          io.Reader
	sampleRate int
	chunkBytes int
	log        *logrus.Entry

	ch   chan Chunk
	mu   sync.Mutex
	err  error
	once  sync.Once
	done  chan struct{}
	ended chan struct{}
}

// NewReaderSource reads chunk-sized blocks of PCM16 at sampleRate from r.
func NewReaderSource(r io.Reader, sampleRate int, chunk time.Duration) *ReaderSource {
	n := int(float64(sampleRate)*chunk.Seconds()) * 2
	if n < 2 {
		n = 2
	}
	return &ReaderSource{
		r:          r,
		sampleRate: sampleRate,
		chunkBytes: n,
		log:        logrus.WithField("component", "capture"),
		ch:         make(chan Chunk, 16),
		done:       make(chan struct{}),
		ended:      make(chan struct{}),
	}
}

func (s *ReaderSource) Name() string { return "reader" }

func (s *ReaderSource) Chunks() <-chan Chunk { return s.ch }

func (s *ReaderSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *ReaderSource) Start(ctx context.Context) error {
	if s.r == nil {
		return ErrNoInput
	}
	go s.run(ctx)
	return nil
}

func (s *ReaderSource) run(ctx context.Context) {
	defer close(s.ended)
	defer close(s.ch)
	buf := make([]byte, s.chunkBytes)
	for {
		n, err := io.ReadFull(s.r, buf)
		if n >= 2 {
			select {
			case s.ch <- FromBytes(buf[:n], s.sampleRate):
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			s.log.Debug("input ended")
			return
		default:
			select {
			case <-s.done:
			default:
				s.setErr(fmt.Errorf("capture read: %w", err))
			}
			return
		}
	}
}

func (s *ReaderSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Close stops delivery. A reader blocked in Read is not interrupted unless
// it is also an io.Closer.
func (s *ReaderSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if c, ok := s.r.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
