package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"testing"
	"time"
)

func TestChunkBytesRoundTrip(t *testing.T) {
	c := Chunk{Samples: []int16{0, 1, -1, 32767, -32768, 256}, SampleRate: 16000}
	got := FromBytes(c.Bytes(), 16000)
	if !slices.Equal(got.Samples, c.Samples) {
		t.Errorf("samples = %v, want %v", got.Samples, c.Samples)
	}
}

func TestFromBytesDropsOddByte(t *testing.T) {
	c := FromBytes([]byte{1, 0, 2}, 8000)
	if len(c.Samples) != 1 || c.Samples[0] != 1 {
		t.Errorf("samples = %v, want [1]", c.Samples)
	}
}

func TestChunkDuration(t *testing.T) {
	c := Chunk{Samples: make([]int16, 1600), SampleRate: 16000}
	if d := c.Duration(); d != 100*time.Millisecond {
		t.Errorf("duration = %v, want 100ms", d)
	}
	if d := (Chunk{}).Duration(); d != 0 {
		t.Errorf("zero chunk duration = %v", d)
	}
}

func TestReaderSourceChunks(t *testing.T) {
	// 2.5 chunks of 10 ms at 16 kHz
	samples := make([]int16, 400)
	for i := range samples {
		samples[i] = int16(i)
	}
	data := Chunk{Samples: samples}.Bytes()

	src := NewReaderSource(bytes.NewReader(data), 16000, 10*time.Millisecond)
	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var sizes []int
	var all []int16
	for c := range src.Chunks() {
		sizes = append(sizes, len(c.Samples))
		all = append(all, c.Samples...)
		if c.SampleRate != 16000 {
			t.Errorf("sample rate = %d", c.SampleRate)
		}
	}
	if !slices.Equal(sizes, []int{160, 160, 80}) {
		t.Errorf("chunk sizes = %v, want [160 160 80]", sizes)
	}
	if !slices.Equal(all, samples) {
		t.Error("samples were not delivered in order")
	}
	if err := src.Err(); err != nil {
		t.Errorf("Err() = %v, want nil at end of input", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

func TestReaderSourceReadError(t *testing.T) {
	src := NewReaderSource(failingReader{}, 16000, 10*time.Millisecond)
	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	for range src.Chunks() {
	}
	if err := src.Err(); err == nil {
		t.Error("expected read error")
	}
}

func TestReaderSourceNoInput(t *testing.T) {
	src := NewReaderSource(nil, 16000, 10*time.Millisecond)
	if err := src.Start(context.Background()); !errors.Is(err, ErrNoInput) {
		t.Errorf("Start() = %v, want ErrNoInput", err)
	}
}

func TestReaderSourceCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	src := NewReaderSource(pr, 16000, 10*time.Millisecond)
	if err := src.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// fill the channel so the reader blocks on delivery
	go func() {
		buf := make([]byte, 320)
		for {
			if _, err := pw.Write(buf); err != nil {
				return
			}
		}
	}()
	cancel()
	src.Close()

	done := make(chan struct{})
	go func() {
		for range src.Chunks() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("chunks channel not closed after cancel")
	}
}

func TestFFmpegArgs(t *testing.T) {
	tests := []struct {
		name   string
		cfg    FFmpegConfig
		input  []string
		source string
	}{
		{"mic pulse", FFmpegConfig{SampleRate: 16000}, []string{"-f", "pulse", "-i", "default"}, "mic"},
		{"display pulse", FFmpegConfig{SampleRate: 16000, Display: true, Device: "default"}, []string{"-f", "pulse", "-i", "@DEFAULT_MONITOR@"}, "display"},
		{"alsa device", FFmpegConfig{SampleRate: 16000, Driver: "alsa", Device: "hw:1,0"}, []string{"-f", "alsa", "-i", "hw:1,0"}, "mic"},
		{"mac", FFmpegConfig{SampleRate: 16000, Driver: "avfoundation"}, []string{"-f", "avfoundation", "-i", ":0"}, "mic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewFFmpegSource(tt.cfg)
			args := s.Args()
			if !containsRun(args, tt.input) {
				t.Errorf("args %v missing %v", args, tt.input)
			}
			if !containsRun(args, []string{"-ac", "1", "-ar", "16000", "-f", "s16le", "-"}) {
				t.Errorf("args %v missing output format", args)
			}
			if s.Name() != tt.source {
				t.Errorf("Name() = %q, want %q", s.Name(), tt.source)
			}
		})
	}
}

func containsRun(haystack, needle []string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if slices.Equal(haystack[i:i+len(needle)], needle) {
			return true
		}
	}
	return false
}
