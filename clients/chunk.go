package clients

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
)

// ChunkConfig configures a ChunkRecognizer.
type ChunkConfig struct {
	URL        string
	SampleRate int
	// Window is how much audio is buffered per upload.
	Window time.Duration
	// TempDir holds the wav files while they are uploaded. Empty uses the
	// system default.
	TempDir string
}

// ChunkRecognizer buffers PCM into fixed windows and sends each window to a
// REST transcription service as a wav upload. Every returned segment is a
// final result.
type ChunkRecognizer struct {
	cfg  ChunkConfig
	http *HTTP
	log  *logrus.Entry
}

func NewChunkRecognizer(cfg ChunkConfig, h *HTTP) *ChunkRecognizer {
	if h == nil {
		h = NewHTTP()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Second
	}
	return &ChunkRecognizer{cfg: cfg, http: h, log: logrus.WithField("component", "asr")}
}

func (r *ChunkRecognizer) windowBytes() int {
	return int(float64(r.cfg.SampleRate)*r.cfg.Window.Seconds()) * 2
}

func (r *ChunkRecognizer) Recognize(ctx context.Context, audioIn <-chan []byte, out chan<- Result) error {
	limit := r.windowBytes()
	buf := make([]byte, 0, limit)
	for {
		select {
		case <-ctx.Done():
			return nil
		case pcm, ok := <-audioIn:
			if !ok {
				return r.flush(ctx, buf, out)
			}
			buf = append(buf, pcm...)
			if len(buf) < limit {
				continue
			}
			if err := r.flush(ctx, buf, out); err != nil {
				// one failed window is not fatal for the session
				r.log.WithError(err).Warn("chunk transcription failed")
			}
			buf = buf[:0]
		}
	}
}

func (r *ChunkRecognizer) flush(ctx context.Context, pcm []byte, out chan<- Result) error {
	if len(pcm) < 2 {
		return nil
	}
	path, err := r.writeWAV(pcm)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	resp, err := r.http.ASR(ctx, r.cfg.URL, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	r.log.WithFields(logrus.Fields{
		"segments": len(resp.Segments),
		"language": resp.Language,
	}).Debug("chunk transcribed")

	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if !deliver(ctx, out, Result{Text: text, Final: true}) {
			return nil
		}
	}
	return nil
}

// writeWAV stores mono PCM16 as a temporary wav file.
func (r *ChunkRecognizer) writeWAV(pcm []byte) (string, error) {
	f, err := os.CreateTemp(r.cfg.TempDir, "chunk-*.wav")
	if err != nil {
		return "", fmt.Errorf("wav temp: %w", err)
	}

	data := make([]int, len(pcm)/2)
	for i := range data {
		data[i] = int(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
	}
	enc := wav.NewEncoder(f, r.cfg.SampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: r.cfg.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("wav encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("wav encode: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
