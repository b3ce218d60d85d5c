package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcription/attribution"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultAttribution(t *testing.T) {
	cfg := Default()
	if cfg.Attribution != attribution.DefaultConfig() {
		t.Errorf("attribution defaults = %+v", cfg.Attribution)
	}
	if cfg.Attribution.Expiry != 1500*time.Millisecond {
		t.Errorf("expiry = %v, want 1.5s", cfg.Attribution.Expiry)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recognizer.Mode != "stream" || cfg.Audio.SampleRate != 16000 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Attribution.Expiry != attribution.DefaultExpiry {
		t.Errorf("expiry = %v, want %v", cfg.Attribution.Expiry, attribution.DefaultExpiry)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
pipeline:
  log_level: debug
recognizer:
  mode: chunk
  chunk_duration: 3s
services:
  asr:
    url: http://localhost:8000
attribution:
  expiry: 2s
  match:
    ratio: 0.3
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.LogLvl != "debug" {
		t.Errorf("log level = %q", cfg.Pipeline.LogLvl)
	}
	if cfg.Recognizer.Mode != "chunk" || cfg.Recognizer.ChunkDuration != 3*time.Second {
		t.Errorf("recognizer = %+v", cfg.Recognizer)
	}
	if cfg.Attribution.Expiry != 2*time.Second {
		t.Errorf("expiry = %v", cfg.Attribution.Expiry)
	}
	if cfg.Attribution.Match.Ratio != 0.3 {
		t.Errorf("match ratio = %v", cfg.Attribution.Match.Ratio)
	}
	// untouched keys keep their defaults
	if cfg.Attribution.Match.Frequency != 15 || cfg.Attribution.Change.Energy != 1000 {
		t.Errorf("thresholds lost defaults: %+v", cfg.Attribution)
	}
	if cfg.Recognizer.LanguageCode != "en-US" {
		t.Errorf("language = %q", cfg.Recognizer.LanguageCode)
	}
}

func TestLoadCandidateFromConfigEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("CONFIG_ENV", "test")
	if err := os.MkdirAll(filepath.Join("config", "test"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join("config", "test", "config.yaml"), []byte("capture:\n  source: stdin\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Capture.Source != "stdin" {
		t.Errorf("capture source = %q, want stdin", cfg.Capture.Source)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MEETSCRIBE_RECOGNIZER_API_KEY", "secret")
	t.Setenv("MEETSCRIBE_ATTRIBUTION_EXPIRY", "750ms")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recognizer.APIKey != "secret" {
		t.Errorf("api key = %q", cfg.Recognizer.APIKey)
	}
	if cfg.Attribution.Expiry != 750*time.Millisecond {
		t.Errorf("expiry = %v", cfg.Attribution.Expiry)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Root)
		want   string
	}{
		{"bad sample rate", func(r *Root) { r.Audio.SampleRate = 0 }, "sample_rate"},
		{"stereo", func(r *Root) { r.Audio.Channels = 2 }, "channels"},
		{"bad source", func(r *Root) { r.Capture.Source = "camera" }, "capture.source"},
		{"bad mode", func(r *Root) { r.Recognizer.Mode = "batch" }, "recognizer.mode"},
		{"chunk without url", func(r *Root) { r.Recognizer.Mode = "chunk" }, "services.asr.url"},
		{"stream without url", func(r *Root) { r.Services.Speech.URL = "" }, "services.speech.url"},
		{"zero expiry", func(r *Root) { r.Attribution.Expiry = 0 }, "expiry"},
		{"min score", func(r *Root) { r.Attribution.Match.MinScore = 4 }, "min_score"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Default()
			tt.mutate(r)
			err := r.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Default()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, key := range []string{"log_level: info", "expiry: 1.5s", "mode: stream", "fft_size: 1024"} {
		if !strings.Contains(out, key) {
			t.Errorf("expected %q in:\n%s", key, out)
		}
	}
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)

	r := Default()
	r.Pipeline.LogLvl = "debug"
	r.Pipeline.LogJSON = true
	var buf bytes.Buffer
	if err := r.SetupLogging(&buf); err != nil {
		t.Fatal(err)
	}
	defer logrus.SetOutput(os.Stderr)
	defer logrus.SetFormatter(&logrus.TextFormatter{})

	logrus.Debug("hello")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected json debug line, got %q", buf.String())
	}

	r.Pipeline.LogLvl = "loud"
	if err := r.SetupLogging(&buf); err == nil {
		t.Error("expected error for unknown level")
	}
}
