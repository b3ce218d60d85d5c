package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/maastricht-university/meeting-transcription/attribution"
	"github.com/maastricht-university/meeting-transcription/features"
)

// EnvPrefix prefixes environment overrides, e.g. MEETSCRIBE_RECOGNIZER_API_KEY.
const EnvPrefix = "MEETSCRIBE"

// ErrNotFound is returned when an explicitly requested config file is missing.
var ErrNotFound = errors.New("config file not found")

type Service struct {
	URL string `yaml:"url" mapstructure:"url"`
}
type Services struct {
	ASR    Service `yaml:"asr" mapstructure:"asr"`
	Speech Service `yaml:"speech" mapstructure:"speech"`
}
type Audio struct {
	SampleRate int    `yaml:"sample_rate" mapstructure:"sample_rate"`
	Channels   int    `yaml:"channels" mapstructure:"channels"`
	Format     string `yaml:"format" mapstructure:"format"`
	Codec      string `yaml:"codec" mapstructure:"codec"`
}
type Capture struct {
	// Source is one of mic, display or stdin.
	Source  string        `yaml:"source" mapstructure:"source"`
	Device  string        `yaml:"device" mapstructure:"device"`
	Driver  string        `yaml:"driver" mapstructure:"driver"`
	FFmpeg  string        `yaml:"ffmpeg" mapstructure:"ffmpeg"`
	Chunk   time.Duration `yaml:"chunk" mapstructure:"chunk"`
	Analyse bool          `yaml:"analyse" mapstructure:"analyse"`
}
type Recognizer struct {
	// Mode is stream (websocket) or chunk (REST uploads).
	Mode           string        `yaml:"mode" mapstructure:"mode"`
	APIKey         string        `yaml:"api_key" mapstructure:"api_key"`
	LanguageCode   string        `yaml:"language_code" mapstructure:"language_code"`
	Punctuation    bool          `yaml:"punctuation" mapstructure:"punctuation"`
	InterimResults bool          `yaml:"interim_results" mapstructure:"interim_results"`
	SpeakerCount   int           `yaml:"speaker_count" mapstructure:"speaker_count"`
	ChunkDuration  time.Duration `yaml:"chunk_duration" mapstructure:"chunk_duration"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" mapstructure:"reconnect_delay"`
}
type Root struct {
	Pipeline struct {
		Name    string `yaml:"name" mapstructure:"name"`
		Version string `yaml:"version" mapstructure:"version"`
		LogLvl  string `yaml:"log_level" mapstructure:"log_level"`
		LogJSON bool   `yaml:"log_json" mapstructure:"log_json"`
	} `yaml:"pipeline" mapstructure:"pipeline"`
	Audio       Audio                   `yaml:"audio" mapstructure:"audio"`
	Services    Services                `yaml:"services" mapstructure:"services"`
	Capture     Capture                 `yaml:"capture" mapstructure:"capture"`
	Recognizer  Recognizer              `yaml:"recognizer" mapstructure:"recognizer"`
	Analyser    features.AnalyserConfig `yaml:"analyser" mapstructure:"analyser"`
	Attribution attribution.Config      `yaml:"attribution" mapstructure:"attribution"`
	Paths       struct {
		Outputs string `yaml:"outputs" mapstructure:"outputs"`
	} `yaml:"paths" mapstructure:"paths"`
}

// Default returns the built-in configuration.
func Default() *Root {
	var r Root
	r.Pipeline.Name = "meetscribe"
	r.Pipeline.Version = "0.1.0"
	r.Pipeline.LogLvl = "info"
	r.Audio = Audio{SampleRate: 16000, Channels: 1, Format: "s16le", Codec: "LINEAR16"}
	r.Services.Speech.URL = "wss://speech.googleapis.com/v1/speech:streamingRecognize"
	r.Capture = Capture{Source: "mic", FFmpeg: "ffmpeg", Driver: "pulse", Device: "default", Chunk: 100 * time.Millisecond, Analyse: true}
	r.Recognizer = Recognizer{
		Mode:           "stream",
		LanguageCode:   "en-US",
		Punctuation:    true,
		InterimResults: true,
		SpeakerCount:   2,
		ChunkDuration:  5 * time.Second,
		ReconnectDelay: time.Second,
	}
	r.Analyser = features.DefaultAnalyserConfig()
	r.Attribution = attribution.DefaultConfig()
	r.Paths.Outputs = "outputs"
	return &r
}

// Load reads the configuration. An explicit path must exist; otherwise the
// CONFIG_ENV candidates are tried and the defaults are used when none is
// present. MEETSCRIBE_* environment variables override file values.
func Load(path string) (*Root, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	var base bytes.Buffer
	if err := Write(&base, Default()); err != nil {
		return nil, err
	}
	if err := v.ReadConfig(&base); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if path == "" {
		path = guess()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func guess() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	var candidates []string = []string{
		filepath.Join("config", env, "config.yaml"),
		filepath.Join("src", "shared", "config.yaml"),
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

// Write encodes r as YAML.
func Write(w io.Writer, r *Root) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("config encode: %w", err)
	}
	return enc.Close()
}

// Validate checks values the session cannot run without.
func (r *Root) Validate() error {
	if r.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", r.Audio.SampleRate)
	}
	if r.Audio.Channels != 1 {
		return fmt.Errorf("audio.channels must be 1, got %d", r.Audio.Channels)
	}
	switch r.Capture.Source {
	case "mic", "display", "stdin":
	default:
		return fmt.Errorf("capture.source must be mic, display or stdin, got %q", r.Capture.Source)
	}
	if r.Capture.Chunk <= 0 {
		return fmt.Errorf("capture.chunk must be positive, got %v", r.Capture.Chunk)
	}
	switch r.Recognizer.Mode {
	case "stream":
		if r.Services.Speech.URL == "" {
			return errors.New("services.speech.url is required in stream mode")
		}
	case "chunk":
		if r.Services.ASR.URL == "" {
			return errors.New("services.asr.url is required in chunk mode")
		}
		if r.Recognizer.ChunkDuration <= 0 {
			return fmt.Errorf("recognizer.chunk_duration must be positive, got %v", r.Recognizer.ChunkDuration)
		}
	default:
		return fmt.Errorf("recognizer.mode must be stream or chunk, got %q", r.Recognizer.Mode)
	}
	if r.Attribution.Expiry <= 0 {
		return fmt.Errorf("attribution.expiry must be positive, got %v", r.Attribution.Expiry)
	}
	if r.Attribution.Match.MinScore < 1 || r.Attribution.Match.MinScore > 3 {
		return fmt.Errorf("attribution.match.min_score must be between 1 and 3, got %d", r.Attribution.Match.MinScore)
	}
	return nil
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
