package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// AnalyserConfig mirrors the knobs of a browser AnalyserNode.
type AnalyserConfig struct {
	FFTSize     int     `yaml:"fft_size" mapstructure:"fft_size"`
	Smoothing   float64 `yaml:"smoothing" mapstructure:"smoothing"`
	MinDecibels float64 `yaml:"min_decibels" mapstructure:"min_decibels"`
	MaxDecibels float64 `yaml:"max_decibels" mapstructure:"max_decibels"`
}

// DefaultAnalyserConfig matches the analyser the capture UI was tuned with:
// 1024-point FFT, 512 bins.
func DefaultAnalyserConfig() AnalyserConfig {
	return AnalyserConfig{
		FFTSize:     1024,
		Smoothing:   0.8,
		MinDecibels: -100,
		MaxDecibels: -30,
	}
}

// Analyser turns PCM16 audio into byte frequency snapshots. It keeps the
// last FFTSize samples and a smoothed magnitude spectrum between calls.
// An Analyser is not safe for concurrent use.
type Analyser struct {
	cfg      AnalyserConfig
	fft      *fourier.FFT
	window   []float64
	ring     []float64
	filled   int
	frame    []float64
	smoothed []float64
}

// NewAnalyser creates an Analyser. FFTSize must be a power of two; other
// values fall back to the default.
func NewAnalyser(cfg AnalyserConfig) *Analyser {
	def := DefaultAnalyserConfig()
	if cfg.FFTSize < 32 || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		cfg.FFTSize = def.FFTSize
	}
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = def.Smoothing
	}
	if cfg.MaxDecibels <= cfg.MinDecibels {
		cfg.MinDecibels, cfg.MaxDecibels = def.MinDecibels, def.MaxDecibels
	}

	n := cfg.FFTSize
	return &Analyser{
		cfg:      cfg,
		fft:      fourier.NewFFT(n),
		window:   blackmanWindow(n),
		ring:     make([]float64, 0, n),
		frame:    make([]float64, n),
		smoothed: make([]float64, n/2),
	}
}

// BinCount is the number of bins in each snapshot (FFTSize/2).
func (a *Analyser) BinCount() int { return a.cfg.FFTSize / 2 }

// Feed appends samples to the analysis window.
func (a *Analyser) Feed(samples []int16) {
	n := a.cfg.FFTSize
	for _, s := range samples {
		if len(a.ring) < n {
			a.ring = append(a.ring, float64(s)/32768.0)
			continue
		}
		a.ring[a.filled%n] = float64(s) / 32768.0
		a.filled++
	}
}

// Snapshot returns the current byte spectrum. It returns nil until a full
// window of samples has been fed.
func (a *Analyser) Snapshot() []byte {
	n := a.cfg.FFTSize
	if len(a.ring) < n {
		return nil
	}

	// unroll the ring oldest-first and window it
	start := a.filled % n
	for i := 0; i < n; i++ {
		a.frame[i] = a.ring[(start+i)%n] * a.window[i]
	}

	coeffs := a.fft.Coefficients(nil, a.frame)
	bins := make([]byte, n/2)
	span := a.cfg.MaxDecibels - a.cfg.MinDecibels
	tau := a.cfg.Smoothing
	for k := range bins {
		mag := cmplxAbs(coeffs[k]) / float64(n)
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*mag

		db := math.Inf(-1)
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		v := math.Floor(255 / span * (db - a.cfg.MinDecibels))
		switch {
		case v < 0 || math.IsNaN(v):
			v = 0
		case v > 255:
			v = 255
		}
		bins[k] = byte(v)
	}
	return bins
}

// Reset drops buffered samples and smoothing history.
func (a *Analyser) Reset() {
	a.ring = a.ring[:0]
	a.filled = 0
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func blackmanWindow(n int) []float64 {
	const alpha = 0.16
	a0 := 0.5 * (1 - alpha)
	a1 := 0.5
	a2 := 0.5 * alpha
	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return w
}
