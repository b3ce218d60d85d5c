package attribution

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcription/features"
)

// DefaultExpiry is how long after the last segment the active speaker keeps
// the floor.
const DefaultExpiry = 1500 * time.Millisecond

// Config holds the tunables of an Attributor.
type Config struct {
	Expiry time.Duration    `yaml:"expiry" mapstructure:"expiry"`
	Change ChangeThresholds `yaml:"change" mapstructure:"change"`
	Match  MatchThresholds  `yaml:"match" mapstructure:"match"`
}

// DefaultConfig returns the heuristic's fixed defaults.
func DefaultConfig() Config {
	return Config{
		Expiry: DefaultExpiry,
		Change: DefaultChangeThresholds(),
		Match:  DefaultMatchThresholds(),
	}
}

// Option configures an Attributor.
type Option func(*Attributor)

// WithClock sets the clock driving the silence expiry.
func WithClock(c clockwork.Clock) Option {
	return func(a *Attributor) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithLogger sets the log entry decisions are reported to.
func WithLogger(l *logrus.Entry) Option {
	return func(a *Attributor) {
		if l != nil {
			a.log = l
		}
	}
}

// WithObserver registers fn to be called after every transcript change.
// Calls are made in mutation order, outside the state lock; fn may read the
// Attributor but must not feed it.
func WithObserver(fn func(Change)) Option {
	return func(a *Attributor) {
		if fn != nil {
			a.observers = append(a.observers, fn)
		}
	}
}

// Attributor is the segment attribution state machine. Feature snapshots
// and finalized segments arrive independently; every mutation, including
// the expiry callback, goes through one lock so segment handling stays
// strictly sequential.
type Attributor struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	clock     clockwork.Clock
	log       *logrus.Entry
	expiry    time.Duration
	detector  *ChangeDetector
	registry  *Registry
	observers []func(Change)

	nextID     SpeakerID
	transcript []Entry
	active     ActiveState
	latest     *features.Vector
	timer      clockwork.Timer
	gen        uint64
	pending    []Change
}

// New creates an Attributor ready for a first session.
func New(cfg Config, opts ...Option) *Attributor {
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultExpiry
	}
	a := &Attributor{
		clock:    clockwork.NewRealClock(),
		log:      logrus.WithField("component", "attribution"),
		expiry:   cfg.Expiry,
		detector: NewChangeDetector(cfg.Change),
		registry: NewRegistry(cfg.Match),
		nextID:   1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start begins a new session: transcript, fingerprints, active speaker,
// latest features and any pending expiry are cleared together and the
// speaker counter goes back to 1.
func (a *Attributor) Start() {
	a.mu.Lock()
	a.cancelExpiryLocked()
	a.nextID = 1
	a.transcript = nil
	a.active = ActiveState{}
	a.latest = nil
	a.registry.Reset()
	a.pending = append(a.pending, Change{Kind: Reset, Index: -1})
	a.mu.Unlock()

	a.log.Info("session started")
	a.flush()
}

// Stop ends the session. The pending expiry, the latest features and the
// active speaker are discarded; the transcript stays readable for export.
func (a *Attributor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancelExpiryLocked()
	a.active = ActiveState{}
	a.latest = nil
	a.log.WithFields(logrus.Fields{
		"entries":  len(a.transcript),
		"speakers": a.registry.Len(),
	}).Info("session stopped")
}

// ObserveBins extracts features from a frequency snapshot and makes them
// the latest. Empty snapshots are skipped and leave the previous features
// in place.
func (a *Attributor) ObserveBins(bins []byte) {
	v, ok := features.Extract(bins)
	if !ok {
		return
	}
	a.ObserveFeatures(v)
}

// ObserveFeatures overwrites the latest feature snapshot.
func (a *Attributor) ObserveFeatures(v features.Vector) {
	a.mu.Lock()
	a.latest = &v
	a.mu.Unlock()
}

// HandleSegment attributes one finalized segment. Blank text is ignored and
// reports false. The returned entry is the transcript line the text ended
// up in.
func (a *Attributor) HandleSegment(text string) (Entry, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, false
	}

	a.mu.Lock()
	a.cancelExpiryLocked()

	current := a.latest
	changed := a.detector.IsChange(current, a.active)

	var ch Change
	if changed {
		ch = a.appendChangedLocked(current, text)
	} else {
		ch = a.continueLocked(text)
	}

	a.armExpiryLocked()
	a.log.WithFields(logrus.Fields{
		"speaker":  int(ch.Entry.Speaker),
		"changed":  changed,
		"features": current != nil,
		"kind":     ch.Kind.String(),
	}).Debug("segment attributed")

	a.pending = append(a.pending, ch)
	a.mu.Unlock()

	a.flush()
	return ch.Entry, true
}

func (a *Attributor) appendChangedLocked(current *features.Vector, text string) Change {
	var id SpeakerID
	if current != nil {
		if m, ok := a.registry.Match(*current); ok {
			id = m
		}
	}
	isNew := id == 0
	if isNew {
		id = a.nextID
	}

	e := Entry{Speaker: id, Text: text}
	a.transcript = append(a.transcript, e)
	a.active = ActiveState{ID: id, Features: current}

	if isNew {
		// no fingerprint can be taken without features; the id is still spent
		if current != nil {
			a.registry.Register(id, *current)
		}
		a.nextID++
		a.log.WithField("speaker", int(id)).Info("new speaker")
	}
	return Change{Kind: Appended, Index: len(a.transcript) - 1, Entry: e, NewSpeaker: isNew}
}

func (a *Attributor) continueLocked(text string) Change {
	if len(a.transcript) == 0 {
		e := Entry{Speaker: a.active.ID, Text: text}
		a.transcript = append(a.transcript, e)
		return Change{Kind: Appended, Index: 0, Entry: e}
	}
	last := len(a.transcript) - 1
	a.transcript[last].Text += " " + text
	return Change{Kind: Extended, Index: last, Entry: a.transcript[last]}
}

func (a *Attributor) armExpiryLocked() {
	gen := a.gen
	a.timer = a.clock.AfterFunc(a.expiry, func() { a.expire(gen) })
}

func (a *Attributor) cancelExpiryLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
}

// expire drops continuity unless the timer was superseded after firing.
func (a *Attributor) expire(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || a.timer == nil {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	prev := a.active.ID
	a.active.ID = 0
	a.pending = append(a.pending, Change{Kind: Expired, Index: -1})
	a.mu.Unlock()

	a.log.WithField("speaker", int(prev)).Debug("silence expiry")
	a.flush()
}

// flush delivers queued changes. notifyMu is always taken before mu, never
// while mu is held.
func (a *Attributor) flush() {
	if len(a.observers) == 0 {
		a.mu.Lock()
		a.pending = nil
		a.mu.Unlock()
		return
	}

	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	for {
		a.mu.Lock()
		batch := a.pending
		a.pending = nil
		a.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, ch := range batch {
			for _, fn := range a.observers {
				fn(ch)
			}
		}
	}
}

// Transcript returns a copy of the transcript.
func (a *Attributor) Transcript() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, len(a.transcript))
	copy(out, a.transcript)
	return out
}

// Len returns the number of transcript entries.
func (a *Attributor) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.transcript)
}

// NextID returns the id the next new speaker will get.
func (a *Attributor) NextID() SpeakerID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nextID
}

// Active returns the active speaker state.
func (a *Attributor) Active() ActiveState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.active
	if st.Features != nil {
		v := *st.Features
		st.Features = &v
	}
	return st
}

// Latest returns the most recent feature snapshot, if any.
func (a *Attributor) Latest() (features.Vector, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.latest == nil {
		return features.Vector{}, false
	}
	return *a.latest, true
}

// Fingerprints returns the registered speakers in ascending id order.
func (a *Attributor) Fingerprints() []Fingerprint {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.Fingerprints()
}
