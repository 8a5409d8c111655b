// Package trigger decides when a clip should be made from recognized speech,
// hotkeys and manual requests.
package trigger

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/mediacore/ringbuffer"
)

// Kind identifies what caused a trigger.
type Kind int

const (
	KindVoice Kind = iota
	KindHotkey
	KindManual
)

func (k Kind) String() string {
	switch k {
	case KindVoice:
		return "voice"
	case KindHotkey:
		return "hotkey"
	case KindManual:
		return "manual"
	default:
		return "unknown"
	}
}

// RejectReason explains why a trigger did not produce a request.
type RejectReason string

const (
	RejectNone      RejectReason = ""
	RejectEmpty     RejectReason = "empty"
	RejectNoMatch   RejectReason = "no_match"
	RejectDuplicate RejectReason = "duplicate"
	RejectCooldown  RejectReason = "cooldown"
	RejectQueueFull RejectReason = "queue_full"
)

// Request asks for the last Duration of capture to be saved. Each request is
// consumed exactly once.
type Request struct {
	ID          uuid.UUID
	RequestedAt time.Time
	Duration    time.Duration
	Reason      string
	Kind        Kind
}

// Outcome is the decision for one trigger event.
type Outcome struct {
	Kind       Kind
	Accepted   bool
	Reason     RejectReason
	Request    Request
	Similarity int // best fuzzy score when the fuzzy path ran
}

// Config tunes the detector.
type Config struct {
	Keywords        []string      // direct match phrases, the first is the primary keyword
	Stopwords       []string      // nil selects DefaultStopwords
	Threshold       int           // fuzzy acceptance threshold, 0-100, inclusive
	Cooldown        time.Duration // minimum spacing between accepted triggers
	DedupeSize      int           // recent accepted phrases remembered
	DefaultDuration time.Duration // clip length when none is spoken
	MaxDuration     time.Duration // upper clamp, normally the buffer duration
	QueueSize       int           // request channel depth
}

// DefaultConfig returns the stock keyword set and tuning.
func DefaultConfig() Config {
	return Config{
		Keywords:        []string{"clip", "clips", "clipped", "save that", "clip that"},
		Threshold:       70,
		Cooldown:        2 * time.Second,
		DedupeSize:      5,
		DefaultDuration: 30 * time.Second,
		MaxDuration:     30 * time.Second,
		QueueSize:       4,
	}
}

// Option customizes a Detector.
type Option func(*Detector)

// WithClock replaces time.Now, used by tests to drive the cooldown.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithWarningHandler registers a callback for non-fatal recognizer failures.
func WithWarningHandler(fn func(error)) Option {
	return func(d *Detector) { d.onWarning = fn }
}

// WithOutcomeHandler registers a callback invoked after every phrase, hotkey
// and manual decision. It runs without the detector lock held.
func WithOutcomeHandler(fn func(Outcome)) Option {
	return func(d *Detector) { d.onOutcome = fn }
}

// Detector turns trigger events into clip requests. It is safe for
// concurrent use.
type Detector struct {
	mu        sync.Mutex
	cfg       Config
	keywords  []string
	primary   string
	norm      normalizer
	limiter   *rate.Limiter
	recent    *ringbuffer.RingBuffer[string]
	requests  chan Request
	now       func() time.Time
	onWarning func(error)
	onOutcome func(Outcome)
	log       logger.Logger
}

// NewDetector creates a detector for cfg.
func NewDetector(cfg Config, opts ...Option) *Detector {
	d := &Detector{
		now: time.Now,
		log: logger.Global().Module("trigger"),
	}
	for _, opt := range opts {
		opt(d)
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = 1
	}
	d.requests = make(chan Request, queue)
	d.apply(cfg)
	return d
}

func (d *Detector) apply(cfg Config) {
	if cfg.Stopwords == nil {
		cfg.Stopwords = DefaultStopwords
	}
	if cfg.DedupeSize <= 0 {
		cfg.DedupeSize = 1
	}
	d.cfg = cfg
	d.norm = newNormalizer(cfg.Stopwords)

	d.keywords = d.keywords[:0]
	for _, kw := range cfg.Keywords {
		if n := d.norm.normalize(kw); n != "" {
			d.keywords = append(d.keywords, n)
		}
	}
	d.primary = ""
	if len(d.keywords) > 0 {
		d.primary = d.keywords[0]
	}

	limit := rate.Inf
	if cfg.Cooldown > 0 {
		limit = rate.Every(cfg.Cooldown)
	}
	d.limiter = rate.NewLimiter(limit, 1)
	d.recent = ringbuffer.New[string](cfg.DedupeSize)
}

// Reconfigure replaces the tuning. Cooldown and duplicate history restart.
func (d *Detector) Reconfigure(cfg Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply(cfg)
}

// Requests delivers accepted clip requests.
func (d *Detector) Requests() <-chan Request {
	return d.requests
}

// Phrase evaluates recognized speech.
func (d *Detector) Phrase(text string) Outcome {
	return d.observe(d.phrase(text))
}

func (d *Detector) phrase(text string) Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := Outcome{Kind: KindVoice}
	phrase := d.norm.normalize(text)
	if phrase == "" {
		out.Reason = RejectEmpty
		return out
	}

	matched := d.directMatch(phrase)
	if !matched {
		out.Similarity = d.bestSimilarity(phrase)
		matched = d.primary != "" && out.Similarity >= d.cfg.Threshold
	}
	if !matched {
		out.Reason = RejectNoMatch
		d.log.Trace("phrase ignored", logger.String("phrase", phrase), logger.Int("similarity", out.Similarity))
		return out
	}

	if d.isDuplicate(phrase) {
		out.Reason = RejectDuplicate
		d.log.Debug("duplicate phrase rejected", logger.String("phrase", phrase))
		return out
	}

	return d.accept(out, "voice: "+phrase, d.spokenDuration(phrase), phrase)
}

// Hotkey evaluates a hotkey press.
func (d *Detector) Hotkey() Outcome {
	d.mu.Lock()
	out := d.accept(Outcome{Kind: KindHotkey}, "hotkey", d.clamp(d.cfg.DefaultDuration), "")
	d.mu.Unlock()
	return d.observe(out)
}

// Manual evaluates an explicit request. A non-positive duration selects the
// configured default.
func (d *Detector) Manual(duration time.Duration) Outcome {
	d.mu.Lock()
	if duration <= 0 {
		duration = d.cfg.DefaultDuration
	}
	out := d.accept(Outcome{Kind: KindManual}, "manual", d.clamp(duration), "")
	d.mu.Unlock()
	return d.observe(out)
}

func (d *Detector) observe(out Outcome) Outcome {
	if d.onOutcome != nil {
		d.onOutcome(out)
	}
	return out
}

// accept applies the cooldown and emits the request. The cooldown starts
// only when a request is queued. Callers hold d.mu.
func (d *Detector) accept(out Outcome, reason string, duration time.Duration, phrase string) Outcome {
	now := d.now()
	slot := d.limiter.ReserveN(now, 1)
	if !slot.OK() || slot.DelayFrom(now) > 0 {
		slot.CancelAt(now)
		out.Reason = RejectCooldown
		d.log.Debug("trigger rejected by cooldown", logger.String("kind", out.Kind.String()))
		return out
	}

	req := Request{
		ID:          uuid.New(),
		RequestedAt: now,
		Duration:    duration,
		Reason:      reason,
		Kind:        out.Kind,
	}
	select {
	case d.requests <- req:
	default:
		slot.CancelAt(now)
		out.Reason = RejectQueueFull
		d.log.Warn("clip request queue full", logger.String("kind", out.Kind.String()))
		return out
	}

	if phrase != "" {
		d.recent.Push(phrase)
	}
	out.Accepted = true
	out.Request = req
	d.log.Info("clip trigger accepted",
		logger.String("kind", out.Kind.String()),
		logger.String("reason", reason),
		logger.Duration("duration", duration))
	return out
}

func (d *Detector) directMatch(phrase string) bool {
	for _, kw := range d.keywords {
		if containsPhrase(phrase, kw) {
			return true
		}
	}
	return false
}

func (d *Detector) bestSimilarity(phrase string) int {
	if d.primary == "" {
		return 0
	}
	best := 0
	for _, tok := range strings.Fields(phrase) {
		if s := Similarity(d.primary, tok); s > best {
			best = s
		}
	}
	return best
}

func (d *Detector) isDuplicate(phrase string) bool {
	for _, p := range d.recent.Snapshot() {
		if p == phrase {
			return true
		}
	}
	return false
}

// spokenDuration returns the first number in phrase as seconds, or the
// default duration.
func (d *Detector) spokenDuration(phrase string) time.Duration {
	for _, tok := range strings.Fields(phrase) {
		if !isNumeric(tok) {
			continue
		}
		if secs, err := strconv.Atoi(tok); err == nil && secs > 0 {
			return d.clamp(time.Duration(secs) * time.Second)
		}
	}
	return d.clamp(d.cfg.DefaultDuration)
}

func (d *Detector) clamp(duration time.Duration) time.Duration {
	if d.cfg.MaxDuration > 0 && duration > d.cfg.MaxDuration {
		return d.cfg.MaxDuration
	}
	if duration < time.Second {
		return time.Second
	}
	return duration
}

// Validate checks a configuration before use.
func (c Config) Validate() error {
	if len(c.Keywords) == 0 {
		return fmt.Errorf("at least one keyword is required")
	}
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("fuzzy threshold must be within 0-100, got %d", c.Threshold)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative, got %s", c.Cooldown)
	}
	if c.DefaultDuration <= 0 {
		return fmt.Errorf("default clip duration must be positive, got %s", c.DefaultDuration)
	}
	return nil
}
