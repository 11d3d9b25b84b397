package catalog

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"time"
)

const (
	minValue = 1
	maxValue = 1000

	textualPrefix = "string"

	// TimestampFormat is the wire format of every timestamp the simulator
	// emits. Timestamps are always UTC.
	TimestampFormat = "2006-01-02T15:04:05Z"
)

// FormatTimestamp renders t in TimestampFormat.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// Value is a synthesized leaf value. Exactly one of the two fields is
// meaningful, selected by Kind.
type Value struct {
	Kind    Kind
	Numeric int
	Text    string
}

// Any returns the value in the form it takes in a JSON body.
func (v Value) Any() any {
	if v.Kind == Textual {
		return v.Text
	}
	return v.Numeric
}

func (v Value) String() string {
	if v.Kind == Textual {
		return v.Text
	}
	return strconv.Itoa(v.Numeric)
}

// Synthesizer produces random values for descriptors. It is safe for
// concurrent use.
type Synthesizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewSynthesizer returns a synthesizer drawing from rnd and stamping values
// with now. A nil rnd uses a randomly seeded source; a nil now uses
// time.Now.
func NewSynthesizer(rnd *rand.Rand, now func() time.Time) *Synthesizer {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if now == nil {
		now = time.Now
	}
	return &Synthesizer{rnd: rnd, now: now}
}

// NewSeededSynthesizer is a deterministic synthesizer for tests.
func NewSeededSynthesizer(seed uint64, now func() time.Time) *Synthesizer {
	return NewSynthesizer(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), now)
}

// Synthesize draws a value for d: numeric descriptors yield an integer in
// [1, 1000], textual descriptors yield "string" followed by such an integer.
func (s *Synthesizer) Synthesize(d Descriptor) (Value, time.Time) {
	s.mu.Lock()
	n := minValue + s.rnd.IntN(maxValue-minValue+1)
	s.mu.Unlock()

	ts := s.now()
	if d.Kind == Textual {
		return Value{Kind: Textual, Text: textualPrefix + strconv.Itoa(n)}, ts
	}
	return Value{Kind: Numeric, Numeric: n}, ts
}
