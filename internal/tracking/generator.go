// Package tracking generates human-friendly tracking identifiers for status
// records.
package tracking

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

const (
	prefix   = "ST"
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenLen = 5
)

// Generator produces identifiers of the form ST-<5 uppercase alphanumerics>-
// <YYMMDD>. The token space is 36^5 per day, so collisions are rare but not
// impossible; callers must collision-check against existing IDs and invoke
// Generate again on a clash. The generator itself keeps no state.
type Generator struct {
	entropy io.Reader
	now     func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithEntropy replaces the random source. Tests use deterministic readers.
func WithEntropy(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.entropy = r
		}
	}
}

// WithClock replaces the clock used for the date suffix.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// New constructs a generator backed by crypto/rand and the system clock
// unless overridden.
func New(opts ...Option) *Generator {
	g := &Generator{
		entropy: rand.Reader,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a fresh candidate tracking ID.
func (g *Generator) Generate() string {
	var buf [tokenLen]byte
	if _, err := io.ReadFull(g.entropy, buf[:]); err != nil {
		panic(fmt.Errorf("tracking: read entropy: %w", err))
	}
	token := make([]byte, tokenLen)
	for i, b := range buf {
		token[i] = alphabet[int(b)%len(alphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, token, g.now().UTC().Format("060102"))
}
