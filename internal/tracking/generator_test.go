package tracking

import (
	"bytes"
	"regexp"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGenerateFormat(t *testing.T) {
	gen := New(fixedOpts(t)...)
	id := gen.Generate()
	pattern := regexp.MustCompile(`^ST-[A-Z0-9]{5}-230615$`)
	if !pattern.MatchString(id) {
		t.Fatalf("id %q does not match expected shape", id)
	}
}

func fixedOpts(t *testing.T) []Option {
	t.Helper()
	return []Option{
		WithClock(fixedClock(time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC))),
	}
}

func TestGenerateDeterministicWithInjectedEntropy(t *testing.T) {
	// Bytes 0..4 index the alphabet directly: A, B, C, D, E.
	entropy := bytes.NewReader([]byte{0, 1, 2, 3, 4})
	gen := New(
		WithEntropy(entropy),
		WithClock(fixedClock(time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC))),
	)
	if got := gen.Generate(); got != "ST-ABCDE-230615" {
		t.Fatalf("id = %q, want ST-ABCDE-230615", got)
	}
}

func TestGenerateUsesDateOfGeneration(t *testing.T) {
	entropy := bytes.NewReader([]byte{10, 10, 10, 10, 10, 20, 20, 20, 20, 20})
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	gen := New(WithEntropy(entropy), WithClock(func() time.Time { return now }))

	first := gen.Generate()
	now = now.AddDate(0, 0, 1)
	second := gen.Generate()

	if first[len(first)-6:] != "240102" {
		t.Fatalf("first suffix = %q", first)
	}
	if second[len(second)-6:] != "240103" {
		t.Fatalf("second suffix = %q", second)
	}
}

func TestGeneratePanicsOnExhaustedEntropy(t *testing.T) {
	gen := New(WithEntropy(bytes.NewReader(nil)))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when entropy source fails")
		}
	}()
	gen.Generate()
}
