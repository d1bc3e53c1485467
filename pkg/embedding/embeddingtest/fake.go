// Package embeddingtest provides a deterministic embedding client for tests.
package embeddingtest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"
)

// ErrUnavailable is returned by a Fake configured to fail.
var ErrUnavailable = errors.New("embedding service unavailable")

// Fake embeds text as a bag-of-words vector: every distinct lowercase token
// gets its own dimension, so texts sharing words have positive similarity
// and texts sharing none are orthogonal.
type Fake struct {
	Dims int

	mu    sync.Mutex
	vocab map[string]int
	fail  bool
	// FailTexts makes CreateEmbedding fail for these exact inputs.
	FailTexts map[string]bool
	Calls     int
}

// New returns a Fake with the given dimensionality.
func New(dims int) *Fake {
	return &Fake{Dims: dims, vocab: make(map[string]int), FailTexts: make(map[string]bool)}
}

// SetFailing toggles failure for every call.
func (f *Fake) SetFailing(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *Fake) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.fail || f.FailTexts[text] {
		return nil, ErrUnavailable
	}
	vec := make([]float32, f.Dims)
	for _, tok := range Tokens(text) {
		idx, ok := f.vocab[tok]
		if !ok {
			idx = len(f.vocab) % f.Dims
			f.vocab[tok] = idx
		}
		vec[idx]++
	}
	return vec, nil
}

func (f *Fake) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return ErrUnavailable
	}
	return nil
}

// Tokens splits on anything that is not a letter or digit.
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
