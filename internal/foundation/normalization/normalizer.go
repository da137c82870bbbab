// Package normalization maps loosely written configuration values onto
// typed values.
package normalization

import "strings"

// Normalizer maps case-insensitive, whitespace-trimmed keys to values of T.
// Unknown input yields the fallback.
type Normalizer[T comparable] struct {
	values   map[string]T
	fallback T
}

// NewNormalizer creates a normalizer for values. Keys are normalized too.
func NewNormalizer[T comparable](values map[string]T, fallback T) *Normalizer[T] {
	n := &Normalizer[T]{values: make(map[string]T, len(values)), fallback: fallback}
	for k, v := range values {
		n.values[normalize(k)] = v
	}
	return n
}

// Normalize returns the value for raw, or the fallback.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.values[normalize(raw)]; ok {
		return v
	}
	return n.fallback
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
