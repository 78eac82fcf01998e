// Package normalization maps loosely written configuration strings onto
// typed enumerations.
package normalization

import (
	"slices"
	"strings"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
)

// Normalizer provides type-safe string-to-enum normalization.
type Normalizer[T comparable] struct {
	field        string
	validValues  map[string]T
	defaultValue T
	validKeys    []string // Cached for error messages
}

// NewNormalizer creates a normalizer for the named field from a map of
// accepted spellings. Keys are case-folded and trimmed.
func NewNormalizer[T comparable](field string, values map[string]T, defaultValue T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	validKeys := make([]string, 0, len(values))
	for k, v := range values {
		key := clean(k)
		normalized[key] = v
		validKeys = append(validKeys, key)
	}
	slices.Sort(validKeys)

	return &Normalizer[T]{
		field:        field,
		validValues:  normalized,
		defaultValue: defaultValue,
		validKeys:    validKeys,
	}
}

// Normalize returns the matching value, or the default when raw is blank
// or unknown.
func (n *Normalizer[T]) Normalize(raw string) T {
	if value, ok := n.validValues[clean(raw)]; ok {
		return value
	}
	return n.defaultValue
}

// Parse returns the matching value. A blank input yields the default; an
// unknown one a validation error listing the accepted values.
func (n *Normalizer[T]) Parse(raw string) (T, error) {
	cleaned := clean(raw)
	if cleaned == "" {
		return n.defaultValue, nil
	}
	if value, ok := n.validValues[cleaned]; ok {
		return value, nil
	}
	var zero T
	return zero, errors.ValidationError("invalid "+n.field).
		WithContext("value", raw).
		WithContext("valid", strings.Join(n.validKeys, ", ")).
		Build()
}

// Changed reports whether raw needed cleaning to match a valid key.
func (n *Normalizer[T]) Changed(raw string) bool {
	cleaned := clean(raw)
	_, ok := n.validValues[cleaned]
	return ok && cleaned != raw
}

// ValidKeys returns all accepted spellings, sorted.
func (n *Normalizer[T]) ValidKeys() []string {
	return slices.Clone(n.validKeys)
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
