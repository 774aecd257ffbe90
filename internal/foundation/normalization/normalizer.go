// Package normalization maps loosely written configuration strings onto enums.
package normalization

import (
	"fmt"
	"slices"
	"strings"
)

// Normalizer maps strings onto values of T. Lookups ignore case and
// surrounding whitespace, and treat '-' like '_'.
type Normalizer[T comparable] struct {
	values       map[string]T
	defaultValue T
	keys         []string
}

// NewNormalizer creates a normalizer from key/value pairs.
func NewNormalizer[T comparable](values map[string]T, defaultValue T) *Normalizer[T] {
	n := &Normalizer[T]{
		values:       make(map[string]T, len(values)),
		defaultValue: defaultValue,
		keys:         make([]string, 0, len(values)),
	}
	for k, v := range values {
		key := clean(k)
		n.values[key] = v
		n.keys = append(n.keys, key)
	}
	slices.Sort(n.keys)
	return n
}

// Normalize returns the value for raw, or the default when raw is unknown.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.values[clean(raw)]; ok {
		return v
	}
	return n.defaultValue
}

// Lookup returns the value for raw and whether raw was recognized.
func (n *Normalizer[T]) Lookup(raw string) (T, bool) {
	v, ok := n.values[clean(raw)]
	return v, ok
}

// Keys returns the accepted spellings in sorted order.
func (n *Normalizer[T]) Keys() []string {
	return slices.Clone(n.keys)
}

// EnumNormalizer is a Normalizer that names its field in error messages.
type EnumNormalizer[T comparable] struct {
	*Normalizer[T]
	field string
}

// NewEnumNormalizer creates a normalizer for the configuration field named field.
func NewEnumNormalizer[T comparable](field string, values map[string]T, defaultValue T) *EnumNormalizer[T] {
	return &EnumNormalizer[T]{Normalizer: NewNormalizer(values, defaultValue), field: field}
}

// NormalizeWithValidation returns the value for raw, or an error listing the
// valid spellings.
func (e *EnumNormalizer[T]) NormalizeWithValidation(raw string) (T, error) {
	if v, ok := e.Lookup(raw); ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, valid options: %s", e.field, raw, strings.Join(e.keys, ", "))
}

// ValidValues returns the accepted spellings for help and error text.
func (e *EnumNormalizer[T]) ValidValues() []string {
	return e.Keys()
}

func clean(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}
