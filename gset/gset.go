// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gset implements a grow-only set. Values can be added but never
// removed, and merging two replicas is their union.
package gset

import (
	"encoding/json"
	"iter"

	"github.com/luxfi/crdt"
	"github.com/luxfi/crdt/utils/set"
)

var (
	_ crdt.Replicated[string, *Set[string]] = (*Set[string])(nil)
	_ json.Marshaler                        = (*Set[string])(nil)
	_ json.Unmarshaler                      = (*Set[string])(nil)
)

const (
	kind          = "grow-only set"
	elementsField = "e"
)

// Set is a grow-only set. The zero value is an empty set ready to use.
type Set[E comparable] struct {
	elements set.Set[E]
}

// New returns an empty grow-only set.
func New[E comparable]() *Set[E] {
	return &Set[E]{
		elements: set.NewSet[E](0),
	}
}

// Of returns a grow-only set holding [vs].
func Of[E comparable](vs ...E) *Set[E] {
	return &Set[E]{
		elements: set.Of(vs...),
	}
}

// Parse decodes a snapshot produced by Payload.
func Parse[E comparable](payload []byte) (*Set[E], error) {
	fields, err := crdt.DecodeFields(kind, payload, elementsField)
	if err != nil {
		return nil, err
	}
	var elements set.Set[E]
	if err := json.Unmarshal(fields[elementsField], &elements); err != nil {
		return nil, crdt.InvalidPayload("%s: %v", kind, err)
	}
	return &Set[E]{elements: elements}, nil
}

// Add inserts [v]. It never fails.
func (s *Set[E]) Add(v E) (bool, error) {
	if s.elements.Contains(v) {
		return false, nil
	}
	if s.elements == nil {
		s.elements = set.NewSet[E](1)
	}
	s.elements.Add(v)
	return true, nil
}

// AddAll inserts [vs]. It never fails.
func (s *Set[E]) AddAll(vs ...E) (bool, error) {
	if s.elements == nil {
		s.elements = set.NewSet[E](len(vs))
	}
	before := s.elements.Len()
	s.elements.Add(vs...)
	return s.elements.Len() != before, nil
}

// Remove is not supported by a grow-only set.
func (*Set[E]) Remove(E) (bool, error) {
	return false, crdt.ErrUnsupportedOperation
}

// RemoveAll is not supported by a grow-only set.
func (*Set[E]) RemoveAll(...E) (bool, error) {
	return false, crdt.ErrUnsupportedOperation
}

// RetainAll is not supported by a grow-only set.
func (*Set[E]) RetainAll(...E) (bool, error) {
	return false, crdt.ErrUnsupportedOperation
}

// Clear is not supported by a grow-only set.
func (*Set[E]) Clear() error {
	return crdt.ErrUnsupportedOperation
}

func (s *Set[E]) Contains(v E) bool {
	return s.elements.Contains(v)
}

func (s *Set[E]) ContainsAll(vs ...E) bool {
	return s.elements.ContainsAll(vs...)
}

func (s *Set[E]) Len() int {
	return s.elements.Len()
}

func (s *Set[E]) IsEmpty() bool {
	return s.elements.Len() == 0
}

func (s *Set[E]) All() iter.Seq[E] {
	return s.elements.All()
}

func (s *Set[E]) List() []E {
	return s.elements.List()
}

func (s *Set[E]) Value() set.Set[E] {
	return s.elements.Clone()
}

// Merge returns the union of both replicas.
func (s *Set[E]) Merge(other *Set[E]) *Set[E] {
	merged := &Set[E]{
		elements: set.NewSet[E](s.elements.Len() + other.elements.Len()),
	}
	merged.elements.Union(s.elements)
	merged.elements.Union(other.elements)
	return merged
}

// Equal reports whether both sets hold the same values.
func (s *Set[E]) Equal(other *Set[E]) bool {
	return crdt.Equal[E](s, other)
}

func (s *Set[E]) Payload() ([]byte, error) {
	return json.Marshal(map[string]set.Set[E]{
		elementsField: s.elements,
	})
}

func (s *Set[E]) MarshalJSON() ([]byte, error) {
	return s.Payload()
}

func (s *Set[E]) UnmarshalJSON(b []byte) error {
	parsed, err := Parse[E](b)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}
