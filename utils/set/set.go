// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package set

import (
	"bytes"
	"encoding/json"
	"iter"
	"maps"
	"slices"
)

// Set is a generic set implementation
type Set[T comparable] map[T]struct{}

// NewSet creates a new set with optional initial capacity
func NewSet[T comparable](capacity int) Set[T] {
	return make(Set[T], capacity)
}

// Of returns a set containing [elts]
func Of[T comparable](elts ...T) Set[T] {
	s := NewSet[T](len(elts))
	s.Add(elts...)
	return s
}

// Add adds elements to the set
func (s Set[T]) Add(elts ...T) {
	for _, elt := range elts {
		s[elt] = struct{}{}
	}
}

// Union adds all the elements of [other] to the set
func (s Set[T]) Union(other Set[T]) {
	for elt := range other {
		s[elt] = struct{}{}
	}
}

// Difference removes all the elements of [other] from the set
func (s Set[T]) Difference(other Set[T]) {
	for elt := range other {
		delete(s, elt)
	}
}

// Remove removes an element from the set
func (s Set[T]) Remove(elt T) {
	delete(s, elt)
}

// Contains returns true if the element is in the set
func (s Set[T]) Contains(elt T) bool {
	_, ok := s[elt]
	return ok
}

// ContainsAll returns true if every element of [elts] is in the set
func (s Set[T]) ContainsAll(elts ...T) bool {
	for _, elt := range elts {
		if !s.Contains(elt) {
			return false
		}
	}
	return true
}

// Overlaps returns the elements of [elts] that are in the set, without
// duplicates.
func (s Set[T]) Overlaps(elts ...T) Set[T] {
	overlap := NewSet[T](0)
	for _, elt := range elts {
		if s.Contains(elt) {
			overlap.Add(elt)
		}
	}
	return overlap
}

// Len returns the number of elements in the set
func (s Set[T]) Len() int {
	return len(s)
}

// Clear removes all elements from the set
func (s Set[T]) Clear() {
	clear(s)
}

// Clone returns a copy of the set that shares no storage with it
func (s Set[T]) Clone() Set[T] {
	c := NewSet[T](len(s))
	c.Union(s)
	return c
}

// Equals returns true if both sets hold the same elements
func (s Set[T]) Equals(other Set[T]) bool {
	if len(s) != len(other) {
		return false
	}
	for elt := range s {
		if !other.Contains(elt) {
			return false
		}
	}
	return true
}

// All returns an iterator over the elements in no particular order
func (s Set[T]) All() iter.Seq[T] {
	return maps.Keys(s)
}

// List returns the elements as a slice in no particular order
func (s Set[T]) List() []T {
	return slices.Collect(maps.Keys(s))
}

// MarshalJSON encodes the set as a JSON array. Elements are ordered by their
// encoding so equal sets always produce equal bytes.
func (s Set[T]) MarshalJSON() ([]byte, error) {
	encoded := make([][]byte, 0, len(s))
	for elt := range s {
		b, err := json.Marshal(elt)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, b)
	}
	slices.SortFunc(encoded, bytes.Compare)

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, b := range encoded {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces the contents of the set with the decoded array
func (s *Set[T]) UnmarshalJSON(b []byte) error {
	var elts []T
	if err := json.Unmarshal(b, &elts); err != nil {
		return err
	}
	*s = Of(elts...)
	return nil
}
