// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package orset implements a state-based observed-remove set.
//
// Every add of a value is recorded under a freshly minted tag. Removing a value
// tombstones the tags currently observed for it, so a concurrent add on another
// replica, which carries a tag the remover never saw, survives the merge. When
// an add and a remove of the same value race, the add wins.
//
// Tags are never reused: once tombstoned, a tag stays dead on every replica
// that learns of the tombstone.
package orset

import (
	"encoding/json"
	"iter"
	"maps"

	"github.com/luxfi/crdt"
	"github.com/luxfi/crdt/tag"
	"github.com/luxfi/crdt/utils/set"
)

var (
	_ crdt.Replicated[string, *Set[string]] = (*Set[string])(nil)
	_ json.Marshaler                        = (*Set[string])(nil)
	_ json.Unmarshaler                      = (*Set[string])(nil)
)

const (
	kind            = "observed-remove set"
	elementsField   = "e"
	tombstonesField = "t"
)

// Set is an observed-remove set. The zero value is an empty set that tags
// adds with random UUIDs.
type Set[E comparable] struct {
	tags       tag.Generator
	elements   multimap[E]
	tombstones multimap[E]
}

// New returns an empty set that tags adds with random UUIDs.
func New[E comparable]() *Set[E] {
	return NewWithGenerator[E](nil)
}

// NewWithGenerator returns an empty set that tags adds with [tags]. A nil
// generator falls back to random UUIDs.
func NewWithGenerator[E comparable](tags tag.Generator) *Set[E] {
	if tags == nil {
		tags = tag.NewUUIDGenerator()
	}
	return &Set[E]{
		tags:       tags,
		elements:   make(multimap[E]),
		tombstones: make(multimap[E]),
	}
}

// Parse decodes a snapshot produced by Payload. Adds made on the returned set
// are tagged with random UUIDs.
func Parse[E comparable](payload []byte) (*Set[E], error) {
	return ParseWithGenerator[E](payload, nil)
}

// ParseWithGenerator decodes a snapshot produced by Payload. Live tags that
// the snapshot also lists as tombstoned are dropped.
func ParseWithGenerator[E comparable](payload []byte, tags tag.Generator) (*Set[E], error) {
	fields, err := crdt.DecodeFields(kind, payload, elementsField, tombstonesField)
	if err != nil {
		return nil, err
	}
	s := NewWithGenerator[E](tags)
	if err := json.Unmarshal(fields[elementsField], &s.elements); err != nil {
		return nil, crdt.InvalidPayload("%s elements: %v", kind, err)
	}
	if err := json.Unmarshal(fields[tombstonesField], &s.tombstones); err != nil {
		return nil, crdt.InvalidPayload("%s tombstones: %v", kind, err)
	}
	s.elements.subtract(s.tombstones)
	return s, nil
}

// Add records [v] under a new tag. It returns true if [v] had no live tag.
func (s *Set[E]) Add(v E) (bool, error) {
	s.lazyInit()
	_, present := s.elements[v]
	s.elements.put(v, set.Of(s.tags.Next()))
	return !present, nil
}

// AddAll adds every value of [vs], minting one tag per value. It returns true
// if any value was not yet present.
func (s *Set[E]) AddAll(vs ...E) (bool, error) {
	changed := false
	for _, v := range vs {
		added, err := s.Add(v)
		if err != nil {
			return changed, err
		}
		changed = changed || added
	}
	return changed, nil
}

// Remove tombstones every live tag of [v]. It returns [crdt.ErrNullValue] if
// [v] is a nil reference.
func (s *Set[E]) Remove(v E) (bool, error) {
	if crdt.IsNil(v) {
		return false, crdt.ErrNullValue
	}
	return s.tombstone(v), nil
}

// RemoveAll tombstones every live tag of each value of [vs]. It returns true
// if at least one value was removed. The result does not say which.
func (s *Set[E]) RemoveAll(vs ...E) (bool, error) {
	removed := false
	for _, v := range vs {
		if s.tombstone(v) {
			removed = true
		}
	}
	return removed, nil
}

// RetainAll has no merge semantics for an observed-remove set.
func (*Set[E]) RetainAll(...E) (bool, error) {
	return false, crdt.ErrUnsupportedOperation
}

// Clear tombstones every live tag.
func (s *Set[E]) Clear() error {
	s.lazyInit()
	for v, tags := range s.elements {
		s.tombstones.put(v, tags)
	}
	s.elements = make(multimap[E])
	return nil
}

// lazyInit makes the zero value usable.
func (s *Set[E]) lazyInit() {
	if s.tags == nil {
		s.tags = tag.NewUUIDGenerator()
	}
	if s.elements == nil {
		s.elements = make(multimap[E])
	}
	if s.tombstones == nil {
		s.tombstones = make(multimap[E])
	}
}

func (s *Set[E]) tombstone(v E) bool {
	tags, ok := s.elements[v]
	if !ok {
		return false
	}
	delete(s.elements, v)
	s.tombstones.put(v, tags)
	return true
}

func (s *Set[E]) Contains(v E) bool {
	_, ok := s.elements[v]
	return ok
}

func (s *Set[E]) ContainsAll(vs ...E) bool {
	for _, v := range vs {
		if !s.Contains(v) {
			return false
		}
	}
	return true
}

// Len returns the number of distinct live values. A value added several times
// counts once, even while it holds several live tags; TagCount reports the
// number of (value, tag) pairs instead.
func (s *Set[E]) Len() int {
	return len(s.elements)
}

func (s *Set[E]) IsEmpty() bool {
	return len(s.elements) == 0
}

func (s *Set[E]) All() iter.Seq[E] {
	return maps.Keys(s.Value())
}

func (s *Set[E]) List() []E {
	return s.Value().List()
}

// Value returns the values with at least one live tag.
func (s *Set[E]) Value() set.Set[E] {
	value := set.NewSet[E](len(s.elements))
	for v := range s.elements {
		value.Add(v)
	}
	return value
}

// Merge returns a replica holding the union of both live maps and both
// tombstone maps, with every tombstoned tag removed from the live map. The
// result tags new adds with the receiver's generator.
func (s *Set[E]) Merge(other *Set[E]) *Set[E] {
	merged := &Set[E]{
		tags:       s.tags,
		elements:   s.elements.clone(),
		tombstones: s.tombstones.clone(),
	}
	merged.elements.union(other.elements)
	merged.tombstones.union(other.tombstones)
	merged.elements.subtract(merged.tombstones)
	return merged
}

// Equal reports whether both sets have the same live values, regardless of
// their tag histories.
func (s *Set[E]) Equal(other *Set[E]) bool {
	return crdt.Equal[E](s, other)
}

// Tags returns a copy of the live tags of [v].
func (s *Set[E]) Tags(v E) set.Set[tag.Tag] {
	return s.elements.tags(v)
}

// Tombstones returns a copy of the tombstoned tags of [v].
func (s *Set[E]) Tombstones(v E) set.Set[tag.Tag] {
	return s.tombstones.tags(v)
}

// TagCount returns the number of live and tombstoned tags held by the set.
func (s *Set[E]) TagCount() (live int, tombstoned int) {
	return s.elements.tagCount(), s.tombstones.tagCount()
}

func (s *Set[E]) Payload() ([]byte, error) {
	return json.Marshal(map[string]multimap[E]{
		elementsField:   s.elements,
		tombstonesField: s.tombstones,
	})
}

func (s *Set[E]) MarshalJSON() ([]byte, error) {
	return s.Payload()
}

// UnmarshalJSON replaces the state of the set with the decoded snapshot. The
// tag generator is kept if one was set.
func (s *Set[E]) UnmarshalJSON(b []byte) error {
	parsed, err := ParseWithGenerator[E](b, s.tags)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}
