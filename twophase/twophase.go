// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package twophase implements a two-phase set: a grow-only set of adds paired
// with a grow-only set of removals.
//
// A value removed from a replica can never be added to that replica again.
// The guard lives in the local API only and Merge does not re-check it. A
// replica that never saw a removal may still add the value, and that add is
// visible there until the replicas merge. After the merge the removal covers
// every add of the value, including ones it never observed.
package twophase

import (
	"encoding/json"
	"fmt"
	"iter"

	"github.com/luxfi/crdt"
	"github.com/luxfi/crdt/gset"
	"github.com/luxfi/crdt/utils/set"
)

var (
	_ crdt.Replicated[string, *Set[string]] = (*Set[string])(nil)
	_ json.Marshaler                        = (*Set[string])(nil)
	_ json.Unmarshaler                      = (*Set[string])(nil)
)

const (
	kind         = "two-phase set"
	addsField    = "a"
	removalField = "r"
)

// Set is a two-phase set. The zero value is an empty set ready to use.
type Set[E comparable] struct {
	adds     gset.Set[E]
	removals gset.Set[E]
}

// New returns an empty two-phase set.
func New[E comparable]() *Set[E] {
	return &Set[E]{}
}

// Parse decodes a snapshot produced by Payload.
func Parse[E comparable](payload []byte) (*Set[E], error) {
	fields, err := crdt.DecodeFields(kind, payload, addsField, removalField)
	if err != nil {
		return nil, err
	}
	adds, err := gset.Parse[E](fields[addsField])
	if err != nil {
		return nil, fmt.Errorf("%s adds: %w", kind, err)
	}
	removals, err := gset.Parse[E](fields[removalField])
	if err != nil {
		return nil, fmt.Errorf("%s removals: %w", kind, err)
	}
	return &Set[E]{
		adds:     *adds,
		removals: *removals,
	}, nil
}

// Add inserts [v]. It returns [crdt.ErrIllegalState] if [v] has already been
// removed from this replica.
func (s *Set[E]) Add(v E) (bool, error) {
	if s.removals.Contains(v) {
		return false, fmt.Errorf("%w: %v already removed", crdt.ErrIllegalState, v)
	}
	return s.adds.Add(v)
}

// AddAll inserts [vs]. If any value has already been removed, nothing is added
// and a [*crdt.ConflictError] reports how many values conflict.
func (s *Set[E]) AddAll(vs ...E) (bool, error) {
	conflicts := s.removals.Value().Overlaps(vs...)
	if conflicts.Len() > 0 {
		return false, &crdt.ConflictError{Count: conflicts.Len()}
	}
	return s.adds.AddAll(vs...)
}

// Remove marks [v] as removed. It returns false if [v] was never added or was
// already removed.
func (s *Set[E]) Remove(v E) (bool, error) {
	if s.removals.Contains(v) || !s.adds.Contains(v) {
		return false, nil
	}
	return s.removals.Add(v)
}

// RemoveAll removes every value of [vs]. It returns true only if all of [vs]
// were visible before the call.
func (s *Set[E]) RemoveAll(vs ...E) (bool, error) {
	allVisible := s.ContainsAll(vs...)
	for _, v := range vs {
		if _, err := s.Remove(v); err != nil {
			return false, err
		}
	}
	return allVisible, nil
}

// RetainAll has no merge semantics for a two-phase set.
func (*Set[E]) RetainAll(...E) (bool, error) {
	return false, crdt.ErrUnsupportedOperation
}

// Clear removes every value ever added.
func (s *Set[E]) Clear() error {
	_, err := s.removals.AddAll(s.adds.List()...)
	return err
}

func (s *Set[E]) Contains(v E) bool {
	return !s.removals.Contains(v) && s.adds.Contains(v)
}

func (s *Set[E]) ContainsAll(vs ...E) bool {
	for _, v := range vs {
		if !s.Contains(v) {
			return false
		}
	}
	return true
}

// Len returns |adds| - |removals|. This equals the number of visible values
// as long as every removal is also an add, which local mutation guarantees but
// a hand-crafted snapshot does not.
func (s *Set[E]) Len() int {
	return s.adds.Len() - s.removals.Len()
}

func (s *Set[E]) IsEmpty() bool {
	return s.removals.ContainsAll(s.adds.List()...)
}

func (s *Set[E]) All() iter.Seq[E] {
	return s.Value().All()
}

func (s *Set[E]) List() []E {
	return s.Value().List()
}

// Value returns the added values that have not been removed.
func (s *Set[E]) Value() set.Set[E] {
	value := s.adds.Value()
	value.Difference(s.removals.Value())
	return value
}

// Merge returns a replica whose adds and removals are the unions of both
// inputs. The local re-add guard is not re-checked.
func (s *Set[E]) Merge(other *Set[E]) *Set[E] {
	return &Set[E]{
		adds:     *s.adds.Merge(&other.adds),
		removals: *s.removals.Merge(&other.removals),
	}
}

// Equal reports whether both sets have the same visible values.
func (s *Set[E]) Equal(other *Set[E]) bool {
	return crdt.Equal[E](s, other)
}

// Adds returns every value ever added, including removed ones.
func (s *Set[E]) Adds() set.Set[E] {
	return s.adds.Value()
}

// Removals returns every value ever removed.
func (s *Set[E]) Removals() set.Set[E] {
	return s.removals.Value()
}

func (s *Set[E]) Payload() ([]byte, error) {
	return json.Marshal(map[string]*gset.Set[E]{
		addsField:    &s.adds,
		removalField: &s.removals,
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
