// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package crdt defines the contract shared by the state-based replicated sets
// in gset, twophase and orset.
//
// A replica is mutated locally through the collection methods of [Set]. Two
// replicas are reconciled with Merge, which returns a new instance and never
// modifies either input. Merge is commutative, associative and idempotent
// with respect to Value, so replicas that have seen the same updates converge
// regardless of delivery order or duplication.
//
// Sets are not safe for concurrent use. Access must be synchronized by the
// owner, e.g. through the replica package.
package crdt

import (
	"iter"
	"reflect"

	"github.com/luxfi/crdt/utils/set"
)

// Valuer exposes the observable value of a set.
type Valuer[E comparable] interface {
	// Value returns a snapshot of the elements currently in the set. The
	// returned set is owned by the caller.
	Value() set.Set[E]
}

// Payloader exports the serialized state of a replica.
type Payloader interface {
	// Payload returns the JSON snapshot of the full replica state, including
	// any metadata needed by Merge.
	Payload() ([]byte, error)
}

// Set is the collection surface of a replicated set.
type Set[E comparable] interface {
	Valuer[E]
	Payloader

	// Add inserts [v]. It returns true if [v] was not already present.
	Add(v E) (bool, error)
	// AddAll inserts every value of [vs]. It returns true if the set changed.
	AddAll(vs ...E) (bool, error)
	// Remove deletes [v]. It returns true if [v] was removed.
	Remove(v E) (bool, error)
	// RemoveAll deletes every value of [vs].
	RemoveAll(vs ...E) (bool, error)
	// RetainAll keeps only the values of [vs].
	RetainAll(vs ...E) (bool, error)
	// Clear removes every visible value.
	Clear() error

	Contains(v E) bool
	ContainsAll(vs ...E) bool
	Len() int
	IsEmpty() bool

	// All iterates over the visible values in no particular order.
	All() iter.Seq[E]
	// List returns the visible values in no particular order.
	List() []E
}

// Replicated is a [Set] that can be reconciled with another replica of the
// same type.
type Replicated[E comparable, T any] interface {
	Set[E]

	// Merge returns a new replica holding the reconciliation of the receiver
	// and [other]. Neither input is modified.
	Merge(other T) T
}

// Equal reports whether [a] and [b] have the same observable value. Replicas
// with different histories may compare equal.
func Equal[E comparable](a, b Valuer[E]) bool {
	return a.Value().Equals(b.Value())
}

// IsNil reports whether [v] holds no value: a nil interface, pointer, map,
// slice, channel or function.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
