// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tag mints the unique identifiers that the observed-remove set
// attaches to every add.
package tag

import (
	"bytes"
	"encoding/binary"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	_ Generator = (*uuidGenerator)(nil)
	_ Generator = (*Sequence)(nil)
)

// Tag identifies a single add operation. It encodes as a canonical UUID
// string.
type Tag = uuid.UUID

// Generator mints tags. Tags must never collide with a tag minted by any other
// generator anywhere in the system.
//
// Implementations must be safe for concurrent use.
type Generator interface {
	Next() Tag
}

type uuidGenerator struct{}

// NewUUIDGenerator returns a generator of random (version 4) UUIDs.
func NewUUIDGenerator() Generator {
	return uuidGenerator{}
}

func (uuidGenerator) Next() Tag {
	return uuid.New()
}

// Sequence is a deterministic generator. Tags are unique per prefix, so
// replicas sharing a test must use distinct prefixes.
type Sequence struct {
	prefix uint32
	next   atomic.Uint64
}

// NewSequence returns a generator whose tags carry [prefix] in their first
// four bytes and a counter starting at 1 in their last eight.
func NewSequence(prefix uint32) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) Next() Tag {
	var t Tag
	binary.BigEndian.PutUint32(t[:4], s.prefix)
	binary.BigEndian.PutUint64(t[8:], s.next.Add(1))
	return t
}

// Sort orders tags byte-wise in place.
func Sort(tags []Tag) {
	slices.SortFunc(tags, func(a, b Tag) int {
		return bytes.Compare(a[:], b[:])
	})
}
