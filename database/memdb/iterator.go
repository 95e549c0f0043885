// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package memdb

import (
	"bytes"
	"slices"
	"strings"

	"github.com/luxfi/crdt/database"
)

var _ database.Iterator = (*iterator)(nil)

// iterator walks a copy of the entries that matched when it was created, so
// later writes to the database are not observed.
type iterator struct {
	db      *Database
	entries []entry

	idx int
	err error
}

// newIterator must be called with the read lock of [db] held.
func newIterator(db *Database, start, prefix []byte) *iterator {
	if bytes.Compare(start, prefix) < 0 {
		start = prefix
	}

	var entries []entry
	pivot := entry{key: string(start)}
	db.tree.AscendGreaterOrEqual(pivot, func(e entry) bool {
		if !strings.HasPrefix(e.key, string(prefix)) {
			return false
		}
		entries = append(entries, e)
		return true
	})
	return &iterator{
		db:      db,
		entries: entries,
		idx:     -1, // Next() increments before reading
	}
}

func (it *iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.db.isClosed() {
		it.err = database.ErrClosed
		it.entries = nil
		return false
	}
	it.idx++
	return it.idx < len(it.entries)
}

func (it *iterator) Error() error {
	return it.err
}

func (it *iterator) Key() []byte {
	if it.idx < 0 || it.idx >= len(it.entries) {
		return nil
	}
	return []byte(it.entries[it.idx].key)
}

func (it *iterator) Value() []byte {
	if it.idx < 0 || it.idx >= len(it.entries) {
		return nil
	}
	return slices.Clone(it.entries[it.idx].value)
}

func (it *iterator) Release() {
	it.entries = nil
}
