// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package memdb

import (
	"context"
	"slices"
	"sync"

	"github.com/google/btree"

	"github.com/luxfi/crdt/database"
)

const (
	// Name is the name of this database for database switches
	Name = "memdb"

	// degree of the b-tree holding the keys
	degree = 32
)

var (
	_ database.Database = (*Database)(nil)
	_ database.Batch    = (*batch)(nil)
)

type entry struct {
	key   string
	value []byte
}

func less(a, b entry) bool {
	return a.key < b.key
}

// Database is an ephemeral key-value store that implements the Database
// interface. Keys are kept ordered in a b-tree.
type Database struct {
	lock sync.RWMutex
	tree *btree.BTreeG[entry]
}

// New returns an empty in-memory database.
func New() *Database {
	return &Database{
		tree: btree.NewG(degree, less),
	}
}

func (db *Database) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.tree == nil {
		return database.ErrClosed
	}
	db.tree = nil
	return nil
}

func (db *Database) isClosed() bool {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return db.tree == nil
}

func (db *Database) Has(key []byte) (bool, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.tree == nil {
		return false, database.ErrClosed
	}
	return db.tree.Has(entry{key: string(key)}), nil
}

func (db *Database) Get(key []byte) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.tree == nil {
		return nil, database.ErrClosed
	}
	if e, ok := db.tree.Get(entry{key: string(key)}); ok {
		return slices.Clone(e.value), nil
	}
	return nil, database.ErrNotFound
}

func (db *Database) Put(key []byte, value []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.tree == nil {
		return database.ErrClosed
	}
	db.tree.ReplaceOrInsert(entry{
		key:   string(key),
		value: slices.Clone(value),
	})
	return nil
}

func (db *Database) Delete(key []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.tree == nil {
		return database.ErrClosed
	}
	db.tree.Delete(entry{key: string(key)})
	return nil
}

func (db *Database) NewBatch() database.Batch {
	return &batch{
		db: db,
	}
}

func (db *Database) NewIterator() database.Iterator {
	return db.NewIteratorWithStartAndPrefix(nil, nil)
}

func (db *Database) NewIteratorWithStart(start []byte) database.Iterator {
	return db.NewIteratorWithStartAndPrefix(start, nil)
}

func (db *Database) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return db.NewIteratorWithStartAndPrefix(nil, prefix)
}

func (db *Database) NewIteratorWithStartAndPrefix(start, prefix []byte) database.Iterator {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.tree == nil {
		return &database.IteratorError{
			Err: database.ErrClosed,
		}
	}
	return newIterator(db, start, prefix)
}

// Compact is a no-op for an in-memory database.
func (db *Database) Compact(_, _ []byte) error {
	if db.isClosed() {
		return database.ErrClosed
	}
	return nil
}

func (db *Database) HealthCheck(context.Context) (interface{}, error) {
	if db.isClosed() {
		return nil, database.ErrClosed
	}
	return nil, nil
}

type batch struct {
	database.BatchOps

	db *Database
}

func (b *batch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()

	if b.db.tree == nil {
		return database.ErrClosed
	}
	for _, op := range b.Ops {
		if op.Delete {
			b.db.tree.Delete(entry{key: string(op.Key)})
		} else {
			b.db.tree.ReplaceOrInsert(entry{
				key:   string(op.Key),
				value: slices.Clone(op.Value),
			})
		}
	}
	return nil
}
