// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebbledb

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/luxfi/crdt/database"
	"github.com/luxfi/crdt/utils"
)

const (
	// Name is the name of this database for database switches
	Name = "pebbledb"

	// DefaultCacheSize is the default block cache size in bytes.
	DefaultCacheSize = 512 * utils.MiB

	// DefaultMaxOpenFiles is the default number of open file descriptors.
	DefaultMaxOpenFiles = 4096
)

var (
	_ database.Database = (*Database)(nil)
	_ database.Batch    = (*batch)(nil)
	_ database.Iterator = (*iter)(nil)
)

// Config tunes the pebble instance. Zero values select the defaults.
type Config struct {
	CacheSize    int64 `json:"cacheSize"`
	MaxOpenFiles int   `json:"maxOpenFiles"`
	Sync         bool  `json:"sync"`
}

// Database is a persistent key-value store using pebble.
type Database struct {
	lock   sync.RWMutex
	db     *pebble.DB
	wo     *pebble.WriteOptions
	closed bool
}

// New returns a pebble database stored at [path]. [configBytes] holds an
// optional JSON encoded [Config].
func New(path string, configBytes []byte) (*Database, error) {
	cfg := Config{
		CacheSize:    DefaultCacheSize,
		MaxOpenFiles: DefaultMaxOpenFiles,
	}
	if len(configBytes) > 0 {
		if err := json.Unmarshal(configBytes, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse db config: %w", err)
		}
	}

	cache := pebble.NewCache(cfg.CacheSize)
	defer cache.Unref()

	db, err := pebble.Open(path, &pebble.Options{
		Cache:        cache,
		MaxOpenFiles: cfg.MaxOpenFiles,
	})
	if err != nil {
		return nil, err
	}

	wo := pebble.NoSync
	if cfg.Sync {
		wo = pebble.Sync
	}
	return &Database{
		db: db,
		wo: wo,
	}, nil
}

func (db *Database) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.closed {
		return database.ErrClosed
	}
	db.closed = true
	return updateError(db.db.Close())
}

func (db *Database) HealthCheck(context.Context) (interface{}, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.closed {
		return nil, database.ErrClosed
	}
	return nil, nil
}

func (db *Database) Has(key []byte) (bool, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.closed {
		return false, database.ErrClosed
	}
	_, closer, err := db.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, updateError(err)
	}
	return true, closer.Close()
}

func (db *Database) Get(key []byte) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.closed {
		return nil, database.ErrClosed
	}
	value, closer, err := db.db.Get(key)
	if err != nil {
		return nil, updateError(err)
	}
	// The returned slice is only valid until the closer is closed.
	value = slices.Clone(value)
	return value, closer.Close()
}

func (db *Database) Put(key []byte, value []byte) error {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.closed {
		return database.ErrClosed
	}
	return updateError(db.db.Set(key, value, db.wo))
}

func (db *Database) Delete(key []byte) error {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.closed {
		return database.ErrClosed
	}
	return updateError(db.db.Delete(key, db.wo))
}

func (db *Database) Compact(start []byte, limit []byte) error {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.closed {
		return database.ErrClosed
	}
	if limit == nil {
		// pebble rejects an open upper bound, so compact up to the last key.
		it, err := db.db.NewIter(&pebble.IterOptions{LowerBound: start})
		if err != nil {
			return updateError(err)
		}
		if !it.Last() {
			return it.Close()
		}
		limit = append(slices.Clone(it.Key()), 0)
		if err := it.Close(); err != nil {
			return err
		}
	}
	return updateError(db.db.Compact(start, limit, true))
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

	if db.closed {
		return &database.IteratorError{
			Err: database.ErrClosed,
		}
	}
	it, err := db.db.NewIter(keyRange(start, prefix))
	if err != nil {
		return &database.IteratorError{
			Err: updateError(err),
		}
	}
	return &iter{
		db:   db,
		iter: it,
	}
}

// batch queues its operations and turns them into a pebble batch on Write, so
// it stays reusable after a commit.
type batch struct {
	database.BatchOps

	db *Database
}

func (b *batch) Write() error {
	b.db.lock.RLock()
	defer b.db.lock.RUnlock()

	if b.db.closed {
		return database.ErrClosed
	}
	committed := b.db.db.NewBatch()
	if err := b.Replay(pebbleWriter{committed}); err != nil {
		return err
	}
	return updateError(committed.Commit(b.db.wo))
}

type pebbleWriter struct {
	b *pebble.Batch
}

func (w pebbleWriter) Put(key, value []byte) error {
	return w.b.Set(key, value, nil)
}

func (w pebbleWriter) Delete(key []byte) error {
	return w.b.Delete(key, nil)
}

type iter struct {
	db   *Database
	iter *pebble.Iterator

	started bool
	valid   bool
	key     []byte
	value   []byte
	err     error
}

func (it *iter) Next() bool {
	if it.err != nil {
		return false
	}
	it.db.lock.RLock()
	closed := it.db.closed
	it.db.lock.RUnlock()
	if closed {
		it.valid = false
		it.key = nil
		it.value = nil
		it.err = database.ErrClosed
		return false
	}

	if it.started {
		it.valid = it.iter.Next()
	} else {
		it.valid = it.iter.First()
		it.started = true
	}
	if !it.valid {
		it.key = nil
		it.value = nil
		it.err = updateError(it.iter.Error())
		return false
	}
	it.key = slices.Clone(it.iter.Key())
	it.value = slices.Clone(it.iter.Value())
	return true
}

func (it *iter) Error() error {
	return it.err
}

func (it *iter) Key() []byte {
	return it.key
}

func (it *iter) Value() []byte {
	return it.value
}

func (it *iter) Release() {
	if it.iter == nil {
		return
	}
	_ = it.iter.Close()
	it.iter = nil
}

// keyRange returns the bounds of the keys that start with [prefix] and are at
// least [start].
func keyRange(start, prefix []byte) *pebble.IterOptions {
	opts := &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixBound(prefix),
	}
	if string(start) > string(prefix) {
		opts.LowerBound = start
	}
	return opts
}

// prefixBound returns the smallest key greater than every key with [prefix],
// or nil if no such key exists.
func prefixBound(prefix []byte) []byte {
	bound := slices.Clone(prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		bound[i]++
		if bound[i] != 0 {
			return bound[:i+1]
		}
	}
	return nil
}
