// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package leveldb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/luxfi/crdt/database"
)

const (
	// Name is the name of this database for database switches
	Name = "leveldb"

	// DefaultBlockCacheSize is the default size of the block cache in bytes.
	DefaultBlockCacheSize = 12 * opt.MiB

	// DefaultWriteBufferSize is the default size of the write buffer in bytes.
	DefaultWriteBufferSize = 12 * opt.MiB

	// DefaultHandleCap is the default number of files descriptors to cap
	// levelDB to use.
	DefaultHandleCap = 1024

	// minBlockCacheSize is the minimum size of the block cache in bytes.
	minBlockCacheSize = 8 * opt.MiB

	// minWriteBufferSize is the minimum size of the write buffer in bytes.
	minWriteBufferSize = 4 * opt.MiB

	// minHandleCap is the minimum number of file handles.
	minHandleCap = 64
)

var (
	_ database.Database = (*Database)(nil)
	_ database.Batch    = (*batch)(nil)
	_ database.Iterator = (*dbIterator)(nil)
)

// Config tunes the leveldb instance. Zero values select the defaults.
type Config struct {
	BlockCacheCapacity     int  `json:"blockCacheCapacity"`
	WriteBuffer            int  `json:"writeBuffer"`
	OpenFilesCacheCapacity int  `json:"openFilesCacheCapacity"`
	Sync                   bool `json:"sync"`
}

// Database is a persistent key-value store using LevelDB.
type Database struct {
	db *leveldb.DB
	wo *opt.WriteOptions
}

// New returns a leveldb database stored at [path]. [configBytes] holds an
// optional JSON encoded [Config].
func New(path string, configBytes []byte) (*Database, error) {
	cfg := Config{
		BlockCacheCapacity:     DefaultBlockCacheSize,
		WriteBuffer:            DefaultWriteBufferSize,
		OpenFilesCacheCapacity: DefaultHandleCap,
	}
	if len(configBytes) > 0 {
		if err := json.Unmarshal(configBytes, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse db config: %w", err)
		}
	}
	cfg.BlockCacheCapacity = max(cfg.BlockCacheCapacity, minBlockCacheSize)
	cfg.WriteBuffer = max(cfg.WriteBuffer, minWriteBufferSize)
	cfg.OpenFilesCacheCapacity = max(cfg.OpenFilesCacheCapacity, minHandleCap)

	ldb, err := leveldb.OpenFile(path, &opt.Options{
		BlockCacheCapacity:     cfg.BlockCacheCapacity,
		WriteBuffer:            cfg.WriteBuffer,
		OpenFilesCacheCapacity: cfg.OpenFilesCacheCapacity,
		DisableSeeksCompaction: true,
	})
	if err != nil {
		return nil, err
	}
	return &Database{
		db: ldb,
		wo: &opt.WriteOptions{Sync: cfg.Sync},
	}, nil
}

func (d *Database) Close() error {
	return updateError(d.db.Close())
}

func (d *Database) HealthCheck(context.Context) (interface{}, error) {
	stats, err := d.db.GetProperty("leveldb.stats")
	if err != nil {
		return nil, updateError(err)
	}
	return stats, nil
}

func (d *Database) Has(key []byte) (bool, error) {
	has, err := d.db.Has(key, nil)
	return has, updateError(err)
}

func (d *Database) Get(key []byte) ([]byte, error) {
	value, err := d.db.Get(key, nil)
	return value, updateError(err)
}

func (d *Database) Put(key []byte, value []byte) error {
	return updateError(d.db.Put(key, value, d.wo))
}

func (d *Database) Delete(key []byte) error {
	return updateError(d.db.Delete(key, d.wo))
}

func (d *Database) NewBatch() database.Batch {
	return &batch{
		b: new(leveldb.Batch),
		d: d,
	}
}

func (d *Database) NewIterator() database.Iterator {
	return d.NewIteratorWithStartAndPrefix(nil, nil)
}

func (d *Database) NewIteratorWithStart(start []byte) database.Iterator {
	return d.NewIteratorWithStartAndPrefix(start, nil)
}

func (d *Database) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return d.NewIteratorWithStartAndPrefix(nil, prefix)
}

func (d *Database) NewIteratorWithStartAndPrefix(start, prefix []byte) database.Iterator {
	r := util.BytesPrefix(prefix)
	if bytes.Compare(start, prefix) > 0 {
		r.Start = start
	}
	return &dbIterator{
		it: d.db.NewIterator(r, nil),
	}
}

func (d *Database) Compact(start []byte, limit []byte) error {
	return updateError(d.db.CompactRange(util.Range{Start: start, Limit: limit}))
}

// batch is a batch of operations to be written atomically.
type batch struct {
	b *leveldb.Batch
	d *Database
}

func (b *batch) Put(key, value []byte) error {
	b.b.Put(key, value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.b.Delete(key)
	return nil
}

// Size returns the encoded size of the queued writes.
func (b *batch) Size() int {
	return len(b.b.Dump())
}

func (b *batch) Write() error {
	return updateError(b.d.db.Write(b.b, b.d.wo))
}

func (b *batch) Reset() {
	b.b.Reset()
}

func (b *batch) Replay(w database.KeyValueWriterDeleter) error {
	r := &replayer{w: w}
	if err := b.b.Replay(r); err != nil {
		return err
	}
	return r.err
}

// replayer adapts a writer to leveldb's error-less batch replay callbacks.
// Only the first error is kept.
type replayer struct {
	w   database.KeyValueWriterDeleter
	err error
}

func (r *replayer) Put(key, value []byte) {
	if r.err != nil {
		return
	}
	r.err = r.w.Put(slices.Clone(key), slices.Clone(value))
}

func (r *replayer) Delete(key []byte) {
	if r.err != nil {
		return
	}
	r.err = r.w.Delete(slices.Clone(key))
}

// dbIterator copies keys and values out of the leveldb iterator, which reuses
// its buffers.
type dbIterator struct {
	it    iterator.Iterator
	key   []byte
	value []byte
	err   error
}

func (it *dbIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.it.Next() {
		it.key = nil
		it.value = nil
		it.err = updateError(it.it.Error())
		return false
	}
	it.key = slices.Clone(it.it.Key())
	it.value = slices.Clone(it.it.Value())
	return true
}

func (it *dbIterator) Error() error {
	return it.err
}

func (it *dbIterator) Key() []byte {
	return it.key
}

func (it *dbIterator) Value() []byte {
	return it.value
}

func (it *dbIterator) Release() {
	it.it.Release()
}

// updateError converts a leveldb-specific error to its database equivalent,
// if applicable.
func updateError(err error) error {
	switch {
	case errors.Is(err, leveldb.ErrClosed):
		return database.ErrClosed
	case errors.Is(err, leveldb.ErrNotFound):
		return database.ErrNotFound
	default:
		return err
	}
}
