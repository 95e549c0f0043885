// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package meterdb

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/crdt/database"
)

const (
	methodLabel = "method"

	has             = "has"
	get             = "get"
	put             = "put"
	del             = "delete"
	newBatch        = "new_batch"
	newIterator     = "new_iterator"
	compact         = "compact"
	closeMethod     = "close"
	healthCheck     = "health_check"
	batchPut        = "batch_put"
	batchDelete     = "batch_delete"
	batchSize       = "batch_size"
	batchWrite      = "batch_write"
	batchReset      = "batch_reset"
	batchReplay     = "batch_replay"
	iteratorNext    = "iterator_next"
	iteratorError   = "iterator_error"
	iteratorKey     = "iterator_key"
	iteratorValue   = "iterator_value"
	iteratorRelease = "iterator_release"
)

var (
	_ database.Database = (*Database)(nil)
	_ database.Batch    = (*batch)(nil)
	_ database.Iterator = (*iterator)(nil)

	methodLabels = []string{methodLabel}
)

// Database tracks the amount of time each operation takes and how many bytes
// are read/written to the underlying database instance.
type Database struct {
	db database.Database

	calls    *prometheus.CounterVec
	duration *prometheus.GaugeVec
	size     *prometheus.CounterVec
}

// New returns [db] wrapped with call metrics. The metrics are registered on
// [reg] under [namespace].
func New(
	namespace string,
	reg prometheus.Registerer,
	db database.Database,
) (*Database, error) {
	meterDB := &Database{
		db: db,
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls",
				Help:      "number of calls to the database",
			},
			methodLabels,
		),
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "duration",
				Help:      "time spent in database calls (ns)",
			},
			methodLabels,
		),
		size: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "size",
				Help:      "size of data passed in database calls",
			},
			methodLabels,
		),
	}
	err := errors.Join(
		reg.Register(meterDB.calls),
		reg.Register(meterDB.duration),
		reg.Register(meterDB.size),
	)
	return meterDB, err
}

// observe records one call of [method] that started at [start] and moved
// [size] bytes.
func (db *Database) observe(method string, start time.Time, size int) {
	db.calls.WithLabelValues(method).Inc()
	db.duration.WithLabelValues(method).Add(float64(time.Since(start)))
	if size > 0 {
		db.size.WithLabelValues(method).Add(float64(size))
	}
}

func (db *Database) Has(key []byte) (bool, error) {
	start := time.Now()
	ok, err := db.db.Has(key)
	db.observe(has, start, len(key))
	return ok, err
}

func (db *Database) Get(key []byte) ([]byte, error) {
	start := time.Now()
	value, err := db.db.Get(key)
	db.observe(get, start, len(key)+len(value))
	return value, err
}

func (db *Database) Put(key, value []byte) error {
	start := time.Now()
	err := db.db.Put(key, value)
	db.observe(put, start, len(key)+len(value))
	return err
}

func (db *Database) Delete(key []byte) error {
	start := time.Now()
	err := db.db.Delete(key)
	db.observe(del, start, len(key))
	return err
}

func (db *Database) NewBatch() database.Batch {
	start := time.Now()
	b := &batch{
		batch: db.db.NewBatch(),
		db:    db,
	}
	db.observe(newBatch, start, 0)
	return b
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
	now := time.Now()
	it := &iterator{
		iterator: db.db.NewIteratorWithStartAndPrefix(start, prefix),
		db:       db,
	}
	db.observe(newIterator, now, 0)
	return it
}

func (db *Database) Compact(start, limit []byte) error {
	now := time.Now()
	err := db.db.Compact(start, limit)
	db.observe(compact, now, 0)
	return err
}

func (db *Database) Close() error {
	start := time.Now()
	err := db.db.Close()
	db.observe(closeMethod, start, 0)
	return err
}

func (db *Database) HealthCheck(ctx context.Context) (interface{}, error) {
	start := time.Now()
	details, err := db.db.HealthCheck(ctx)
	db.observe(healthCheck, start, 0)
	return details, err
}

type batch struct {
	batch database.Batch
	db    *Database
}

func (b *batch) Put(key, value []byte) error {
	start := time.Now()
	err := b.batch.Put(key, value)
	b.db.observe(batchPut, start, len(key)+len(value))
	return err
}

func (b *batch) Delete(key []byte) error {
	start := time.Now()
	err := b.batch.Delete(key)
	b.db.observe(batchDelete, start, len(key))
	return err
}

func (b *batch) Size() int {
	start := time.Now()
	size := b.batch.Size()
	b.db.observe(batchSize, start, 0)
	return size
}

func (b *batch) Write() error {
	start := time.Now()
	err := b.batch.Write()
	b.db.observe(batchWrite, start, b.batch.Size())
	return err
}

func (b *batch) Reset() {
	start := time.Now()
	b.batch.Reset()
	b.db.observe(batchReset, start, 0)
}

func (b *batch) Replay(w database.KeyValueWriterDeleter) error {
	start := time.Now()
	err := b.batch.Replay(w)
	b.db.observe(batchReplay, start, 0)
	return err
}

type iterator struct {
	iterator database.Iterator
	db       *Database
}

func (it *iterator) Next() bool {
	start := time.Now()
	next := it.iterator.Next()
	it.db.observe(iteratorNext, start, len(it.iterator.Key())+len(it.iterator.Value()))
	return next
}

func (it *iterator) Error() error {
	start := time.Now()
	err := it.iterator.Error()
	it.db.observe(iteratorError, start, 0)
	return err
}

func (it *iterator) Key() []byte {
	start := time.Now()
	key := it.iterator.Key()
	it.db.observe(iteratorKey, start, 0)
	return key
}

func (it *iterator) Value() []byte {
	start := time.Now()
	value := it.iterator.Value()
	it.db.observe(iteratorValue, start, 0)
	return value
}

func (it *iterator) Release() {
	start := time.Now()
	it.iterator.Release()
	it.db.observe(iteratorRelease, start, 0)
}
