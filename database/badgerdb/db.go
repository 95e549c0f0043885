// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package badgerdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/luxfi/crdt/database"
	"github.com/luxfi/crdt/logging"
)

// Name is the name of this database for database switches
const Name = "badgerdb"

var (
	_ database.Database = (*Database)(nil)
	_ database.Batch    = (*batch)(nil)
	_ database.Iterator = (*iterator)(nil)

	errPathRequired = errors.New("badgerdb: database path required")
)

// Config tunes the badger instance. Zero values keep badger's defaults.
type Config struct {
	InMemory         bool   `json:"inMemory"`
	SyncWrites       bool   `json:"syncWrites"`
	NumCompactors    int    `json:"numCompactors"`
	MemTableSize     int64  `json:"memTableSize"`
	ValueLogFileSize int64  `json:"valueLogFileSize"`
	BlockCacheSize   int64  `json:"blockCacheSize"`
	IndexCacheSize   int64  `json:"indexCacheSize"`
	Compression      string `json:"compression"`
}

// Database is a badgerdb backed database
type Database struct {
	lock   sync.RWMutex
	db     *badger.DB
	closed bool
}

// New returns a badger database stored at [path]. [configBytes] holds an
// optional JSON encoded [Config]. Badger's own log output is sent to [log].
func New(path string, configBytes []byte, log logging.Logger) (*Database, error) {
	cfg, err := ParseConfig(configBytes)
	if err != nil {
		return nil, err
	}
	if path == "" && !cfg.InMemory {
		return nil, errPathRequired
	}
	if log == nil {
		log = logging.NoLog{}
	}

	opts := badger.DefaultOptions(path).
		WithLogger(badgerLogger{log: log}).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}
	if err := applyConfig(&opts, cfg); err != nil {
		return nil, err
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

// ParseConfig decodes the JSON encoded [Config] in [configBytes]. An empty
// input yields the zero config.
func ParseConfig(configBytes []byte) (Config, error) {
	var cfg Config
	if len(configBytes) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(configBytes, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse db config: %w", err)
	}
	return cfg, nil
}

func applyConfig(opts *badger.Options, cfg Config) error {
	if cfg.NumCompactors > 0 {
		opts.NumCompactors = cfg.NumCompactors
	}
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.BlockCacheSize > 0 {
		opts.BlockCacheSize = cfg.BlockCacheSize
	}
	if cfg.IndexCacheSize > 0 {
		opts.IndexCacheSize = cfg.IndexCacheSize
	}
	switch cfg.Compression {
	case "":
	case "snappy":
		opts.Compression = options.Snappy
	case "zstd":
		opts.Compression = options.ZSTD
	case "none":
		opts.Compression = options.None
	default:
		return fmt.Errorf("badgerdb: unknown compression %q", cfg.Compression)
	}
	return nil
}

func (d *Database) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.closed {
		return database.ErrClosed
	}
	d.closed = true
	return d.db.Close()
}

func (d *Database) HealthCheck(context.Context) (interface{}, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.closed {
		return nil, database.ErrClosed
	}
	lsm, vlog := d.db.Size()
	return map[string]int64{
		"lsmSize":  lsm,
		"vlogSize": vlog,
	}, nil
}

func (d *Database) Has(key []byte) (bool, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.closed {
		return false, database.ErrClosed
	}
	err := d.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, updateError(err)
	}
}

func (d *Database) Get(key []byte) ([]byte, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.closed {
		return nil, database.ErrClosed
	}
	var value []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, updateError(err)
}

func (d *Database) Put(key []byte, value []byte) error {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.closed {
		return database.ErrClosed
	}
	return updateError(d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(bytes.Clone(key), bytes.Clone(value))
	}))
}

func (d *Database) Delete(key []byte) error {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.closed {
		return database.ErrClosed
	}
	return updateError(d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(bytes.Clone(key))
	}))
}

// Compact runs a value log garbage collection pass. Badger compacts its LSM
// tree in the background, so the key range is ignored.
func (d *Database) Compact(_, _ []byte) error {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.closed {
		return database.ErrClosed
	}
	err := d.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

func (d *Database) NewBatch() database.Batch {
	return &batch{
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
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.closed {
		return &database.IteratorError{
			Err: database.ErrClosed,
		}
	}

	txn := d.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = bytes.Clone(prefix)
	it := txn.NewIterator(opts)

	seek := prefix
	if bytes.Compare(start, prefix) > 0 {
		seek = start
	}
	it.Seek(seek)
	return &iterator{
		txn: txn,
		it:  it,
	}
}

type batch struct {
	database.BatchOps

	d *Database
}

func (b *batch) Write() error {
	b.d.lock.RLock()
	defer b.d.lock.RUnlock()

	if b.d.closed {
		return database.ErrClosed
	}
	return updateError(b.d.db.Update(func(txn *badger.Txn) error {
		return b.Replay(txnWriter{txn})
	}))
}

type txnWriter struct {
	txn *badger.Txn
}

func (w txnWriter) Put(key, value []byte) error {
	return w.txn.Set(bytes.Clone(key), bytes.Clone(value))
}

func (w txnWriter) Delete(key []byte) error {
	return w.txn.Delete(bytes.Clone(key))
}

type iterator struct {
	txn *badger.Txn
	it  *badger.Iterator

	started bool
	key     []byte
	value   []byte
	err     error
}

func (it *iterator) Next() bool {
	if it.err != nil || it.it == nil {
		return false
	}
	if it.started {
		it.it.Next()
	}
	it.started = true

	if !it.it.Valid() {
		it.key = nil
		it.value = nil
		return false
	}
	item := it.it.Item()
	it.key = item.KeyCopy(nil)
	it.value, it.err = item.ValueCopy(nil)
	if it.err != nil {
		it.key = nil
		it.value = nil
		return false
	}
	return true
}

func (it *iterator) Error() error {
	return it.err
}

func (it *iterator) Key() []byte {
	return it.key
}

func (it *iterator) Value() []byte {
	return it.value
}

func (it *iterator) Release() {
	if it.it == nil {
		return
	}
	it.it.Close()
	it.txn.Discard()
	it.it = nil
}

// updateError converts a badger-specific error to its database equivalent,
// if applicable.
func updateError(err error) error {
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return database.ErrNotFound
	case errors.Is(err, badger.ErrDBClosed):
		return database.ErrClosed
	default:
		return err
	}
}

// badgerLogger forwards badger's log output to a [logging.Logger].
type badgerLogger struct {
	log logging.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error("badger: "+format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn("badger: "+format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Info("badger: "+format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug("badger: "+format, args...)
}
