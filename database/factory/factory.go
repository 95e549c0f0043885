// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package factory

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/luxfi/crdt/database"
	"github.com/luxfi/crdt/database/badgerdb"
	"github.com/luxfi/crdt/database/leveldb"
	"github.com/luxfi/crdt/database/memdb"
	"github.com/luxfi/crdt/database/meterdb"
	"github.com/luxfi/crdt/database/pebbledb"
	"github.com/luxfi/crdt/logging"
)

const defaultMetricsNamespace = "db"

var (
	ErrUnknownType = errors.New("unknown database type")

	errDirRequired = errors.New("database directory required")
)

// New creates a new database based on the config
func New(config DatabaseConfig) (database.Database, error) {
	if config.Logger == nil {
		config.Logger = logging.NoLogger
	}

	db, err := open(config)
	if err != nil {
		return nil, fmt.Errorf("couldn't create %s: %w", config.Type, err)
	}
	config.Logger.Info("opened %s database %q", config.Type, config.path())

	if config.MetricsReg == nil {
		return db, nil
	}
	namespace := config.MetricsNamespace
	if namespace == "" {
		namespace = defaultMetricsNamespace
	}
	meterDB, err := meterdb.New(namespace, config.MetricsReg, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("couldn't register %s metrics: %w", config.Type, err)
	}
	return meterDB, nil
}

func open(config DatabaseConfig) (database.Database, error) {
	switch config.Type {
	case memdb.Name:
		return memdb.New(), nil
	case leveldb.Name, pebbledb.Name, badgerdb.Name:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, config.Type)
	}

	if config.Dir == "" && !inMemory(config) {
		return nil, errDirRequired
	}
	path := config.path()
	switch config.Type {
	case leveldb.Name:
		return leveldb.New(path, config.Config)
	case pebbledb.Name:
		return pebbledb.New(path, config.Config)
	default:
		return badgerdb.New(path, config.Config, config.Logger)
	}
}

func (c DatabaseConfig) path() string {
	if c.Dir == "" {
		return ""
	}
	return filepath.Join(c.Dir, c.Name)
}

// inMemory reports whether the badger config asks for an in-memory instance.
func inMemory(config DatabaseConfig) bool {
	if config.Type != badgerdb.Name || len(config.Config) == 0 {
		return false
	}
	cfg, err := badgerdb.ParseConfig(config.Config)
	return err == nil && cfg.InMemory
}
