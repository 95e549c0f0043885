// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store persists named replica snapshots in a key-value database.
//
// Every snapshot lives under the key namespace + "/" + name. Namespaces are
// non-empty and never contain "/", so several stores can share one database
// without seeing each other's entries.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/crdt"
	"github.com/luxfi/crdt/database"
)

const separator = '/'

var (
	ErrNotFound         = errors.New("snapshot not found")
	ErrInvalidName      = errors.New("invalid snapshot name")
	ErrInvalidNamespace = errors.New("invalid snapshot namespace")
)

// Store reads and writes the snapshots of one namespace.
type Store struct {
	db     database.Database
	prefix []byte
}

// New returns a store over the [namespace] keys of [db]. [namespace] must be
// non-empty and must not contain the separator.
func New(db database.Database, namespace string) (*Store, error) {
	if namespace == "" || strings.ContainsRune(namespace, separator) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}
	prefix := make([]byte, 0, len(namespace)+1)
	prefix = append(prefix, namespace...)
	prefix = append(prefix, separator)
	return &Store{
		db:     db,
		prefix: prefix,
	}, nil
}

func (s *Store) key(name string) ([]byte, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	key := make([]byte, 0, len(s.prefix)+len(name))
	key = append(key, s.prefix...)
	key = append(key, name...)
	return key, nil
}

// Put stores [payload] under [name], replacing any previous snapshot.
func (s *Store) Put(name string, payload []byte) error {
	key, err := s.key(name)
	if err != nil {
		return err
	}
	return s.db.Put(key, payload)
}

// Get returns the snapshot stored under [name], or [ErrNotFound].
func (s *Store) Get(name string) ([]byte, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, err
	}
	payload, err := s.db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return payload, err
}

func (s *Store) Has(name string) (bool, error) {
	key, err := s.key(name)
	if err != nil {
		return false, err
	}
	return s.db.Has(key)
}

// Delete removes the snapshot stored under [name]. Deleting a missing
// snapshot is not an error.
func (s *Store) Delete(name string) error {
	key, err := s.key(name)
	if err != nil {
		return err
	}
	return s.db.Delete(key)
}

// Names returns the names of the stored snapshots in ascending order.
func (s *Store) Names() ([]string, error) {
	it := s.db.NewIteratorWithPrefix(s.prefix)
	defer it.Release()

	var names []string
	for it.Next() {
		names = append(names, string(it.Key()[len(s.prefix):]))
	}
	return names, it.Error()
}

// Clear removes every snapshot of the namespace in one batch.
func (s *Store) Clear() error {
	it := s.db.NewIteratorWithPrefix(s.prefix)
	defer it.Release()

	batch := s.db.NewBatch()
	for it.Next() {
		if err := batch.Delete(it.Key()); err != nil {
			return err
		}
	}
	if err := it.Error(); err != nil {
		return err
	}
	return batch.Write()
}

// Save stores the current snapshot of [replica] under [name].
func (s *Store) Save(name string, replica crdt.Payloader) error {
	payload, err := replica.Payload()
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", name, err)
	}
	return s.Put(name, payload)
}

// Load decodes the snapshot stored under [name] with [decode].
func Load[T any](s *Store, name string, decode func([]byte) (T, error)) (T, error) {
	payload, err := s.Get(name)
	if err != nil {
		var zero T
		return zero, err
	}
	replica, err := decode(payload)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to decode %q: %w", name, err)
	}
	return replica, nil
}
