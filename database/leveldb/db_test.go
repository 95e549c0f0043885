// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package leveldb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/crdt/database"
	"github.com/luxfi/crdt/database/dbtest"
	"github.com/luxfi/crdt/utils"
)

func newDB(t testing.TB) database.Database {
	db, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	return db
}

func TestInterface(t *testing.T) {
	dbtest.TestSuite(t, newDB)
}

func TestConfig(t *testing.T) {
	require := require.New(t)

	db, err := New(t.TempDir(), []byte(`{"blockCacheCapacity":1,"sync":true}`))
	require.NoError(err)
	require.True(db.wo.Sync)
	require.NoError(db.Put([]byte("k"), []byte("v")))
	require.NoError(db.Close())

	_, err = New(t.TempDir(), []byte(`{"sync":`))
	require.ErrorContains(err, "failed to parse db config")
}

func TestReopen(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	db, err := New(dir, nil)
	require.NoError(err)
	require.NoError(db.Put([]byte("k"), []byte("v")))
	require.NoError(db.Close())

	db, err = New(dir, nil)
	require.NoError(err)
	defer db.Close()

	value, err := db.Get([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), value)
}

func FuzzKeyValue(f *testing.F) {
	db := newDB(f)
	defer db.Close()

	dbtest.FuzzKeyValue(f, db)
}

func BenchmarkPutGet(b *testing.B) {
	db := newDB(b)
	defer db.Close()

	dbtest.BenchmarkPutGet(b, db, utils.KiB)
}
