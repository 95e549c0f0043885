// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dbtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/crdt/database"
)

// TestSuite runs the conformance tests against a database implementation.
// [newDB] must return a fresh, empty database on every call.
func TestSuite(t *testing.T, newDB func(t testing.TB) database.Database) {
	tests := []struct {
		name string
		test func(t *testing.T, db database.Database)
	}{
		{"PutGet", testPutGet},
		{"GetNotFound", testGetNotFound},
		{"Has", testHas},
		{"Delete", testDelete},
		{"DeleteNonExistent", testDeleteNonExistent},
		{"PutOverwrite", testPutOverwrite},
		{"EmptyValue", testEmptyValue},
		{"ValueImmutability", testValueImmutability},
		{"IteratorValueImmutability", testIteratorValueImmutability},
		{"BatchPutDelete", testBatchPutDelete},
		{"BatchReset", testBatchReset},
		{"BatchReplay", testBatchReplay},
		{"BatchReuse", testBatchReuse},
		{"Iterator", testIterator},
		{"IteratorWithStart", testIteratorWithStart},
		{"IteratorWithPrefix", testIteratorWithPrefix},
		{"IteratorWithStartAndPrefix", testIteratorWithStartAndPrefix},
		{"IteratorSnapshot", testIteratorSnapshot},
		{"Compact", testCompact},
		{"HealthCheck", testHealthCheck},
		{"ConcurrentAccess", testConcurrentAccess},
		{"Close", testClose},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.test(t, newDB(t))
		})
	}
}

func testPutGet(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	require.NoError(db.Put([]byte("key"), []byte("value")))

	value, err := db.Get([]byte("key"))
	require.NoError(err)
	require.Equal([]byte("value"), value)
}

func testGetNotFound(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(err, database.ErrNotFound)
}

func testHas(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	has, err := db.Has([]byte("key"))
	require.NoError(err)
	require.False(has)

	require.NoError(db.Put([]byte("key"), []byte("value")))

	has, err = db.Has([]byte("key"))
	require.NoError(err)
	require.True(has)
}

func testDelete(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	require.NoError(db.Put([]byte("key"), []byte("value")))
	require.NoError(db.Delete([]byte("key")))

	has, err := db.Has([]byte("key"))
	require.NoError(err)
	require.False(has)

	_, err = db.Get([]byte("key"))
	require.ErrorIs(err, database.ErrNotFound)
}

func testDeleteNonExistent(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	require.NoError(db.Delete([]byte("missing")))
}

func testPutOverwrite(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	require.NoError(db.Put([]byte("key"), []byte("first")))
	require.NoError(db.Put([]byte("key"), []byte("second")))

	value, err := db.Get([]byte("key"))
	require.NoError(err)
	require.Equal([]byte("second"), value)
}

func testEmptyValue(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	require.NoError(db.Put([]byte("key"), nil))

	has, err := db.Has([]byte("key"))
	require.NoError(err)
	require.True(has)

	value, err := db.Get([]byte("key"))
	require.NoError(err)
	require.Empty(value)
}

func testValueImmutability(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	key := []byte("key")
	value := []byte("value")
	require.NoError(db.Put(key, value))

	// Modifying the inputs must not affect the stored entry.
	key[0] = 'x'
	value[0] = 'x'

	retrieved, err := db.Get([]byte("key"))
	require.NoError(err)
	require.Equal([]byte("value"), retrieved)

	retrieved[0] = 'y'
	again, err := db.Get([]byte("key"))
	require.NoError(err)
	require.Equal([]byte("value"), again)
}

func testIteratorValueImmutability(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	require.NoError(db.Put([]byte("key"), []byte("value")))

	it := db.NewIterator()
	require.True(it.Next())
	it.Key()[0] = 'x'
	it.Value()[0] = 'x'
	it.Release()

	retrieved, err := db.Get([]byte("key"))
	require.NoError(err)
	require.Equal([]byte("value"), retrieved)

	it = db.NewIterator()
	defer it.Release()
	require.True(it.Next())
	require.Equal([]byte("key"), it.Key())
	require.Equal([]byte("value"), it.Value())
}

func testBatchPutDelete(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	require.NoError(db.Put([]byte("stale"), []byte("value")))

	b := db.NewBatch()
	require.NoError(b.Put([]byte("a"), []byte("1")))
	require.NoError(b.Put([]byte("b"), []byte("2")))
	require.NoError(b.Delete([]byte("stale")))
	require.Positive(b.Size())

	// Nothing is visible before Write.
	has, err := db.Has([]byte("a"))
	require.NoError(err)
	require.False(has)

	require.NoError(b.Write())

	value, err := db.Get([]byte("a"))
	require.NoError(err)
	require.Equal([]byte("1"), value)
	value, err = db.Get([]byte("b"))
	require.NoError(err)
	require.Equal([]byte("2"), value)
	has, err = db.Has([]byte("stale"))
	require.NoError(err)
	require.False(has)
}

func testBatchReset(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	b := db.NewBatch()
	require.NoError(b.Put([]byte("a"), []byte("1")))
	b.Reset()
	require.Zero(b.Size())
	require.NoError(b.Write())

	has, err := db.Has([]byte("a"))
	require.NoError(err)
	require.False(has)
}

func testBatchReplay(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	b := db.NewBatch()
	require.NoError(b.Put([]byte("a"), []byte("1")))
	require.NoError(b.Delete([]byte("b")))
	require.NoError(b.Put([]byte("c"), []byte("3")))

	var r recorder
	require.NoError(b.Replay(&r))
	require.Equal([]string{"put a=1", "delete b", "put c=3"}, r.ops)
}

func testBatchReuse(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	b := db.NewBatch()
	require.NoError(b.Put([]byte("a"), []byte("1")))
	require.NoError(b.Write())
	b.Reset()

	require.NoError(b.Put([]byte("b"), []byte("2")))
	require.NoError(b.Write())

	for _, key := range []string{"a", "b"} {
		has, err := db.Has([]byte(key))
		require.NoError(err)
		require.True(has, key)
	}
}

func testIterator(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	put(t, db, "b", "a", "c")

	it := db.NewIterator()
	defer it.Release()
	require.Equal([]string{"a", "b", "c"}, keys(t, it))
}

func testIteratorWithStart(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	put(t, db, "a", "b", "c")

	it := db.NewIteratorWithStart([]byte("b"))
	defer it.Release()
	require.Equal([]string{"b", "c"}, keys(t, it))
}

func testIteratorWithPrefix(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	put(t, db, "x/1", "x/2", "y/1", "x")

	it := db.NewIteratorWithPrefix([]byte("x/"))
	defer it.Release()
	require.Equal([]string{"x/1", "x/2"}, keys(t, it))
}

func testIteratorWithStartAndPrefix(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	put(t, db, "x/1", "x/2", "x/3", "y/1")

	it := db.NewIteratorWithStartAndPrefix([]byte("x/2"), []byte("x/"))
	defer it.Release()
	require.Equal([]string{"x/2", "x/3"}, keys(t, it))

	// A start before the prefix is clamped to the prefix.
	it2 := db.NewIteratorWithStartAndPrefix([]byte("a"), []byte("y/"))
	defer it2.Release()
	require.Equal([]string{"y/1"}, keys(t, it2))
}

func testIteratorSnapshot(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	put(t, db, "a", "b")

	it := db.NewIterator()
	defer it.Release()

	require.NoError(db.Put([]byte("c"), []byte("c")))
	require.Equal([]string{"a", "b"}, keys(t, it))
}

func testCompact(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	put(t, db, "a", "b", "c")
	require.NoError(db.Delete([]byte("b")))

	require.NoError(db.Compact(nil, nil))
	require.NoError(db.Compact([]byte("a"), []byte("c")))

	it := db.NewIterator()
	defer it.Release()
	require.Equal([]string{"a", "c"}, keys(t, it))
}

func testHealthCheck(t *testing.T, db database.Database) {
	require := require.New(t)

	_, err := db.HealthCheck(context.Background())
	require.NoError(err)

	require.NoError(db.Close())
	_, err = db.HealthCheck(context.Background())
	require.ErrorIs(err, database.ErrClosed)
}

func testConcurrentAccess(t *testing.T, db database.Database) {
	require := require.New(t)
	defer db.Close()

	const (
		workers = 8
		writes  = 50
	)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				key := []byte(fmt.Sprintf("%d/%03d", w, i))
				if err := db.Put(key, key); err != nil {
					errs <- err
					return
				}
				if _, err := db.Get(key); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(err)
	}

	it := db.NewIterator()
	defer it.Release()
	require.Len(keys(t, it), workers*writes)
}

func testClose(t *testing.T, db database.Database) {
	require := require.New(t)

	require.NoError(db.Put([]byte("key"), []byte("value")))
	require.NoError(db.Close())

	_, err := db.Get([]byte("key"))
	require.ErrorIs(err, database.ErrClosed)
	_, err = db.Has([]byte("key"))
	require.ErrorIs(err, database.ErrClosed)
	require.ErrorIs(db.Put([]byte("key"), nil), database.ErrClosed)
	require.ErrorIs(db.Delete([]byte("key")), database.ErrClosed)
	require.ErrorIs(db.Close(), database.ErrClosed)
}

func put(t testing.TB, db database.KeyValueWriter, keys ...string) {
	for _, key := range keys {
		require.NoError(t, db.Put([]byte(key), []byte(key)))
	}
}

func keys(t testing.TB, it database.Iterator) []string {
	var out []string
	for it.Next() {
		out = append(out, string(it.Key()))
	}
	require.NoError(t, it.Error())
	return out
}

// recorder logs the writes replayed into it.
type recorder struct {
	ops []string
}

func (r *recorder) Put(key, value []byte) error {
	r.ops = append(r.ops, fmt.Sprintf("put %s=%s", key, value))
	return nil
}

func (r *recorder) Delete(key []byte) error {
	r.ops = append(r.ops, fmt.Sprintf("delete %s", key))
	return nil
}
