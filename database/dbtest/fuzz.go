// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dbtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/crdt/database"
	"github.com/luxfi/crdt/utils"
)

// FuzzKeyValue checks that any value written under a non-empty key reads back
// unchanged and disappears after a delete.
func FuzzKeyValue(f *testing.F, db database.Database) {
	f.Add([]byte("key"), []byte("value"))
	f.Add([]byte{0x00}, []byte{})
	f.Fuzz(func(t *testing.T, key []byte, value []byte) {
		if len(key) == 0 {
			t.Skip("empty keys are not supported by every backend")
		}
		require := require.New(t)

		require.NoError(db.Put(key, value))

		got, err := db.Get(key)
		require.NoError(err)
		require.Equal(len(value), len(got))
		if len(value) > 0 {
			require.Equal(value, got)
		}

		require.NoError(db.Delete(key))
		has, err := db.Has(key)
		require.NoError(err)
		require.False(has)
	})
}

// BenchmarkPutGet measures a put followed by a get of a random [valueSize]
// byte value.
func BenchmarkPutGet(b *testing.B, db database.Database, valueSize int) {
	value := utils.RandomBytes(valueSize)
	keys := utils.NumberedKeys("bench", 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keys[i%len(keys)]
		if err := db.Put(key, value); err != nil {
			b.Fatal(err)
		}
		if _, err := db.Get(key); err != nil {
			b.Fatal(err)
		}
	}
}
