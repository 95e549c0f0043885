// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package factory

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/luxfi/crdt/database/badgerdb"
	"github.com/luxfi/crdt/database/leveldb"
	"github.com/luxfi/crdt/database/memdb"
	"github.com/luxfi/crdt/database/meterdb"
	"github.com/luxfi/crdt/database/pebbledb"
	"github.com/luxfi/crdt/logging"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config DatabaseConfig
		want   any
	}{
		{
			name:   "memdb",
			config: DatabaseConfig{Type: memdb.Name},
			want:   &memdb.Database{},
		},
		{
			name:   "leveldb",
			config: DatabaseConfig{Type: leveldb.Name, Name: "replicas"},
			want:   &leveldb.Database{},
		},
		{
			name:   "pebbledb",
			config: DatabaseConfig{Type: pebbledb.Name, Name: "replicas"},
			want:   &pebbledb.Database{},
		},
		{
			name:   "badgerdb",
			config: DatabaseConfig{Type: badgerdb.Name, Name: "replicas"},
			want:   &badgerdb.Database{},
		},
		{
			name: "badgerdb in memory",
			config: DatabaseConfig{
				Type:   badgerdb.Name,
				Config: []byte(`{"inMemory":true}`),
			},
			want: &badgerdb.Database{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			config := test.config
			if config.Type != memdb.Name && config.Name != "" {
				config.Dir = t.TempDir()
			}
			config.Logger = logging.NewZapAdapter(zaptest.NewLogger(t))

			db, err := New(config)
			require.NoError(err)
			require.IsType(test.want, db)

			require.NoError(db.Put([]byte("k"), []byte("v")))
			value, err := db.Get([]byte("k"))
			require.NoError(err)
			require.Equal([]byte("v"), value)
			require.NoError(db.Close())
		})
	}
}

func TestNewMetered(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	db, err := New(DatabaseConfig{
		Type:             memdb.Name,
		MetricsReg:       reg,
		MetricsNamespace: "snapshots",
	})
	require.NoError(err)
	require.IsType(&meterdb.Database{}, db)

	require.NoError(db.Put([]byte("k"), []byte("v")))
	count, err := testutil.GatherAndCount(reg, "snapshots_calls")
	require.NoError(err)
	require.Equal(1, count)

	// A second database cannot claim the same metric names.
	_, err = New(DatabaseConfig{
		Type:             memdb.Name,
		MetricsReg:       reg,
		MetricsNamespace: "snapshots",
	})
	require.ErrorContains(err, "couldn't register memdb metrics")
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  DatabaseConfig
		wantErr error
		wantMsg string
	}{
		{
			name:    "unknown type",
			config:  DatabaseConfig{Type: "rocksdb"},
			wantErr: ErrUnknownType,
		},
		{
			name:    "missing dir",
			config:  DatabaseConfig{Type: leveldb.Name},
			wantErr: errDirRequired,
		},
		{
			name: "bad backend config",
			config: DatabaseConfig{
				Type:   pebbledb.Name,
				Dir:    "unused",
				Config: []byte(`{`),
			},
			wantMsg: "failed to parse db config",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			db, err := New(test.config)
			require.Nil(t, db)
			if test.wantErr != nil {
				require.ErrorIs(t, err, test.wantErr)
			} else {
				require.ErrorContains(t, err, test.wantMsg)
			}
		})
	}
}
