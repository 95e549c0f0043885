// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package replica

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/luxfi/crdt"
	"github.com/luxfi/crdt/database"
	"github.com/luxfi/crdt/database/databasemock"
	"github.com/luxfi/crdt/database/memdb"
	"github.com/luxfi/crdt/gset"
	"github.com/luxfi/crdt/logging"
	"github.com/luxfi/crdt/orset"
	"github.com/luxfi/crdt/store"
	"github.com/luxfi/crdt/tag"
	"github.com/luxfi/crdt/twophase"
	"github.com/luxfi/crdt/utils/set"
)

func newORSetReplica(t *testing.T, name string, s *store.Store, reg prometheus.Registerer) *Replica[*orset.Set[string]] {
	r, err := New(Config[*orset.Set[string]]{
		Name:       name,
		Empty:      orset.New[string],
		Decode:     orset.Parse[string],
		Store:      s,
		Logger:     logging.NewZapAdapter(zaptest.NewLogger(t)),
		Registerer: reg,
	})
	require.NoError(t, err)
	return r
}

func newStore(t *testing.T, db database.Database) *store.Store {
	s, err := store.New(db, "replicas")
	require.NoError(t, err)
	return s
}

func valueOf(r *Replica[*orset.Set[string]]) set.Set[string] {
	var v set.Set[string]
	r.View(func(state *orset.Set[string]) {
		v = state.Value()
	})
	return v
}

func TestUpdatePersists(t *testing.T) {
	require := require.New(t)

	s := newStore(t, memdb.New())
	r := newORSetReplica(t, "peers", s, nil)
	require.Equal("peers", r.Name())

	require.NoError(r.Update(func(s *orset.Set[string]) error {
		_, err := s.AddAll("n1", "n2")
		return err
	}))

	stored, err := store.Load(s, "peers", orset.Parse[string])
	require.NoError(err)
	require.Equal(set.Of("n1", "n2"), stored.Value())

	// A new replica over the same store resumes from the snapshot.
	reopened := newORSetReplica(t, "peers", s, nil)
	require.Equal(set.Of("n1", "n2"), valueOf(reopened))
}

func TestUpdateError(t *testing.T) {
	require := require.New(t)

	s := newStore(t, memdb.New())
	r, err := New(Config[*twophase.Set[string]]{
		Name:   "members",
		Empty:  twophase.New[string],
		Decode: twophase.Parse[string],
		Store:  s,
	})
	require.NoError(err)

	require.NoError(r.Update(func(s *twophase.Set[string]) error {
		_, err := s.Add("a")
		if err != nil {
			return err
		}
		_, err = s.Remove("a")
		return err
	}))
	before, err := s.Get("members")
	require.NoError(err)

	err = r.Update(func(s *twophase.Set[string]) error {
		_, err := s.Add("a")
		return err
	})
	require.ErrorIs(err, crdt.ErrIllegalState)

	after, err := s.Get("members")
	require.NoError(err)
	require.Equal(before, after)
}

func TestMergeAddWins(t *testing.T) {
	require := require.New(t)

	a := newORSetReplica(t, "a", nil, nil)
	b := orset.NewWithGenerator[string](tag.NewSequence(2))
	_, err := b.Add("x")
	require.NoError(err)

	require.NoError(a.Update(func(s *orset.Set[string]) error {
		if _, err := s.Add("x"); err != nil {
			return err
		}
		_, err := s.Remove("x")
		return err
	}))
	require.Empty(valueOf(a))

	require.NoError(a.Merge(b))
	require.Equal(set.Of("x"), valueOf(a))
}

func TestMergePayloads(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	s := newStore(t, memdb.New())
	r := newORSetReplica(t, "peers", s, reg)

	var payloads [][]byte
	for _, v := range []string{"a", "b", "c"} {
		remote := orset.New[string]()
		_, err := remote.Add(v)
		require.NoError(err)
		payload, err := remote.Payload()
		require.NoError(err)
		payloads = append(payloads, payload)
	}

	require.NoError(r.MergePayloads(context.Background(), payloads...))
	require.Equal(set.Of("a", "b", "c"), valueOf(r))

	stored, err := store.Load(s, "peers", orset.Parse[string])
	require.NoError(err)
	require.Equal(set.Of("a", "b", "c"), stored.Value())

	payload, err := r.Payload()
	require.NoError(err)
	require.InDelta(3, testutil.ToFloat64(r.metrics.merges), 0)
	require.InDelta(len(payload), testutil.ToFloat64(r.metrics.payloadBytes), 0)
	require.Zero(testutil.ToFloat64(r.metrics.mergeFailures))
}

func TestMergePayloadsAllOrNothing(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	r := newORSetReplica(t, "peers", nil, reg)

	valid, err := orset.New[string]().Payload()
	require.NoError(err)

	err = r.MergePayloads(context.Background(), valid, []byte(`{"e":{}}`))
	require.ErrorIs(err, crdt.ErrInvalidPayload)
	require.ErrorContains(err, "payload 1")
	require.Empty(valueOf(r))
	require.InDelta(1, testutil.ToFloat64(r.metrics.mergeFailures), 0)
	require.Zero(testutil.ToFloat64(r.metrics.merges))

	count, err := testutil.GatherAndCount(reg, "crdt_replica_merge_failures_total")
	require.NoError(err)
	require.Equal(1, count)
}

func TestMergePayloadsCanceled(t *testing.T) {
	require := require.New(t)

	r := newORSetReplica(t, "peers", nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload, err := orset.New[string]().Payload()
	require.NoError(err)
	require.ErrorIs(r.MergePayloads(ctx, payload), context.Canceled)
}

func TestCorruptSnapshot(t *testing.T) {
	require := require.New(t)

	s := newStore(t, memdb.New())
	require.NoError(s.Put("peers", []byte(`{"e":[1]}`)))

	_, err := New(Config[*gset.Set[string]]{
		Name:   "peers",
		Empty:  gset.New[string],
		Decode: gset.Parse[string],
		Store:  s,
	})
	require.ErrorIs(err, crdt.ErrInvalidPayload)
	require.ErrorContains(err, `couldn't load replica "peers"`)
}

func TestPersistErrorKeepsState(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	ctrl := gomock.NewController(t)
	db := databasemock.NewDatabase(ctrl)
	db.EXPECT().Get([]byte("replicas/peers")).Return(nil, database.ErrNotFound)
	r := newORSetReplica(t, "peers", newStore(t, db), reg)

	db.EXPECT().Put([]byte("replicas/peers"), gomock.Any()).Return(nil)
	require.NoError(r.Update(func(s *orset.Set[string]) error {
		_, err := s.Add("a")
		return err
	}))
	before, err := r.Payload()
	require.NoError(err)

	db.EXPECT().Put([]byte("replicas/peers"), gomock.Any()).Return(database.ErrClosed).Times(3)

	err = r.Update(func(s *orset.Set[string]) error {
		_, err := s.Add("x")
		return err
	})
	require.ErrorIs(err, database.ErrClosed)

	remote := orset.New[string]()
	_, err = remote.Add("y")
	require.NoError(err)
	require.ErrorIs(r.Merge(remote), database.ErrClosed)

	payload, err := remote.Payload()
	require.NoError(err)
	require.ErrorIs(r.MergePayloads(context.Background(), payload), database.ErrClosed)

	after, err := r.Payload()
	require.NoError(err)
	require.JSONEq(string(before), string(after))
	require.Equal(set.Of("a"), valueOf(r))
	require.InDelta(1, testutil.ToFloat64(r.metrics.updates), 0)
	require.Zero(testutil.ToFloat64(r.metrics.merges))
	require.InDelta(len(before), testutil.ToFloat64(r.metrics.payloadBytes), 0)
}

func TestUpdateErrorKeepsState(t *testing.T) {
	require := require.New(t)

	s := newStore(t, memdb.New())
	r := newORSetReplica(t, "peers", s, nil)

	errAbort := errors.New("abort")
	err := r.Update(func(s *orset.Set[string]) error {
		if _, err := s.Add("y"); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(err, errAbort)
	require.Empty(valueOf(r))

	// A later successful update must not carry the aborted add along.
	require.NoError(r.Update(func(s *orset.Set[string]) error {
		_, err := s.Add("z")
		return err
	}))
	require.Equal(set.Of("z"), valueOf(r))

	stored, err := store.Load(s, "peers", orset.Parse[string])
	require.NoError(err)
	require.Equal(set.Of("z"), stored.Value())
}

func TestUpdateKeepsGenerator(t *testing.T) {
	require := require.New(t)

	r, err := New(Config[*orset.Set[string]]{
		Name: "peers",
		Empty: func() *orset.Set[string] {
			return orset.NewWithGenerator[string](tag.NewSequence(4))
		},
		Decode: orset.Parse[string],
	})
	require.NoError(err)

	for _, v := range []string{"a", "b"} {
		require.NoError(r.Update(func(s *orset.Set[string]) error {
			_, err := s.Add(v)
			return err
		}))
	}
	r.View(func(s *orset.Set[string]) {
		require.Equal(set.Of(uuid.MustParse("00000004-0000-0000-0000-000000000001")), s.Tags("a"))
		require.Equal(set.Of(uuid.MustParse("00000004-0000-0000-0000-000000000002")), s.Tags("b"))
	})
}

func TestConfigErrors(t *testing.T) {
	require := require.New(t)

	_, err := New(Config[*gset.Set[string]]{
		Name:  "peers",
		Empty: gset.New[string],
	})
	require.ErrorIs(err, errMissingConstructor)

	_, err = New(Config[*gset.Set[string]]{
		Empty:  gset.New[string],
		Decode: gset.Parse[string],
	})
	require.ErrorIs(err, store.ErrInvalidName)

	reg := prometheus.NewRegistry()
	newORSetReplica(t, "peers", nil, reg)
	_, err = New(Config[*orset.Set[string]]{
		Name:       "peers",
		Empty:      orset.New[string],
		Decode:     orset.Parse[string],
		Registerer: reg,
	})
	require.ErrorContains(err, `couldn't register metrics of replica "peers"`)
}

func TestConcurrentUpdates(t *testing.T) {
	require := require.New(t)

	r := newORSetReplica(t, "peers", newStore(t, memdb.New()), nil)

	const workers = 8
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		go func() {
			errs <- r.Update(func(s *orset.Set[string]) error {
				_, err := s.Add(string(rune('a' + w)))
				return err
			})
		}()
	}
	for w := 0; w < workers; w++ {
		require.NoError(<-errs)
	}
	require.Len(valueOf(r), workers)
	require.InDelta(workers, testutil.ToFloat64(r.metrics.updates), 0)
}
