// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/luxfi/crdt"
	"github.com/luxfi/crdt/database"
	"github.com/luxfi/crdt/database/databasemock"
	"github.com/luxfi/crdt/database/memdb"
	"github.com/luxfi/crdt/gset"
	"github.com/luxfi/crdt/orset"
)

func newStore(t testing.TB, db database.Database, namespace string) *Store {
	s, err := New(db, namespace)
	require.NoError(t, err)
	return s
}

func TestPutGet(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	s := newStore(t, db, "sets")

	require.NoError(s.Put("peers", []byte(`{"e":[]}`)))

	payload, err := s.Get("peers")
	require.NoError(err)
	require.Equal([]byte(`{"e":[]}`), payload)

	raw, err := db.Get([]byte("sets/peers"))
	require.NoError(err)
	require.Equal(payload, raw)

	has, err := s.Has("peers")
	require.NoError(err)
	require.True(has)

	_, err = s.Get("missing")
	require.ErrorIs(err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	require := require.New(t)

	s := newStore(t, memdb.New(), "sets")
	require.NoError(s.Put("peers", []byte("{}")))
	require.NoError(s.Delete("peers"))
	require.NoError(s.Delete("peers"))

	has, err := s.Has("peers")
	require.NoError(err)
	require.False(has)
}

func TestInvalidName(t *testing.T) {
	require := require.New(t)

	s := newStore(t, memdb.New(), "sets")
	require.ErrorIs(s.Put("", nil), ErrInvalidName)
	_, err := s.Get("")
	require.ErrorIs(err, ErrInvalidName)
	_, err = s.Has("")
	require.ErrorIs(err, ErrInvalidName)
	require.ErrorIs(s.Delete(""), ErrInvalidName)
}

func TestNamespaces(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	a := newStore(t, db, "a")
	other := newStore(t, db, "ab")

	require.NoError(a.Put("y", nil))
	require.NoError(a.Put("x", nil))
	require.NoError(a.Put("b/z", nil))
	require.NoError(other.Put("w", nil))

	names, err := a.Names()
	require.NoError(err)
	require.Equal([]string{"b/z", "x", "y"}, names)

	names, err = other.Names()
	require.NoError(err)
	require.Equal([]string{"w"}, names)

	require.NoError(a.Clear())
	names, err = a.Names()
	require.NoError(err)
	require.Empty(names)

	names, err = other.Names()
	require.NoError(err)
	require.Equal([]string{"w"}, names)
}

func TestInvalidNamespace(t *testing.T) {
	db := memdb.New()
	for _, namespace := range []string{"", "/", "sets/", "sets/peers", "/sets"} {
		t.Run(namespace, func(t *testing.T) {
			require := require.New(t)

			s, err := New(db, namespace)
			require.ErrorIs(err, ErrInvalidNamespace)
			require.Nil(s)
		})
	}
}

func TestNestedNamesStayInNamespace(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	outer := newStore(t, db, "sets")
	neighbour := newStore(t, db, "setsx")
	require.NoError(outer.Put("peers/x", []byte("1")))
	require.NoError(neighbour.Put("y", []byte("2")))

	require.NoError(outer.Clear())

	has, err := neighbour.Has("y")
	require.NoError(err)
	require.True(has)
}

func TestSaveLoad(t *testing.T) {
	require := require.New(t)

	s := newStore(t, memdb.New(), "sets")

	g := gset.Of("a", "b")
	require.NoError(s.Save("grow", g))

	loaded, err := Load(s, "grow", gset.Parse[string])
	require.NoError(err)
	require.True(loaded.Equal(g))

	o := orset.New[string]()
	_, err = o.Add("x")
	require.NoError(err)
	require.NoError(s.Save("observed", o))

	loadedOR, err := Load(s, "observed", orset.Parse[string])
	require.NoError(err)
	require.Equal(o.Tags("x"), loadedOR.Tags("x"))

	_, err = Load(s, "missing", gset.Parse[string])
	require.ErrorIs(err, ErrNotFound)

	require.NoError(s.Put("corrupt", []byte("{")))
	_, err = Load(s, "corrupt", gset.Parse[string])
	require.ErrorIs(err, crdt.ErrInvalidPayload)
	require.ErrorContains(err, `failed to decode "corrupt"`)
}

type failingPayload struct{}

func (failingPayload) Payload() ([]byte, error) {
	return nil, errors.New("boom")
}

func TestSaveEncodeError(t *testing.T) {
	s := newStore(t, memdb.New(), "sets")
	err := s.Save("broken", failingPayload{})
	require.ErrorContains(t, err, `failed to encode "broken": boom`)
}

func TestDatabaseErrors(t *testing.T) {
	require := require.New(t)

	ctrl := gomock.NewController(t)
	db := databasemock.NewDatabase(ctrl)
	s := newStore(t, db, "sets")

	db.EXPECT().Put([]byte("sets/a"), []byte("x")).Return(database.ErrClosed)
	require.ErrorIs(s.Put("a", []byte("x")), database.ErrClosed)

	db.EXPECT().Get([]byte("sets/a")).Return(nil, database.ErrClosed)
	_, err := s.Get("a")
	require.ErrorIs(err, database.ErrClosed)
	require.NotErrorIs(err, ErrNotFound)

	db.EXPECT().Get([]byte("sets/b")).Return(nil, database.ErrNotFound)
	_, err = s.Get("b")
	require.ErrorIs(err, ErrNotFound)

	db.EXPECT().NewIteratorWithPrefix([]byte("sets/")).Return(&database.IteratorError{Err: database.ErrClosed})
	_, err = s.Names()
	require.ErrorIs(err, database.ErrClosed)

	db.EXPECT().NewIteratorWithPrefix([]byte("sets/")).Return(&database.IteratorError{Err: database.ErrClosed})
	db.EXPECT().NewBatch().Return(memdb.New().NewBatch())
	require.ErrorIs(s.Clear(), database.ErrClosed)
}
