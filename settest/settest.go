// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package settest checks the convergence laws every replicated set must obey.
package settest

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/crdt"
)

const (
	rounds     = 50
	opsPerStep = 12
)

// Values drive the random mutations. A small domain makes adds, removes and
// merges of the same value collide often.
var Values = []string{"a", "b", "c", "d", "e", "f"}

// Factory builds and decodes the set type under test.
type Factory[T crdt.Replicated[string, T]] struct {
	New   func() T
	Parse func([]byte) (T, error)
}

// TestSuite runs every law against the set type built by [f].
func TestSuite[T crdt.Replicated[string, T]](t *testing.T, f Factory[T]) {
	t.Run("Commutativity", func(t *testing.T) {
		testCommutativity(t, f)
	})
	t.Run("Associativity", func(t *testing.T) {
		testAssociativity(t, f)
	})
	t.Run("Idempotence", func(t *testing.T) {
		testIdempotence(t, f)
	})
	t.Run("RoundTrip", func(t *testing.T) {
		testRoundTrip(t, f)
	})
	t.Run("MergeKeepsOperands", func(t *testing.T) {
		testMergeKeepsOperands(t, f)
	})
	t.Run("MergeSharesNoState", func(t *testing.T) {
		testMergeSharesNoState(t, f)
	})
	t.Run("MergeWithEmpty", func(t *testing.T) {
		testMergeWithEmpty(t, f)
	})
	t.Run("ValueIsSnapshot", func(t *testing.T) {
		testValueIsSnapshot(t, f)
	})
	t.Run("RetainAllUnsupported", func(t *testing.T) {
		testRetainAllUnsupported(t, f)
	})
	t.Run("CollectionViews", func(t *testing.T) {
		testCollectionViews(t, f)
	})
}

// Mutate applies [n] random local operations to [s]. Operations the set type
// rejects by policy are skipped.
func Mutate[T crdt.Replicated[string, T]](t testing.TB, rng *rand.Rand, s T, n int) {
	for i := 0; i < n; i++ {
		v := Values[rng.Intn(len(Values))]
		var err error
		switch op := rng.Intn(10); {
		case op < 6:
			_, err = s.Add(v)
		case op < 9:
			_, err = s.Remove(v)
		default:
			err = s.Clear()
		}
		if err != nil && !errors.Is(err, crdt.ErrIllegalState) && !errors.Is(err, crdt.ErrUnsupportedOperation) {
			require.NoError(t, err)
		}
	}
}

// replicas returns [n] replicas that share part of their history, so their
// states overlap the way diverged replicas in a real system do.
func replicas[T crdt.Replicated[string, T]](t testing.TB, rng *rand.Rand, f Factory[T], n int) []T {
	base := f.New()
	Mutate(t, rng, base, opsPerStep)

	out := make([]T, n)
	for i := range out {
		r := f.New().Merge(base)
		if rng.Intn(4) == 0 {
			r = f.New()
		}
		Mutate(t, rng, r, opsPerStep)
		out[i] = r
	}
	return out
}

func testCommutativity[T crdt.Replicated[string, T]](t *testing.T, f Factory[T]) {
	rng := rand.New(rand.NewSource(1)) // #nosec G404
	for i := 0; i < rounds; i++ {
		rs := replicas(t, rng, f, 2)
		a, b := rs[0], rs[1]
		require.Truef(t, crdt.Equal[string](a.Merge(b), b.Merge(a)), "round %d: %v vs %v", i, a.Merge(b).Value(), b.Merge(a).Value())
	}
}

func testAssociativity[T crdt.Replicated[string, T]](t *testing.T, f Factory[T]) {
	rng := rand.New(rand.NewSource(2)) // #nosec G404
	for i := 0; i < rounds; i++ {
		rs := replicas(t, rng, f, 3)
		a, b, c := rs[0], rs[1], rs[2]
		left := a.Merge(b).Merge(c)
		right := a.Merge(b.Merge(c))
		require.Truef(t, crdt.Equal[string](left, right), "round %d: %v vs %v", i, left.Value(), right.Value())
	}
}

func testIdempotence[T crdt.Replicated[string, T]](t *testing.T, f Factory[T]) {
	rng := rand.New(rand.NewSource(3)) // #nosec G404
	for i := 0; i < rounds; i++ {
		a := replicas(t, rng, f, 1)[0]
		require.Truef(t, crdt.Equal[string](a.Merge(a), a), "round %d", i)

		payload, err := a.Payload()
		require.NoError(t, err)
		copied, err := f.Parse(payload)
		require.NoError(t, err)
		require.Truef(t, crdt.Equal[string](a.Merge(copied), a), "round %d", i)
	}
}

func testRoundTrip[T crdt.Replicated[string, T]](t *testing.T, f Factory[T]) {
	require := require.New(t)

	rng := rand.New(rand.NewSource(4)) // #nosec G404
	for i := 0; i < rounds; i++ {
		a := replicas(t, rng, f, 1)[0]
		payload, err := a.Payload()
		require.NoError(err)

		decoded, err := f.Parse(payload)
		require.NoError(err)
		require.True(crdt.Equal[string](a, decoded))
		require.Equal(a.Len(), decoded.Len())

		again, err := decoded.Payload()
		require.NoError(err)
		require.JSONEq(string(payload), string(again))
	}

	for _, bad := range []string{``, `[]`, `{`, `"e"`, `{}`} {
		_, err := f.Parse([]byte(bad))
		require.ErrorIs(err, crdt.ErrInvalidPayload, "payload %q", bad)
	}
}

func testMergeKeepsOperands[T crdt.Replicated[string, T]](t *testing.T, f Factory[T]) {
	require := require.New(t)

	rng := rand.New(rand.NewSource(5)) // #nosec G404
	for i := 0; i < rounds; i++ {
		rs := replicas(t, rng, f, 2)
		a, b := rs[0], rs[1]
		beforeA, err := a.Payload()
		require.NoError(err)
		beforeB, err := b.Payload()
		require.NoError(err)

		_ = a.Merge(b)

		afterA, err := a.Payload()
		require.NoError(err)
		afterB, err := b.Payload()
		require.NoError(err)
		require.JSONEq(string(beforeA), string(afterA))
		require.JSONEq(string(beforeB), string(afterB))
	}
}

func testMergeSharesNoState[T crdt.Replicated[string, T]](t *testing.T, f Factory[T]) {
	require := require.New(t)

	a := f.New()
	b := f.New()
	_, err := a.Add("a")
	require.NoError(err)
	_, err = b.Add("b")
	require.NoError(err)
	beforeA, err := a.Payload()
	require.NoError(err)
	beforeB, err := b.Payload()
	require.NoError(err)

	merged := a.Merge(b)
	rng := rand.New(rand.NewSource(6)) // #nosec G404
	Mutate(t, rng, merged, 4*opsPerStep)
	_, err = merged.Add("fresh")
	require.NoError(err)

	afterA, err := a.Payload()
	require.NoError(err)
	afterB, err := b.Payload()
	require.NoError(err)
	require.JSONEq(string(beforeA), string(afterA))
	require.JSONEq(string(beforeB), string(afterB))
	require.False(a.Contains("fresh"))
	require.False(b.Contains("fresh"))
}

func testMergeWithEmpty[T crdt.Replicated[string, T]](t *testing.T, f Factory[T]) {
	rng := rand.New(rand.NewSource(7)) // #nosec G404
	for i := 0; i < rounds; i++ {
		a := replicas(t, rng, f, 1)[0]
		require.True(t, crdt.Equal[string](a.Merge(f.New()), a))
		require.True(t, crdt.Equal[string](f.New().Merge(a), a))
	}
}

func testValueIsSnapshot[T crdt.Replicated[string, T]](t *testing.T, f Factory[T]) {
	require := require.New(t)

	s := f.New()
	_, err := s.Add("a")
	require.NoError(err)

	value := s.Value()
	value.Add("intruder")
	value.Remove("a")

	require.True(s.Contains("a"))
	require.False(s.Contains("intruder"))
}

func testRetainAllUnsupported[T crdt.Replicated[string, T]](t *testing.T, f Factory[T]) {
	require := require.New(t)

	s := f.New()
	_, err := s.Add("a")
	require.NoError(err)

	_, err = s.RetainAll("b")
	require.ErrorIs(err, crdt.ErrUnsupportedOperation)
	require.True(s.Contains("a"))
}

func testCollectionViews[T crdt.Replicated[string, T]](t *testing.T, f Factory[T]) {
	require := require.New(t)

	s := f.New()
	require.True(s.IsEmpty())
	require.Zero(s.Len())

	changed, err := s.AddAll("a", "b", "a")
	require.NoError(err)
	require.True(changed)
	require.False(s.IsEmpty())
	require.Equal(2, s.Len())
	require.True(s.ContainsAll("a", "b"))
	require.False(s.ContainsAll("a", "z"))
	require.ElementsMatch([]string{"a", "b"}, s.List())

	var iterated []string
	for v := range s.All() {
		iterated = append(iterated, v)
	}
	require.ElementsMatch([]string{"a", "b"}, iterated)
}
