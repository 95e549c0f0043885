// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/crdt"
	"github.com/luxfi/crdt/settest"
)

func TestSuite(t *testing.T) {
	settest.TestSuite(t, settest.Factory[*Set[string]]{
		New:   New[string],
		Parse: Parse[string],
	})
}

func TestAdd(t *testing.T) {
	require := require.New(t)

	s := New[string]()
	added, err := s.Add("a")
	require.NoError(err)
	require.True(added)

	added, err = s.Add("a")
	require.NoError(err)
	require.False(added)

	changed, err := s.AddAll("a", "b")
	require.NoError(err)
	require.True(changed)

	changed, err = s.AddAll("b")
	require.NoError(err)
	require.False(changed)

	require.Equal(2, s.Len())
	require.True(s.ContainsAll("a", "b"))
}

func TestRemovalsUnsupported(t *testing.T) {
	require := require.New(t)

	s := Of("a", "b")

	_, err := s.Remove("a")
	require.ErrorIs(err, crdt.ErrUnsupportedOperation)
	_, err = s.RemoveAll("a", "b")
	require.ErrorIs(err, crdt.ErrUnsupportedOperation)
	_, err = s.RetainAll("a")
	require.ErrorIs(err, crdt.ErrUnsupportedOperation)
	require.ErrorIs(s.Clear(), crdt.ErrUnsupportedOperation)

	require.Equal(2, s.Len())
}

func TestMergeIsUnion(t *testing.T) {
	require := require.New(t)

	a := Of("x", "y")
	b := Of("y", "z")

	merged := a.Merge(b)
	require.True(merged.Equal(Of("x", "y", "z")))
	require.Equal(3, merged.Len())
}

func TestMergeMonotonic(t *testing.T) {
	require := require.New(t)

	a := Of(1, 2, 3)
	b := Of(4)

	merged := a.Merge(b)
	require.True(merged.Value().ContainsAll(a.List()...))
	require.True(merged.Value().ContainsAll(b.List()...))
}

func TestPayload(t *testing.T) {
	require := require.New(t)

	s := Of("b", "a")
	payload, err := s.Payload()
	require.NoError(err)
	require.JSONEq(`{"e":["a","b"]}`, string(payload))

	empty, err := New[string]().Payload()
	require.NoError(err)
	require.JSONEq(`{"e":[]}`, string(empty))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []int
		wantErr error
	}{
		{
			name:    "valid",
			payload: `{"e":[3,1,2]}`,
			want:    []int{1, 2, 3},
		},
		{
			name:    "empty",
			payload: `{"e":[]}`,
			want:    []int{},
		},
		{
			name:    "duplicates collapse",
			payload: `{"e":[1,1]}`,
			want:    []int{1},
		},
		{
			name:    "extra fields ignored",
			payload: `{"e":[1],"x":true}`,
			want:    []int{1},
		},
		{
			name:    "missing elements",
			payload: `{"x":[1]}`,
			wantErr: crdt.ErrInvalidPayload,
		},
		{
			name:    "null elements",
			payload: `{"e":null}`,
			wantErr: crdt.ErrInvalidPayload,
		},
		{
			name:    "wrong element type",
			payload: `{"e":["a"]}`,
			wantErr: crdt.ErrInvalidPayload,
		},
		{
			name:    "not an object",
			payload: `[1,2]`,
			wantErr: crdt.ErrInvalidPayload,
		},
		{
			name:    "truncated",
			payload: `{"e":[1`,
			wantErr: crdt.ErrInvalidPayload,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			s, err := Parse[int]([]byte(test.payload))
			require.ErrorIs(err, test.wantErr)
			if test.wantErr != nil {
				require.Nil(s)
				return
			}
			require.ElementsMatch(test.want, s.List())
		})
	}
}

func TestJSONEmbedding(t *testing.T) {
	require := require.New(t)

	type envelope struct {
		Name string       `json:"name"`
		Set  *Set[string] `json:"set"`
	}

	b, err := json.Marshal(envelope{Name: "peers", Set: Of("n1", "n2")})
	require.NoError(err)
	require.JSONEq(`{"name":"peers","set":{"e":["n1","n2"]}}`, string(b))

	var decoded envelope
	require.NoError(json.Unmarshal(b, &decoded))
	require.Equal("peers", decoded.Name)
	require.True(decoded.Set.Equal(Of("n1", "n2")))

	require.ErrorIs(json.Unmarshal([]byte(`{"set":{}}`), &decoded), crdt.ErrInvalidPayload)
}

func BenchmarkMerge(b *testing.B) {
	left := New[int]()
	right := New[int]()
	for i := 0; i < 1024; i++ {
		_, _ = left.Add(i)
		_, _ = right.Add(i + 512)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = left.Merge(right)
	}
}

func TestZeroValue(t *testing.T) {
	require := require.New(t)

	var s Set[string]
	require.True(s.IsEmpty())

	payload, err := s.Payload()
	require.NoError(err)
	require.JSONEq(`{"e":[]}`, string(payload))

	added, err := s.Add("a")
	require.NoError(err)
	require.True(added)

	var other Set[string]
	changed, err := other.AddAll("b", "c")
	require.NoError(err)
	require.True(changed)

	require.True(s.Merge(&other).Equal(Of("a", "b", "c")))
}
