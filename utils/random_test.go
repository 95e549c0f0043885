// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"bytes"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomBytes(t *testing.T) {
	require := require.New(t)

	require.Len(RandomBytes(KiB), KiB)
	require.Empty(RandomBytes(0))
}

func TestNumberedKeys(t *testing.T) {
	require := require.New(t)

	keys := NumberedKeys("k", 12)
	require.Len(keys, 12)
	require.Equal([]byte("k/000000"), keys[0])
	require.Equal([]byte("k/000011"), keys[11])
	require.True(slices.IsSortedFunc(keys, bytes.Compare))
}
