// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"crypto/rand"
	"fmt"
)

// RandomBytes returns [n] random bytes.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

// NumberedKeys returns [count] distinct keys of the form prefix/%06d, in
// ascending byte order.
func NumberedKeys(prefix string, count int) [][]byte {
	keys := make([][]byte, count)
	for i := range keys {
		keys[i] = fmt.Appendf(nil, "%s/%06d", prefix, i)
	}
	return keys
}
