// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package pebbledb

import (
	"errors"

	"github.com/cockroachdb/pebble"

	"github.com/luxfi/crdt/database"
)

// updateError converts a pebble-specific error to its database equivalent,
// if applicable.
func updateError(err error) error {
	switch {
	case errors.Is(err, pebble.ErrClosed):
		return database.ErrClosed
	case errors.Is(err, pebble.ErrNotFound):
		return database.ErrNotFound
	default:
		return err
	}
}
