// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package database

import "errors"

// Common database errors.
var (
	ErrClosed   = errors.New("closed")
	ErrNotFound = errors.New("not found")
)
