// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utils

// Byte sizes for database tuning.
const (
	KiB = 1 << 10
	MiB = 1 << 20
	GiB = 1 << 30
)
