// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package factory

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/crdt/logging"
)

// DatabaseConfig contains all the parameters necessary to create a database
type DatabaseConfig struct {
	// Type selects the backend: "memdb", "leveldb", "pebbledb" or "badgerdb".
	Type string
	// Dir is the directory of on-disk backends. The database is stored in
	// Dir/Name when Name is set.
	Dir  string
	Name string
	// Config is the JSON encoded backend configuration.
	Config []byte
	// MetricsReg, if set, receives the metrics of a meterdb wrapping the
	// backend. MetricsNamespace defaults to "db".
	MetricsReg       prometheus.Registerer
	MetricsNamespace string
	Logger           logging.Logger
}
