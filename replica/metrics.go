// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package replica

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crdt_replica"

type metrics struct {
	updates       prometheus.Counter
	merges        prometheus.Counter
	mergeFailures prometheus.Counter
	payloadBytes  prometheus.Gauge
}

func newMetrics(name string, reg prometheus.Registerer) (*metrics, error) {
	labels := prometheus.Labels{"replica": name}
	m := &metrics{
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "updates_total",
			Help:        "number of local updates applied",
			ConstLabels: labels,
		}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "merges_total",
			Help:        "number of remote states merged",
			ConstLabels: labels,
		}),
		mergeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "merge_failures_total",
			Help:        "number of merge requests rejected because a payload could not be decoded",
			ConstLabels: labels,
		}),
		payloadBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "payload_bytes",
			Help:        "size of the latest encoded snapshot",
			ConstLabels: labels,
		}),
	}
	if reg == nil {
		return m, nil
	}
	err := errors.Join(
		reg.Register(m.updates),
		reg.Register(m.merges),
		reg.Register(m.mergeFailures),
		reg.Register(m.payloadBytes),
	)
	return m, err
}
