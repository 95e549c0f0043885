// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package replica owns one replicated set on behalf of a node. It serializes
// local updates and merges of remote states, and persists the resulting
// snapshot after each change.
package replica

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/crdt"
	"github.com/luxfi/crdt/logging"
	"github.com/luxfi/crdt/store"
)

var errMissingConstructor = errors.New("replica needs both Empty and Decode")

// State is a replicated value that can be merged and snapshotted. Merge must
// return a new value and leave both operands untouched.
type State[T any] interface {
	crdt.Payloader
	Merge(other T) T
}

// Config configures a [Replica].
type Config[T State[T]] struct {
	// Name identifies the replica in the store, logs and metrics.
	Name string
	// Empty returns the initial state used when nothing is stored.
	Empty func() T
	// Decode parses a snapshot produced by Payload.
	Decode func([]byte) (T, error)

	// Store, if set, persists the snapshot after every change and provides
	// the initial state.
	Store *store.Store
	// Logger defaults to [logging.NoLogger].
	Logger logging.Logger
	// Registerer, if set, receives the replica metrics.
	Registerer prometheus.Registerer
}

// Replica serializes access to a replicated state. It is safe for concurrent
// use.
type Replica[T State[T]] struct {
	name    string
	empty   func() T
	decode  func([]byte) (T, error)
	store   *store.Store
	log     logging.Logger
	metrics *metrics

	lock  sync.Mutex
	state T
}

// New returns a replica holding the stored snapshot of [config.Name], or an
// empty state if nothing is stored.
func New[T State[T]](config Config[T]) (*Replica[T], error) {
	if config.Empty == nil || config.Decode == nil {
		return nil, errMissingConstructor
	}
	if config.Name == "" {
		return nil, store.ErrInvalidName
	}
	if config.Logger == nil {
		config.Logger = logging.NoLogger
	}
	m, err := newMetrics(config.Name, config.Registerer)
	if err != nil {
		return nil, fmt.Errorf("couldn't register metrics of replica %q: %w", config.Name, err)
	}

	r := &Replica[T]{
		name:    config.Name,
		empty:   config.Empty,
		decode:  config.Decode,
		store:   config.Store,
		log:     config.Logger,
		metrics: m,
	}
	r.state, err = r.load()
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Replica[T]) load() (T, error) {
	if r.store == nil {
		return r.empty(), nil
	}
	state, err := store.Load(r.store, r.name, r.decode)
	switch {
	case err == nil:
		r.log.Info("loaded replica %q", r.name)
		return state, nil
	case errors.Is(err, store.ErrNotFound):
		r.log.Debug("replica %q has no snapshot, starting empty", r.name)
		return r.empty(), nil
	default:
		return state, fmt.Errorf("couldn't load replica %q: %w", r.name, err)
	}
}

// Name returns the name of the replica.
func (r *Replica[T]) Name() string {
	return r.name
}

// Update applies the local mutation [fn] to a copy of the state and persists
// the result. If [fn] or the write fails, the error is returned and the
// replica keeps its previous state.
func (r *Replica[T]) Update(fn func(T) error) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	// Merging with an empty state yields a copy that shares nothing with
	// r.state and keeps its tag generator.
	next := r.state.Merge(r.empty())
	if err := fn(next); err != nil {
		return err
	}
	if err := r.persist(next); err != nil {
		return err
	}
	r.state = next
	r.metrics.updates.Inc()
	return nil
}

// View calls [fn] with the current state. [fn] must not retain or mutate it.
func (r *Replica[T]) View(fn func(T)) {
	r.lock.Lock()
	defer r.lock.Unlock()

	fn(r.state)
}

// Payload returns the current snapshot.
func (r *Replica[T]) Payload() ([]byte, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.state.Payload()
}

// Merge folds [other] into the replica and persists the result. If the write
// fails, the replica keeps its previous state.
func (r *Replica[T]) Merge(other T) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	next := r.state.Merge(other)
	if err := r.persist(next); err != nil {
		return err
	}
	r.state = next
	r.metrics.merges.Inc()
	return nil
}

// MergePayloads decodes [payloads] concurrently and folds them into the
// replica in argument order. If any payload is invalid, [ctx] is done before
// decoding completes, or the write fails, the replica is left unchanged.
func (r *Replica[T]) MergePayloads(ctx context.Context, payloads ...[]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	decoded := make([]T, len(payloads))
	eg, ctx := errgroup.WithContext(ctx)
	for i, payload := range payloads {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			state, err := r.decode(payload)
			if err != nil {
				return fmt.Errorf("payload %d: %w", i, err)
			}
			decoded[i] = state
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		r.metrics.mergeFailures.Inc()
		r.log.Warn("rejected merge into replica %q: %v", r.name, err)
		return fmt.Errorf("couldn't merge into replica %q: %w", r.name, err)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	next := r.state
	for _, state := range decoded {
		next = next.Merge(state)
	}
	if err := r.persist(next); err != nil {
		return err
	}
	r.state = next
	r.metrics.merges.Add(float64(len(decoded)))
	r.log.Debug("merged %d payloads into replica %q", len(decoded), r.name)
	return nil
}

// persist writes [state] to the store. It must be called with the lock held.
func (r *Replica[T]) persist(state T) error {
	payload, err := state.Payload()
	if err != nil {
		return fmt.Errorf("couldn't encode replica %q: %w", r.name, err)
	}
	if r.store != nil {
		if err := r.store.Put(r.name, payload); err != nil {
			r.log.Error("couldn't persist replica %q: %v", r.name, err)
			return fmt.Errorf("couldn't persist replica %q: %w", r.name, err)
		}
	}
	r.metrics.payloadBytes.Set(float64(len(payload)))
	return nil
}
