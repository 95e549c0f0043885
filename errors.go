// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package crdt

import (
	"errors"
	"fmt"
)

// Common set errors.
var (
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrIllegalState         = errors.New("illegal state")
	ErrNullValue            = errors.New("null value")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// ConflictError is returned by a batch add that names values which have
// already been removed. No value of the batch is added.
type ConflictError struct {
	Count int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %d elements have already been removed", ErrIllegalState, e.Count)
}

func (e *ConflictError) Unwrap() error {
	return ErrIllegalState
}

// InvalidPayload wraps [ErrInvalidPayload] with the reason a snapshot was
// rejected.
func InvalidPayload(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}
