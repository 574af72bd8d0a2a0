package conductor

import (
	"errors"
	"fmt"

	"github.com/dyluth/warren/pkg/pipeline"
)

// NotFoundError indicates an operation against a run that does not exist.
type NotFoundError struct {
	RequestID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("run %s not found", e.RequestID)
}

// AlreadyLockedError indicates a failed lock claim. The lock is a single
// attempt test-and-set: callers must retry later or abort, they are never
// blocked waiting.
type AlreadyLockedError struct {
	RequestID string
	Holder    string
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("run %s is already locked (held by %s)", e.RequestID, e.Holder)
}

// NotLockedError indicates a protocol violation: an operation that requires
// the caller to hold the run lock was invoked without it.
type NotLockedError struct {
	RequestID string
	Operation string
}

func (e *NotLockedError) Error() string {
	return fmt.Sprintf("protocol violation: %s called on run %s without holding the lock",
		e.Operation, e.RequestID)
}

// IllegalTransitionError indicates a requested stage transition with no edge
// in the stage graph. This is a programmer error, never silently clamped to
// the nearest legal stage.
type IllegalTransitionError struct {
	From pipeline.Stage
	To   pipeline.Stage
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal stage transition: %s -> %s", e.From, e.To)
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAlreadyLocked returns true if the error is an AlreadyLockedError.
func IsAlreadyLocked(err error) bool {
	var target *AlreadyLockedError
	return errors.As(err, &target)
}

// IsNotLocked returns true if the error is a NotLockedError.
func IsNotLocked(err error) bool {
	var target *NotLockedError
	return errors.As(err, &target)
}

// IsIllegalTransition returns true if the error is an IllegalTransitionError.
func IsIllegalTransition(err error) bool {
	var target *IllegalTransitionError
	return errors.As(err, &target)
}
