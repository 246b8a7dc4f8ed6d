package booking

import (
	"errors"
	"fmt"
)

// State machine violations surfaced to callers of the task operations.
var (
	ErrNotPending     = errors.New("only pending tasks can be used here")
	ErrNotCancelled   = errors.New("only cancelled tasks can be reactivated")
	ErrNotTerminal    = errors.New("only cancelled, failed or successful tasks can be deleted")
	ErrOccurrencePast = errors.New("cannot reactivate a task scheduled in the past")
)

// NotRegisteredError means no handler exists for a provider type. It is kept
// distinct from a handler-reported failure.
type NotRegisteredError struct {
	ProviderType string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("no booking handler registered for provider type %q", e.ProviderType)
}

// IntegrityError means a record referenced by a task vanished between
// scheduling and execution.
type IntegrityError struct {
	Missing string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s no longer exists", e.Missing)
}

// ExecutionError is the single typed failure returned by the executor. Task
// mutation is left to the caller so the failure write is uniform for worker
// and manual triggers.
type ExecutionError struct {
	TaskID  int64
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "booking provider failed"
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// RuleError reports an invalid recurrence rule on a slot.
type RuleError struct {
	Field  string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid slot rule: %s %s", e.Field, e.Reason)
}
