package booking

import (
	"context"
	"time"
)

// Store is the narrow persistence surface the booking core depends on. The
// postgres implementation lives in internal/store; tests use an in-memory
// fake. Every method is atomic at the single-statement level.
type Store interface {
	GetSlot(ctx context.Context, id int64) (Slot, error)

	GetTask(ctx context.Context, id int64) (Task, error)
	InsertTask(ctx context.Context, t *Task) error
	DeleteTask(ctx context.Context, id int64) error

	// LoadTaskRefs eagerly loads a task with its slot, provider and owner
	// in one consistent read.
	LoadTaskRefs(ctx context.Context, taskID int64) (TaskRefs, error)

	// DueTasks returns pending tasks whose attempt instant is unset or has
	// passed, ordered by attempt instant ascending.
	DueTasks(ctx context.Context, now time.Time, limit int) ([]Task, error)

	// PendingFutureTasks returns the slot's pending tasks whose occurrence
	// is at or after now, ordered by occurrence ascending.
	PendingFutureTasks(ctx context.Context, slotID int64, now time.Time) ([]Task, error)

	// NonPendingFutureOccurrences returns occurrence instants of the
	// slot's non-pending tasks that are still in the future. The queue
	// synchronizer must never resurrect these.
	NonPendingFutureOccurrences(ctx context.Context, slotID int64, now time.Time) ([]time.Time, error)

	SetTaskAttempt(ctx context.Context, taskID int64, attemptAt time.Time) error

	// ClaimTask conditionally advances a pending task to processing and
	// stamps attempted-at. Returns false when the task was not pending.
	ClaimTask(ctx context.Context, taskID int64, at time.Time) (bool, error)

	// MarkTask sets a task's status and error message (empty clears it).
	MarkTask(ctx context.Context, taskID int64, status TaskStatus, message string) error

	// MarkTaskSuccess finalizes a task, clearing any error and stamping
	// attempted-at if it was never set.
	MarkTaskSuccess(ctx context.Context, taskID int64, attemptedAt time.Time) error

	DeletePendingTasks(ctx context.Context, slotID int64) (int64, error)
	CancelPendingTasks(ctx context.Context, slotID int64, message string) (int64, error)
}
