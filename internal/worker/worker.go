package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/lmor152/omnibooker-v2/internal/booking"
	"github.com/lmor152/omnibooker-v2/internal/db"
	"github.com/lmor152/omnibooker-v2/internal/metrics"
)

// Worker polls the store for due booking tasks and drives them through the
// state machine. Tasks within a batch run sequentially in ascending
// attempt-instant order; an empty pass sleeps before re-querying.
type Worker struct {
	store booking.Store
	exec  *booking.Executor
	svc   *booking.Service

	PollInterval time.Duration
	BatchSize    int

	now func() time.Time
	log zerolog.Logger
}

func New(store booking.Store, exec *booking.Executor, svc *booking.Service, pollInterval time.Duration, batchSize int, now func() time.Time, log zerolog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 5
	}
	if now == nil {
		now = time.Now
	}
	return &Worker{
		store:        store,
		exec:         exec,
		svc:          svc,
		PollInterval: pollInterval,
		BatchSize:    batchSize,
		now:          now,
		log:          log.With().Str("component", "worker").Logger(),
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().
		Dur("poll_interval", w.PollInterval).
		Int("batch_size", w.BatchSize).
		Msg("worker started")

	for {
		processed, err := w.RunOnce(ctx)
		if err != nil {
			w.log.Error().Err(err).Msg("worker pass failed")
		}

		if processed == 0 {
			select {
			case <-ctx.Done():
				w.log.Info().Msg("worker stopped")
				return ctx.Err()
			case <-time.After(w.PollInterval):
			}
			continue
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopped")
			return ctx.Err()
		default:
		}
	}
}

// RunOnce processes one due batch and returns how many tasks succeeded.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	tasks, err := w.store.DueTasks(ctx, w.now().UTC(), w.BatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, task := range tasks {
		if w.processTask(ctx, task) {
			processed++
		}
	}
	return processed, nil
}

func (w *Worker) processTask(ctx context.Context, task booking.Task) bool {
	slot, err := w.store.GetSlot(ctx, task.SlotID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			w.log.Warn().Int64("task_id", task.ID).Msg("task has no associated slot, marking failed")
			w.mark(ctx, task.ID, booking.StatusFailed, "associated booking slot missing")
			metrics.TaskProcessed("failed")
			return false
		}
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("slot load failed")
		return false
	}

	if task.AttemptAt == nil {
		if err := w.store.SetTaskAttempt(ctx, task.ID, task.ScheduledAt); err != nil {
			w.log.Error().Err(err).Int64("task_id", task.ID).Msg("backfill attempt instant failed")
		}
	}

	if !slot.Active {
		w.log.Info().Int64("task_id", task.ID).Int64("slot_id", slot.ID).Msg("slot inactive, cancelling task")
		w.mark(ctx, task.ID, booking.StatusCancelled, "slot deactivated before execution")
		metrics.TaskProcessed("cancelled")
		return false
	}

	claimed, err := w.store.ClaimTask(ctx, task.ID, w.now().UTC())
	if err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("claim failed")
		return false
	}
	if !claimed {
		return false
	}

	if _, err := w.exec.Execute(ctx, task.ID); err != nil {
		w.log.Warn().Err(err).Int64("task_id", task.ID).Int64("slot_id", slot.ID).Msg("booking attempt failed")
		w.svc.FailTask(ctx, task, err.Error())
		metrics.TaskProcessed("failed")
		return false
	}

	metrics.TaskProcessed("success")
	if err := w.svc.SyncPendingTasks(ctx, slot, w.svc.QueueDepth(), false); err != nil {
		w.log.Error().Err(err).Int64("slot_id", slot.ID).Msg("queue re-sync failed")
	}
	w.log.Info().Int64("task_id", task.ID).Int64("slot_id", slot.ID).Msg("task executed successfully")
	return true
}

func (w *Worker) mark(ctx context.Context, taskID int64, status booking.TaskStatus, message string) {
	if err := w.store.MarkTask(ctx, taskID, status, message); err != nil {
		w.log.Error().Err(err).Int64("task_id", taskID).Msg("status write failed")
	}
}
