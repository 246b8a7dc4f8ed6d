package booking

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lmor152/omnibooker-v2/internal/metrics"
)

// DefaultQueueDepth is how many future pending tasks an active slot keeps.
const DefaultQueueDepth = 6

// syncProbeFactor bounds the candidate search per sync call so a degenerate
// rule cannot iterate forever.
const syncProbeFactor = 12

// Service owns the queue synchronizer and the task state machine.
type Service struct {
	store      Store
	calc       *Calculator
	exec       *Executor
	queueDepth int
	now        func() time.Time
	log        zerolog.Logger
}

func NewService(store Store, calc *Calculator, exec *Executor, queueDepth int, now func() time.Time, log zerolog.Logger) *Service {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:      store,
		calc:       calc,
		exec:       exec,
		queueDepth: queueDepth,
		now:        now,
		log:        log.With().Str("component", "booking").Logger(),
	}
}

func (s *Service) QueueDepth() int { return s.queueDepth }

// SyncPendingTasks ensures the slot has count future pending tasks. Existing
// future pending tasks are preserved (with attempt instants recomputed so
// timing-rule edits propagate); occurrences already held by any still-future
// task of the slot are never recreated. No-op for inactive slots.
func (s *Service) SyncPendingTasks(ctx context.Context, slot Slot, count int, resetExisting bool) error {
	if !slot.Active {
		return nil
	}
	if count <= 0 {
		count = s.queueDepth
	}

	if resetExisting {
		if _, err := s.store.DeletePendingTasks(ctx, slot.ID); err != nil {
			return err
		}
	}

	now := s.now().UTC()

	pending, err := s.store.PendingFutureTasks(ctx, slot.ID, now)
	if err != nil {
		return err
	}

	used := make(map[int64]struct{}, len(pending))
	for _, t := range pending {
		attempt, err := s.calc.AttemptTime(slot, t.ScheduledAt, now)
		if err != nil {
			return err
		}
		if err := s.store.SetTaskAttempt(ctx, t.ID, attempt); err != nil {
			return err
		}
		used[occurrenceKey(t.ScheduledAt)] = struct{}{}
	}

	handled, err := s.store.NonPendingFutureOccurrences(ctx, slot.ID, now)
	if err != nil {
		return err
	}
	for _, occ := range handled {
		used[occurrenceKey(occ)] = struct{}{}
	}

	have := len(pending)
	added := 0
	for offset := 0; have < count && offset < count*syncProbeFactor; offset++ {
		occurrence, err := s.calc.NextOccurrence(slot, now, offset)
		if err != nil {
			return err
		}
		key := occurrenceKey(occurrence)
		if !occurrence.After(now) {
			continue
		}
		if _, taken := used[key]; taken {
			continue
		}

		attempt, err := s.calc.AttemptTime(slot, occurrence, now)
		if err != nil {
			return err
		}
		task := Task{
			SlotID:      slot.ID,
			ScheduledAt: occurrence,
			AttemptAt:   &attempt,
			Status:      StatusPending,
		}
		if err := s.store.InsertTask(ctx, &task); err != nil {
			return err
		}
		used[key] = struct{}{}
		have++
		added++
		metrics.TaskCreated()
	}

	if added > 0 {
		s.log.Debug().Int64("slot_id", slot.ID).Int("added", added).Msg("queued booking tasks")
	}
	return nil
}

// ExecuteNow runs a pending task immediately: claim, execute, and on failure
// perform the uniform failure write (status, message, re-sync) before
// returning the typed error.
func (s *Service) ExecuteNow(ctx context.Context, taskID int64) (Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	if task.Status != StatusPending {
		return Task{}, ErrNotPending
	}

	claimed, err := s.store.ClaimTask(ctx, taskID, s.now().UTC())
	if err != nil {
		return Task{}, err
	}
	if !claimed {
		return Task{}, ErrNotPending
	}

	done, execErr := s.exec.Execute(ctx, taskID)
	if execErr != nil {
		s.FailTask(ctx, task, execErr.Error())
		return Task{}, execErr
	}

	s.resync(ctx, task.SlotID)
	return done, nil
}

// FailTask records a failure on a claimed task and tops the queue back up when
// the slot is still active. Used by the worker and by manual execution alike.
func (s *Service) FailTask(ctx context.Context, task Task, message string) {
	if err := s.store.MarkTask(ctx, task.ID, StatusFailed, message); err != nil {
		s.log.Error().Err(err).Int64("task_id", task.ID).Msg("failed to record task failure")
		return
	}
	s.resync(ctx, task.SlotID)
}

// CancelTask cancels a pending task and refills the slot's queue.
func (s *Service) CancelTask(ctx context.Context, taskID int64) (Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	if task.Status != StatusPending {
		return Task{}, ErrNotPending
	}
	if err := s.store.MarkTask(ctx, taskID, StatusCancelled, ""); err != nil {
		return Task{}, err
	}
	task.Status = StatusCancelled
	s.resync(ctx, task.SlotID)
	return task, nil
}

// ReactivateTask moves a cancelled task back to pending, only while its
// occurrence is still in the future.
func (s *Service) ReactivateTask(ctx context.Context, taskID int64) (Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	if task.Status != StatusCancelled {
		return Task{}, ErrNotCancelled
	}
	if task.ScheduledAt.Before(s.now().UTC()) {
		return Task{}, ErrOccurrencePast
	}
	if err := s.store.MarkTask(ctx, taskID, StatusPending, ""); err != nil {
		return Task{}, err
	}
	task.Status = StatusPending
	task.ErrorMessage = ""
	return task, nil
}

// DeleteTask removes a terminal task.
func (s *Service) DeleteTask(ctx context.Context, taskID int64) error {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if !task.Status.Terminal() {
		return ErrNotTerminal
	}
	return s.store.DeleteTask(ctx, taskID)
}

// DeactivateSlot bulk-cancels the slot's pending tasks. The caller is expected
// to have already persisted the inactive flag.
func (s *Service) DeactivateSlot(ctx context.Context, slot Slot) (int64, error) {
	return s.store.CancelPendingTasks(ctx, slot.ID, "slot was deactivated")
}

func (s *Service) resync(ctx context.Context, slotID int64) {
	slot, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		return
	}
	if !slot.Active {
		return
	}
	if err := s.SyncPendingTasks(ctx, slot, s.queueDepth, false); err != nil {
		s.log.Error().Err(err).Int64("slot_id", slotID).Msg("queue re-sync failed")
	}
}

// occurrenceKey normalizes an occurrence instant for duplicate detection.
func occurrenceKey(t time.Time) int64 {
	return t.UTC().Truncate(time.Minute).Unix()
}
