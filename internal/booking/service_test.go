package booking

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *memStore
	registry *Registry
	svc      *Service
	slot     Slot
	now      time.Time
}

// newFixture wires a service over the in-memory store with a weekly Sunday
// 10:00 UTC slot and a frozen clock on Wednesday 2026-03-04.
func newFixture(t *testing.T, depth int) *fixture {
	t.Helper()
	st := newMemStore()
	now := mustUTC(t, "2026-03-04T10:00:00Z")
	clock := func() time.Time { return now }

	user := st.addUser(User{Email: "ann@example.com", FullName: "Ann Example", Active: true})
	provider := st.addProvider(Provider{UserID: user.ID, Name: "club", Type: "testprov", Credentials: map[string]any{"username": "ann"}})
	slot := st.addSlot(Slot{
		UserID:          user.ID,
		ProviderID:      provider.ID,
		Name:            "sunday tennis",
		Frequency:       FrequencyWeekly,
		DayOfWeek:       intp(0),
		TimeOfDay:       "10:00",
		Timezone:        "UTC",
		DurationMinutes: 60,
		Active:          true,
		AttemptStrategy: StrategyOffset,
		OffsetDays:      1,
	})

	registry := NewRegistry()
	calc := NewCalculator(time.LoadLocation, zerolog.Nop())
	exec := NewExecutor(st, registry, time.LoadLocation, clock, zerolog.Nop())
	svc := NewService(st, calc, exec, depth, clock, zerolog.Nop())

	return &fixture{store: st, registry: registry, svc: svc, slot: slot, now: now}
}

func pendingOccurrences(tasks []Task) map[time.Time]int {
	out := make(map[time.Time]int)
	for _, task := range tasks {
		if task.Status == StatusPending {
			out[task.ScheduledAt]++
		}
	}
	return out
}

func TestSyncCreatesQueueOfFuturePendingTasks(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 3, false))

	tasks := f.store.taskList()
	require.Len(t, tasks, 3)
	seen := make(map[time.Time]bool)
	for _, task := range tasks {
		assert.Equal(t, StatusPending, task.Status)
		assert.True(t, task.ScheduledAt.After(f.now), "occurrence must be future")
		require.NotNil(t, task.AttemptAt)
		assert.True(t, task.AttemptAt.After(f.now), "attempt must be future")
		assert.False(t, seen[task.ScheduledAt], "duplicate occurrence %v", task.ScheduledAt)
		seen[task.ScheduledAt] = true
	}
	// Weekly Sunday 10:00 UTC from Wednesday 2026-03-04.
	assert.True(t, seen[mustUTC(t, "2026-03-08T10:00:00Z")])
	assert.True(t, seen[mustUTC(t, "2026-03-15T10:00:00Z")])
	assert.True(t, seen[mustUTC(t, "2026-03-22T10:00:00Z")])
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 3, false))
	first := pendingOccurrences(f.store.taskList())

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 3, false))
	second := pendingOccurrences(f.store.taskList())

	assert.Equal(t, first, second)
	assert.Len(t, f.store.taskList(), 3)
}

func TestSyncNeverResurrectsHandledOccurrences(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 3, false))
	tasks := f.store.taskList()
	handled := tasks[0]
	require.NoError(t, f.store.MarkTaskSuccess(ctx, handled.ID, f.now))

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 3, false))

	occurrences := pendingOccurrences(f.store.taskList())
	assert.NotContains(t, occurrences, handled.ScheduledAt, "handled occurrence must not come back")
	assert.Len(t, occurrences, 3, "queue topped back up with a later occurrence")
	assert.Contains(t, occurrences, mustUTC(t, "2026-03-29T10:00:00Z"))
}

func TestSyncResetRecomputesFromScratch(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 3, false))
	before := f.store.taskList()
	require.Len(t, before, 3)

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 3, true))
	after := f.store.taskList()
	require.Len(t, after, 3)
	// Same occurrences, freshly inserted rows.
	assert.Equal(t, pendingOccurrences(before), pendingOccurrences(after))
	assert.NotEqual(t, before[0].ID, after[0].ID)
}

func TestSyncRecomputesAttemptsForSurvivingTasks(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 2, false))
	original := f.store.taskList()[0]
	require.NotNil(t, original.AttemptAt)

	// Timing-rule edit: attempt two days before instead of one.
	f.slot.OffsetDays = 2
	f.store.putSlot(f.slot)

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 2, false))
	updated, err := f.store.GetTask(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, original.ScheduledAt, updated.ScheduledAt, "occurrence date must not move")
	assert.Equal(t, original.AttemptAt.AddDate(0, 0, -1).UTC(), updated.AttemptAt.UTC())
}

func TestSyncInactiveSlotIsNoOp(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	f.slot.Active = false
	f.store.putSlot(f.slot)

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 3, false))
	assert.Empty(t, f.store.taskList())
}

func TestDeactivateSlotCancelsPendingTasks(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 3, false))

	f.slot.Active = false
	f.store.putSlot(f.slot)
	n, err := f.svc.DeactivateSlot(ctx, f.slot)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	for _, task := range f.store.taskList() {
		assert.Equal(t, StatusCancelled, task.Status)
		assert.Equal(t, "slot was deactivated", task.ErrorMessage)
	}
}

func TestCancelTaskRefillsQueue(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 2, false))
	target := f.store.taskList()[0]

	cancelled, err := f.svc.CancelTask(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	occurrences := pendingOccurrences(f.store.taskList())
	assert.Len(t, occurrences, 2, "queue refilled after cancellation")
	assert.NotContains(t, occurrences, target.ScheduledAt, "cancelled occurrence not resurrected")
}

func TestCancelTaskRequiresPending(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 1, false))
	task := f.store.taskList()[0]
	require.NoError(t, f.store.MarkTask(ctx, task.ID, StatusFailed, "boom"))

	_, err := f.svc.CancelTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestReactivateTask(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 1, false))
	task := f.store.taskList()[0]
	require.NoError(t, f.store.MarkTask(ctx, task.ID, StatusCancelled, "changed my mind"))

	back, err := f.svc.ReactivateTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, back.Status)
	assert.Empty(t, back.ErrorMessage)
}

func TestReactivateTaskRejectsPastOccurrences(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	past := Task{SlotID: f.slot.ID, ScheduledAt: f.now.AddDate(0, 0, -7), Status: StatusCancelled}
	require.NoError(t, f.store.InsertTask(ctx, &past))

	_, err := f.svc.ReactivateTask(ctx, past.ID)
	assert.ErrorIs(t, err, ErrOccurrencePast)
}

func TestReactivateTaskRequiresCancelled(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 1, false))
	task := f.store.taskList()[0]

	_, err := f.svc.ReactivateTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotCancelled)
}

func TestDeleteTaskOnlyTerminal(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 1, false))
	task := f.store.taskList()[0]

	assert.ErrorIs(t, f.svc.DeleteTask(ctx, task.ID), ErrNotTerminal)

	require.NoError(t, f.store.MarkTask(ctx, task.ID, StatusFailed, "boom"))
	require.NoError(t, f.svc.DeleteTask(ctx, task.ID))
	_, err := f.store.GetTask(ctx, task.ID)
	assert.Error(t, err)
}

func TestExecuteNowSuccessRefillsQueue(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	require.NoError(t, f.registry.Register("testprov", func(context.Context, Context) Result {
		return Result{Success: true, ConfirmationCode: "ABC123"}
	}))
	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 2, false))
	target := f.store.taskList()[0]

	done, err := f.svc.ExecuteNow(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, done.Status)

	occurrences := pendingOccurrences(f.store.taskList())
	assert.Len(t, occurrences, 2, "queue refilled after success")
	assert.NotContains(t, occurrences, target.ScheduledAt)
}

func TestExecuteNowFailureWritesMessageAndRefills(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	require.NoError(t, f.registry.Register("testprov", func(context.Context, Context) Result {
		return Result{Message: "no courts available"}
	}))
	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 2, false))
	target := f.store.taskList()[0]

	_, err := f.svc.ExecuteNow(ctx, target.ID)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "no courts available", execErr.Message)

	failed, err := f.store.GetTask(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "no courts available", failed.ErrorMessage)

	assert.Len(t, pendingOccurrences(f.store.taskList()), 2, "queue refilled after failure")
}

func TestExecuteNowRequiresPending(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncPendingTasks(ctx, f.slot, 1, false))
	task := f.store.taskList()[0]
	require.NoError(t, f.store.MarkTask(ctx, task.ID, StatusCancelled, ""))

	_, err := f.svc.ExecuteNow(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotPending)
}
