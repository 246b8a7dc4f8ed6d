package booking

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/lmor152/omnibooker-v2/internal/db"
)

// Executor loads a task's full context, dispatches to the registered provider
// handler and commits the success transition. Failures come back as typed
// errors with the task untouched; writing the failure is the caller's job so
// it is identical for the worker loop and manual execution.
type Executor struct {
	store    Store
	registry *Registry
	zones    ZoneResolver
	now      func() time.Time
	log      zerolog.Logger
}

func NewExecutor(store Store, registry *Registry, zones ZoneResolver, now func() time.Time, log zerolog.Logger) *Executor {
	if zones == nil {
		zones = time.LoadLocation
	}
	if now == nil {
		now = time.Now
	}
	return &Executor{
		store:    store,
		registry: registry,
		zones:    zones,
		now:      now,
		log:      log.With().Str("component", "executor").Logger(),
	}
}

func (e *Executor) Execute(ctx context.Context, taskID int64) (Task, error) {
	refs, err := e.store.LoadTaskRefs(ctx, taskID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Task{}, &IntegrityError{Missing: "booking task"}
		}
		return Task{}, err
	}

	bc := e.buildContext(refs)
	e.log.Info().
		Int64("task_id", refs.Task.ID).
		Str("provider", refs.Provider.Name).
		Str("provider_type", refs.Provider.Type).
		Msg("executing booking task")

	handler, err := e.registry.Lookup(refs.Provider.Type)
	if err != nil {
		return Task{}, err
	}

	res := handler(ctx, bc)
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "booking provider failed"
		}
		return Task{}, &ExecutionError{TaskID: refs.Task.ID, Message: msg}
	}

	attemptedAt := e.now().UTC()
	if refs.Task.AttemptedAt != nil {
		attemptedAt = *refs.Task.AttemptedAt
	}
	if err := e.store.MarkTaskSuccess(ctx, refs.Task.ID, attemptedAt); err != nil {
		return Task{}, err
	}

	task := refs.Task
	task.Status = StatusSuccess
	task.ErrorMessage = ""
	task.AttemptedAt = &attemptedAt

	if res.ConfirmationCode != "" {
		e.log.Info().Int64("task_id", task.ID).Str("confirmation", res.ConfirmationCode).Msg("booking confirmed")
	} else {
		e.log.Info().Int64("task_id", task.ID).Str("message", res.Message).Msg("booking completed")
	}
	return task, nil
}

func (e *Executor) buildContext(refs TaskRefs) Context {
	loc, err := e.zones(orUTC(refs.Slot.Timezone))
	if err != nil {
		e.log.Warn().Str("timezone", refs.Slot.Timezone).Msg("unknown timezone, defaulting to UTC")
		loc = time.UTC
	}

	duration := refs.Slot.DurationMinutes
	if duration <= 0 {
		duration = 60
	}

	startUTC := refs.Task.ScheduledAt.UTC()
	endUTC := startUTC.Add(time.Duration(duration) * time.Minute)
	startLocal := startUTC.In(loc)

	task := TaskInfo{
		ID:         refs.Task.ID,
		StartUTC:   startUTC,
		StartLocal: startLocal,
		EndUTC:     endUTC,
		EndLocal:   endUTC.In(loc),
		TargetDate: time.Date(startLocal.Year(), startLocal.Month(), startLocal.Day(), 0, 0, 0, 0, loc),
	}
	if refs.Task.AttemptAt != nil {
		u := refs.Task.AttemptAt.UTC()
		l := u.In(loc)
		task.AttemptUTC = &u
		task.AttemptLocal = &l
	}

	return Context{
		Provider: ProviderInfo{
			ID:          refs.Provider.ID,
			Name:        refs.Provider.Name,
			Type:        refs.Provider.Type,
			Credentials: refs.Provider.Credentials,
		},
		Slot: SlotInfo{
			ID:              refs.Slot.ID,
			Name:            refs.Slot.Name,
			Facility:        refs.Slot.Facility,
			Timezone:        orUTC(refs.Slot.Timezone),
			Frequency:       refs.Slot.Frequency,
			DurationMinutes: duration,
			Options:         refs.Slot.ProviderOptions,
		},
		Task: task,
		User: UserInfo{
			ID:       refs.User.ID,
			Email:    refs.User.Email,
			FullName: refs.User.FullName,
		},
	}
}

func orUTC(tz string) string {
	if tz == "" {
		return "UTC"
	}
	return tz
}
