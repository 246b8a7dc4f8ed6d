package store

import (
	"context"
	"time"

	"github.com/lmor152/omnibooker-v2/internal/booking"
	"github.com/lmor152/omnibooker-v2/internal/db"
)

const taskColumns = `
id, booking_slot_id, scheduled_at, attempt_at, status,
COALESCE(error_message,''), attempted_at, created_at`

func scanTask(row db.Row) (booking.Task, error) {
	var t booking.Task
	err := row.Scan(
		&t.ID, &t.SlotID, &t.ScheduledAt, &t.AttemptAt, &t.Status,
		&t.ErrorMessage, &t.AttemptedAt, &t.CreatedAt,
	)
	return t, err
}

func (s *Store) InsertTask(ctx context.Context, t *booking.Task) error {
	err := s.db.QueryRow(ctx, `
INSERT INTO booking_tasks(booking_slot_id, scheduled_at, attempt_at, status)
VALUES ($1,$2,$3,$4)
RETURNING id, created_at`,
		t.SlotID, t.ScheduledAt, t.AttemptAt, t.Status,
	).Scan(&t.ID, &t.CreatedAt)
	return db.WrapNotFound(err)
}

func (s *Store) GetTask(ctx context.Context, id int64) (booking.Task, error) {
	t, err := scanTask(s.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM booking_tasks WHERE id=$1`, id))
	if err != nil {
		return booking.Task{}, db.WrapNotFound(err)
	}
	return t, nil
}

// GetTaskForUser scopes a task lookup to its slot's owner.
func (s *Store) GetTaskForUser(ctx context.Context, id, userID int64) (booking.Task, error) {
	t, err := scanTask(s.db.QueryRow(ctx, `
SELECT t.id, t.booking_slot_id, t.scheduled_at, t.attempt_at, t.status,
       COALESCE(t.error_message,''), t.attempted_at, t.created_at
FROM booking_tasks t
JOIN booking_slots s ON s.id = t.booking_slot_id
WHERE t.id=$1 AND s.user_id=$2`, id, userID))
	if err != nil {
		return booking.Task{}, db.WrapNotFound(err)
	}
	return t, nil
}

func (s *Store) ListTasksByUser(ctx context.Context, userID int64) ([]booking.Task, error) {
	rows, err := s.db.Query(ctx, `
SELECT t.id, t.booking_slot_id, t.scheduled_at, t.attempt_at, t.status,
       COALESCE(t.error_message,''), t.attempted_at, t.created_at
FROM booking_tasks t
JOIN booking_slots s ON s.id = t.booking_slot_id
WHERE s.user_id=$1
ORDER BY t.scheduled_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *Store) DueTasks(ctx context.Context, now time.Time, limit int) ([]booking.Task, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+taskColumns+`
FROM booking_tasks
WHERE status=$1 AND (attempt_at IS NULL OR attempt_at <= $2)
ORDER BY attempt_at ASC NULLS FIRST
LIMIT $3`, booking.StatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *Store) PendingFutureTasks(ctx context.Context, slotID int64, now time.Time) ([]booking.Task, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+taskColumns+`
FROM booking_tasks
WHERE booking_slot_id=$1 AND status=$2 AND scheduled_at >= $3
ORDER BY scheduled_at ASC`, slotID, booking.StatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *Store) NonPendingFutureOccurrences(ctx context.Context, slotID int64, now time.Time) ([]time.Time, error) {
	rows, err := s.db.Query(ctx, `
SELECT scheduled_at
FROM booking_tasks
WHERE booking_slot_id=$1 AND status <> $2 AND scheduled_at >= $3`, slotID, booking.StatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *Store) SetTaskAttempt(ctx context.Context, taskID int64, attemptAt time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE booking_tasks SET attempt_at=$2 WHERE id=$1`, taskID, attemptAt)
	return err
}

func (s *Store) ClaimTask(ctx context.Context, taskID int64, at time.Time) (bool, error) {
	n, err := s.db.Exec(ctx, `
UPDATE booking_tasks SET status=$2, attempted_at=$3
WHERE id=$1 AND status=$4`, taskID, booking.StatusProcessing, at, booking.StatusPending)
	return n > 0, err
}

func (s *Store) MarkTask(ctx context.Context, taskID int64, status booking.TaskStatus, message string) error {
	_, err := s.db.Exec(ctx, `
UPDATE booking_tasks SET status=$2, error_message=NULLIF($3,'') WHERE id=$1`, taskID, status, message)
	return err
}

func (s *Store) MarkTaskSuccess(ctx context.Context, taskID int64, attemptedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE booking_tasks SET status=$2, error_message=NULL, attempted_at=COALESCE(attempted_at, $3)
WHERE id=$1`, taskID, booking.StatusSuccess, attemptedAt)
	return err
}

func (s *Store) DeletePendingTasks(ctx context.Context, slotID int64) (int64, error) {
	return s.db.Exec(ctx, `
DELETE FROM booking_tasks WHERE booking_slot_id=$1 AND status=$2`, slotID, booking.StatusPending)
}

func (s *Store) CancelPendingTasks(ctx context.Context, slotID int64, message string) (int64, error) {
	return s.db.Exec(ctx, `
UPDATE booking_tasks SET status=$2, error_message=NULLIF($3,'')
WHERE booking_slot_id=$1 AND status=$4`, slotID, booking.StatusCancelled, message, booking.StatusPending)
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	n, err := s.db.Exec(ctx, `DELETE FROM booking_tasks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// LoadTaskRefs loads a task with its slot, provider and owner in a single
// read so the executor sees a consistent snapshot.
func (s *Store) LoadTaskRefs(ctx context.Context, taskID int64) (booking.TaskRefs, error) {
	var refs booking.TaskRefs
	var slotID, providerID, userID *int64
	var sealed string
	var rawOptions []byte

	err := s.db.QueryRow(ctx, `
SELECT
	t.id, t.booking_slot_id, t.scheduled_at, t.attempt_at, t.status,
	COALESCE(t.error_message,''), t.attempted_at, t.created_at,
	s.id, COALESCE(s.name,''), COALESCE(s.frequency,''), s.day_of_week, s.day_of_month,
	COALESCE(s.time_of_day,''), COALESCE(s.timezone,'UTC'), COALESCE(s.duration_minutes,60),
	COALESCE(s.facility,''), COALESCE(s.is_active,FALSE),
	COALESCE(s.attempt_strategy,'offset'), COALESCE(s.offset_days,0), COALESCE(s.offset_hours,0),
	COALESCE(s.offset_minutes,0), COALESCE(s.release_days_before,0), COALESCE(s.release_time,''),
	s.provider_options,
	p.id, COALESCE(p.name,''), COALESCE(p.type,''), COALESCE(p.credentials,''),
	u.id, COALESCE(u.email,''), COALESCE(u.full_name,'')
FROM booking_tasks t
LEFT JOIN booking_slots s ON s.id = t.booking_slot_id
LEFT JOIN providers p ON p.id = s.provider_id
LEFT JOIN users u ON u.id = s.user_id
WHERE t.id=$1`, taskID).Scan(
		&refs.Task.ID, &refs.Task.SlotID, &refs.Task.ScheduledAt, &refs.Task.AttemptAt,
		&refs.Task.Status, &refs.Task.ErrorMessage, &refs.Task.AttemptedAt, &refs.Task.CreatedAt,
		&slotID, &refs.Slot.Name, &refs.Slot.Frequency, &refs.Slot.DayOfWeek, &refs.Slot.DayOfMonth,
		&refs.Slot.TimeOfDay, &refs.Slot.Timezone, &refs.Slot.DurationMinutes,
		&refs.Slot.Facility, &refs.Slot.Active,
		&refs.Slot.AttemptStrategy, &refs.Slot.OffsetDays, &refs.Slot.OffsetHours,
		&refs.Slot.OffsetMinutes, &refs.Slot.ReleaseDaysBefore, &refs.Slot.ReleaseTime,
		&rawOptions,
		&providerID, &refs.Provider.Name, &refs.Provider.Type, &sealed,
		&userID, &refs.User.Email, &refs.User.FullName,
	)
	if err != nil {
		return booking.TaskRefs{}, db.WrapNotFound(err)
	}

	if slotID == nil {
		return booking.TaskRefs{}, &booking.IntegrityError{Missing: "booking slot"}
	}
	if providerID == nil {
		return booking.TaskRefs{}, &booking.IntegrityError{Missing: "provider"}
	}
	if userID == nil {
		return booking.TaskRefs{}, &booking.IntegrityError{Missing: "slot owner"}
	}

	refs.Slot.ID = *slotID
	refs.Slot.UserID = *userID
	refs.Slot.ProviderID = *providerID
	refs.Provider.ID = *providerID
	refs.Provider.UserID = *userID
	refs.User.ID = *userID

	if refs.Slot.ProviderOptions, err = decodeOptions(rawOptions); err != nil {
		return booking.TaskRefs{}, err
	}
	if refs.Provider.Credentials, err = s.openCredentials(sealed); err != nil {
		return booking.TaskRefs{}, err
	}
	return refs, nil
}

func collectTasks(rows db.Rows) ([]booking.Task, error) {
	var out []booking.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
