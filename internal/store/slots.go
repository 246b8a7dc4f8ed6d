package store

import (
	"context"

	"github.com/lmor152/omnibooker-v2/internal/booking"
	"github.com/lmor152/omnibooker-v2/internal/db"
)

const slotColumns = `
id, user_id, provider_id, name, frequency, day_of_week, day_of_month,
time_of_day, timezone, duration_minutes, COALESCE(facility,''), is_active,
attempt_strategy, offset_days, offset_hours, offset_minutes,
release_days_before, COALESCE(release_time,''), provider_options, created_at`

func scanSlot(row db.Row) (booking.Slot, error) {
	var sl booking.Slot
	var rawOptions []byte
	err := row.Scan(
		&sl.ID, &sl.UserID, &sl.ProviderID, &sl.Name, &sl.Frequency,
		&sl.DayOfWeek, &sl.DayOfMonth, &sl.TimeOfDay, &sl.Timezone,
		&sl.DurationMinutes, &sl.Facility, &sl.Active,
		&sl.AttemptStrategy, &sl.OffsetDays, &sl.OffsetHours, &sl.OffsetMinutes,
		&sl.ReleaseDaysBefore, &sl.ReleaseTime, &rawOptions, &sl.CreatedAt,
	)
	if err != nil {
		return booking.Slot{}, err
	}
	if sl.ProviderOptions, err = decodeOptions(rawOptions); err != nil {
		return booking.Slot{}, err
	}
	return sl, nil
}

func (s *Store) CreateSlot(ctx context.Context, sl *booking.Slot) error {
	rawOptions, err := encodeOptions(sl.ProviderOptions)
	if err != nil {
		return err
	}
	err = s.db.QueryRow(ctx, `
INSERT INTO booking_slots(
	user_id, provider_id, name, frequency, day_of_week, day_of_month,
	time_of_day, timezone, duration_minutes, facility, is_active,
	attempt_strategy, offset_days, offset_hours, offset_minutes,
	release_days_before, release_time, provider_options)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),$11,$12,$13,$14,$15,$16,NULLIF($17,''),$18)
RETURNING id, created_at`,
		sl.UserID, sl.ProviderID, sl.Name, sl.Frequency, sl.DayOfWeek, sl.DayOfMonth,
		sl.TimeOfDay, sl.Timezone, sl.DurationMinutes, sl.Facility, sl.Active,
		sl.AttemptStrategy, sl.OffsetDays, sl.OffsetHours, sl.OffsetMinutes,
		sl.ReleaseDaysBefore, sl.ReleaseTime, rawOptions,
	).Scan(&sl.ID, &sl.CreatedAt)
	return db.WrapNotFound(err)
}

func (s *Store) UpdateSlot(ctx context.Context, sl *booking.Slot) error {
	rawOptions, err := encodeOptions(sl.ProviderOptions)
	if err != nil {
		return err
	}
	n, err := s.db.Exec(ctx, `
UPDATE booking_slots SET
	provider_id=$2, name=$3, frequency=$4, day_of_week=$5, day_of_month=$6,
	time_of_day=$7, timezone=$8, duration_minutes=$9, facility=NULLIF($10,''),
	is_active=$11, attempt_strategy=$12, offset_days=$13, offset_hours=$14,
	offset_minutes=$15, release_days_before=$16, release_time=NULLIF($17,''),
	provider_options=$18
WHERE id=$1 AND user_id=$19`,
		sl.ID, sl.ProviderID, sl.Name, sl.Frequency, sl.DayOfWeek, sl.DayOfMonth,
		sl.TimeOfDay, sl.Timezone, sl.DurationMinutes, sl.Facility, sl.Active,
		sl.AttemptStrategy, sl.OffsetDays, sl.OffsetHours, sl.OffsetMinutes,
		sl.ReleaseDaysBefore, sl.ReleaseTime, rawOptions, sl.UserID)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *Store) GetSlot(ctx context.Context, id int64) (booking.Slot, error) {
	sl, err := scanSlot(s.db.QueryRow(ctx, `SELECT `+slotColumns+` FROM booking_slots WHERE id=$1`, id))
	if err != nil {
		return booking.Slot{}, db.WrapNotFound(err)
	}
	return sl, nil
}

func (s *Store) GetSlotForUser(ctx context.Context, id, userID int64) (booking.Slot, error) {
	sl, err := scanSlot(s.db.QueryRow(ctx, `SELECT `+slotColumns+` FROM booking_slots WHERE id=$1 AND user_id=$2`, id, userID))
	if err != nil {
		return booking.Slot{}, db.WrapNotFound(err)
	}
	return sl, nil
}

func (s *Store) ListSlotsByUser(ctx context.Context, userID int64) ([]booking.Slot, error) {
	rows, err := s.db.Query(ctx, `SELECT `+slotColumns+` FROM booking_slots WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

// DeleteSlot cascades to the slot's tasks via the schema's foreign keys.
func (s *Store) DeleteSlot(ctx context.Context, id, userID int64) error {
	n, err := s.db.Exec(ctx, `DELETE FROM booking_slots WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}
