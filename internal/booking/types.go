package booking

import (
	"context"
	"time"
)

type Frequency string

const (
	FrequencyWeekly      Frequency = "weekly"
	FrequencyFortnightly Frequency = "fortnightly"
	FrequencyMonthly     Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyFortnightly, FrequencyMonthly:
		return true
	}
	return false
}

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusSuccess    TaskStatus = "success"
	StatusFailed     TaskStatus = "failed"
	StatusCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether a task in this status is done. Cancelled counts as
// terminal even though it may be reactivated while the occurrence is future.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type AttemptStrategy string

const (
	// StrategyOffset derives the attempt instant by subtracting a fixed
	// offset from the occurrence.
	StrategyOffset AttemptStrategy = "offset"
	// StrategyRelease targets a platform's release window: a fixed local
	// time of day some days before the occurrence date.
	StrategyRelease AttemptStrategy = "release"
)

type User struct {
	ID        int64
	Email     string
	FullName  string
	Active    bool
	CreatedAt time.Time
}

// Provider is one user's credentials for one external booking service.
type Provider struct {
	ID          int64
	UserID      int64
	Name        string
	Type        string
	Credentials map[string]any
	CreatedAt   time.Time
}

// Slot is a recurrence definition: what to book, where, and when to try.
type Slot struct {
	ID         int64
	UserID     int64
	ProviderID int64
	Name       string

	Frequency  Frequency
	DayOfWeek  *int // 0=Sunday .. 6=Saturday; weekly/fortnightly only
	DayOfMonth *int // monthly only
	TimeOfDay  string
	Timezone   string

	DurationMinutes int
	Facility        string
	Active          bool

	AttemptStrategy   AttemptStrategy
	OffsetDays        int
	OffsetHours       int
	OffsetMinutes     int
	ReleaseDaysBefore int
	ReleaseTime       string

	ProviderOptions map[string]any
	CreatedAt       time.Time
}

// Task is one concrete future booking attempt for a slot.
type Task struct {
	ID           int64
	SlotID       int64
	ScheduledAt  time.Time // occurrence instant, UTC
	AttemptAt    *time.Time
	Status       TaskStatus
	ErrorMessage string
	AttemptedAt  *time.Time
	CreatedAt    time.Time
}

// TaskRefs is a task loaded together with its slot, provider and owner in one
// consistent read.
type TaskRefs struct {
	Task     Task
	Slot     Slot
	Provider Provider
	User     User
}

// ProviderInfo, SlotInfo, TaskInfo and UserInfo form the immutable execution
// context handed to provider handlers.
type ProviderInfo struct {
	ID          int64
	Name        string
	Type        string
	Credentials map[string]any
}

type SlotInfo struct {
	ID              int64
	Name            string
	Facility        string
	Timezone        string
	Frequency       Frequency
	DurationMinutes int
	Options         map[string]any
}

type TaskInfo struct {
	ID         int64
	StartUTC   time.Time
	StartLocal time.Time
	EndUTC     time.Time
	EndLocal   time.Time

	AttemptUTC   *time.Time
	AttemptLocal *time.Time

	// TargetDate is the occurrence's calendar date in the slot's timezone.
	TargetDate time.Time
}

type UserInfo struct {
	ID       int64
	Email    string
	FullName string
}

type Context struct {
	Provider ProviderInfo
	Slot     SlotInfo
	Task     TaskInfo
	User     UserInfo
}

// Result is a provider handler's verdict. Handlers absorb all external-call
// errors and report outcomes exclusively through Result.
type Result struct {
	Success          bool
	Message          string
	ConfirmationCode string
	Metadata         map[string]string
}

// HandlerFunc implements the multi-step booking protocol for one provider type.
type HandlerFunc func(ctx context.Context, bc Context) Result
