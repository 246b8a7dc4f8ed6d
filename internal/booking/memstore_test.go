package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lmor152/omnibooker-v2/internal/db"
)

// memStore is an in-memory Store used by the service, executor and worker
// tests. Semantics mirror the postgres implementation.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]User
	providers map[int64]Provider
	slots     map[int64]Slot
	tasks     map[int64]Task
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[int64]User),
		providers: make(map[int64]Provider),
		slots:     make(map[int64]Slot),
		tasks:     make(map[int64]Task),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addUser(u User) User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.id()
	m.users[u.ID] = u
	return u
}

func (m *memStore) addProvider(p Provider) Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	m.providers[p.ID] = p
	return p
}

func (m *memStore) addSlot(s Slot) Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	m.slots[s.ID] = s
	return s
}

func (m *memStore) putSlot(s Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[s.ID] = s
}

func (m *memStore) taskList() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) GetSlot(_ context.Context, id int64) (Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return Slot{}, db.ErrNotFound
	}
	return s, nil
}

func (m *memStore) GetTask(_ context.Context, id int64) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, db.ErrNotFound
	}
	return t, nil
}

func (m *memStore) InsertTask(_ context.Context, t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	t.CreatedAt = time.Now().UTC()
	m.tasks[t.ID] = *t
	return nil
}

func (m *memStore) DeleteTask(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memStore) LoadTaskRefs(_ context.Context, taskID int64) (TaskRefs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return TaskRefs{}, db.ErrNotFound
	}
	s, ok := m.slots[t.SlotID]
	if !ok {
		return TaskRefs{}, &IntegrityError{Missing: "booking slot"}
	}
	p, ok := m.providers[s.ProviderID]
	if !ok {
		return TaskRefs{}, &IntegrityError{Missing: "provider"}
	}
	u, ok := m.users[s.UserID]
	if !ok {
		return TaskRefs{}, &IntegrityError{Missing: "slot owner"}
	}
	return TaskRefs{Task: t, Slot: s, Provider: p, User: u}, nil
}

func (m *memStore) DueTasks(_ context.Context, now time.Time, limit int) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []Task
	for _, t := range m.tasks {
		if t.Status != StatusPending {
			continue
		}
		if t.AttemptAt == nil || !t.AttemptAt.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := due[i].AttemptAt, due[j].AttemptAt
		if a == nil {
			return true
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *memStore) PendingFutureTasks(_ context.Context, slotID int64, now time.Time) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Task
	for _, t := range m.tasks {
		if t.SlotID == slotID && t.Status == StatusPending && !t.ScheduledAt.Before(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (m *memStore) NonPendingFutureOccurrences(_ context.Context, slotID int64, now time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []time.Time
	for _, t := range m.tasks {
		if t.SlotID == slotID && t.Status != StatusPending && t.ScheduledAt.After(now) {
			out = append(out, t.ScheduledAt)
		}
	}
	return out, nil
}

func (m *memStore) SetTaskAttempt(_ context.Context, taskID int64, attemptAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return db.ErrNotFound
	}
	t.AttemptAt = &attemptAt
	m.tasks[taskID] = t
	return nil
}

func (m *memStore) ClaimTask(_ context.Context, taskID int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.Status != StatusPending {
		return false, nil
	}
	t.Status = StatusProcessing
	t.AttemptedAt = &at
	m.tasks[taskID] = t
	return true, nil
}

func (m *memStore) MarkTask(_ context.Context, taskID int64, status TaskStatus, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return db.ErrNotFound
	}
	t.Status = status
	t.ErrorMessage = message
	m.tasks[taskID] = t
	return nil
}

func (m *memStore) MarkTaskSuccess(_ context.Context, taskID int64, attemptedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return db.ErrNotFound
	}
	t.Status = StatusSuccess
	t.ErrorMessage = ""
	if t.AttemptedAt == nil {
		t.AttemptedAt = &attemptedAt
	}
	m.tasks[taskID] = t
	return nil
}

func (m *memStore) DeletePendingTasks(_ context.Context, slotID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tasks {
		if t.SlotID == slotID && t.Status == StatusPending {
			delete(m.tasks, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) CancelPendingTasks(_ context.Context, slotID int64, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tasks {
		if t.SlotID == slotID && t.Status == StatusPending {
			t.Status = StatusCancelled
			t.ErrorMessage = message
			m.tasks[id] = t
			n++
		}
	}
	return n, nil
}
