package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/lmor152/omnibooker-v2/internal/auth"
	"github.com/lmor152/omnibooker-v2/internal/booking"
	"github.com/lmor152/omnibooker-v2/internal/db"
)

type taskView struct {
	ID           int64              `json:"id"`
	SlotID       int64              `json:"booking_slot_id"`
	ScheduledAt  time.Time          `json:"scheduled_at"`
	AttemptAt    *time.Time         `json:"attempt_at,omitempty"`
	Status       booking.TaskStatus `json:"status"`
	ErrorMessage string             `json:"error_message,omitempty"`
	AttemptedAt  *time.Time         `json:"attempted_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

func toTaskView(t booking.Task) taskView {
	return taskView{
		ID:           t.ID,
		SlotID:       t.SlotID,
		ScheduledAt:  t.ScheduledAt,
		AttemptAt:    t.AttemptAt,
		Status:       t.Status,
		ErrorMessage: t.ErrorMessage,
		AttemptedAt:  t.AttemptedAt,
		CreatedAt:    t.CreatedAt,
	}
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	tasks, err := s.store.ListTasksByUser(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "task list failed")
		return
	}
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, toTaskView(t))
	}
	writeJSON(w, http.StatusOK, views)
}

// ownedTask loads a task after checking it belongs to the session user.
func (s *Server) ownedTask(w http.ResponseWriter, r *http.Request) (booking.Task, bool) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return booking.Task{}, false
	}
	task, err := s.store.GetTaskForUser(r.Context(), id, uid)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "booking task not found")
			return booking.Task{}, false
		}
		writeError(w, http.StatusInternalServerError, "task lookup failed")
		return booking.Task{}, false
	}
	return task, true
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.ownedTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toTaskView(task))
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.ownedTask(w, r)
	if !ok {
		return
	}
	cancelled, err := s.svc.CancelTask(r.Context(), task.ID)
	if err != nil {
		if errors.Is(err, booking.ErrNotPending) {
			writeError(w, http.StatusConflict, "only pending tasks can be cancelled")
			return
		}
		writeError(w, http.StatusInternalServerError, "task cancel failed")
		return
	}
	writeJSON(w, http.StatusOK, toTaskView(cancelled))
}

func (s *Server) handleReactivateTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.ownedTask(w, r)
	if !ok {
		return
	}
	reactivated, err := s.svc.ReactivateTask(r.Context(), task.ID)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrNotCancelled):
			writeError(w, http.StatusConflict, "only cancelled tasks can be reactivated")
		case errors.Is(err, booking.ErrOccurrencePast):
			writeError(w, http.StatusConflict, "cannot reactivate a task scheduled in the past")
		default:
			writeError(w, http.StatusInternalServerError, "task reactivation failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, toTaskView(reactivated))
}

func (s *Server) handleExecuteTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.ownedTask(w, r)
	if !ok {
		return
	}
	done, err := s.svc.ExecuteNow(r.Context(), task.ID)
	if err != nil {
		var execErr *booking.ExecutionError
		switch {
		case errors.Is(err, booking.ErrNotPending):
			writeError(w, http.StatusConflict, "only pending tasks can be executed")
		case errors.As(err, &execErr):
			writeError(w, http.StatusBadGateway, "%s", execErr.Message)
		default:
			writeError(w, http.StatusBadGateway, "%s", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, toTaskView(done))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.ownedTask(w, r)
	if !ok {
		return
	}
	if err := s.svc.DeleteTask(r.Context(), task.ID); err != nil {
		if errors.Is(err, booking.ErrNotTerminal) {
			writeError(w, http.StatusConflict, "only finished tasks can be deleted")
			return
		}
		writeError(w, http.StatusInternalServerError, "task delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
