package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lmor152/omnibooker-v2/internal/auth"
	"github.com/lmor152/omnibooker-v2/internal/booking"
	"github.com/lmor152/omnibooker-v2/internal/db"
)

type slotRequest struct {
	ProviderID int64  `json:"provider_id"`
	Name       string `json:"name"`

	Frequency  string `json:"frequency"`
	DayOfWeek  *int   `json:"day_of_week"`
	DayOfMonth *int   `json:"day_of_month"`
	TimeOfDay  string `json:"time_of_day"`
	Timezone   string `json:"timezone"`

	DurationMinutes int    `json:"duration_minutes"`
	Facility        string `json:"facility"`
	Active          *bool  `json:"is_active"`

	AttemptStrategy   string `json:"attempt_strategy"`
	OffsetDays        int    `json:"offset_days"`
	OffsetHours       int    `json:"offset_hours"`
	OffsetMinutes     int    `json:"offset_minutes"`
	ReleaseDaysBefore int    `json:"release_days_before"`
	ReleaseTime       string `json:"release_time"`

	ProviderOptions map[string]any `json:"provider_options"`
}

type slotView struct {
	ID         int64  `json:"id"`
	ProviderID int64  `json:"provider_id"`
	Name       string `json:"name"`

	Frequency  booking.Frequency `json:"frequency"`
	DayOfWeek  *int              `json:"day_of_week,omitempty"`
	DayOfMonth *int              `json:"day_of_month,omitempty"`
	TimeOfDay  string            `json:"time_of_day"`
	Timezone   string            `json:"timezone"`

	DurationMinutes int    `json:"duration_minutes"`
	Facility        string `json:"facility,omitempty"`
	Active          bool   `json:"is_active"`

	AttemptStrategy   booking.AttemptStrategy `json:"attempt_strategy"`
	OffsetDays        int                     `json:"offset_days"`
	OffsetHours       int                     `json:"offset_hours"`
	OffsetMinutes     int                     `json:"offset_minutes"`
	ReleaseDaysBefore int                     `json:"release_days_before"`
	ReleaseTime       string                  `json:"release_time,omitempty"`

	ProviderOptions map[string]any `json:"provider_options,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func toSlotView(sl booking.Slot) slotView {
	return slotView{
		ID:                sl.ID,
		ProviderID:        sl.ProviderID,
		Name:              sl.Name,
		Frequency:         sl.Frequency,
		DayOfWeek:         sl.DayOfWeek,
		DayOfMonth:        sl.DayOfMonth,
		TimeOfDay:         sl.TimeOfDay,
		Timezone:          sl.Timezone,
		DurationMinutes:   sl.DurationMinutes,
		Facility:          sl.Facility,
		Active:            sl.Active,
		AttemptStrategy:   sl.AttemptStrategy,
		OffsetDays:        sl.OffsetDays,
		OffsetHours:       sl.OffsetHours,
		OffsetMinutes:     sl.OffsetMinutes,
		ReleaseDaysBefore: sl.ReleaseDaysBefore,
		ReleaseTime:       sl.ReleaseTime,
		ProviderOptions:   sl.ProviderOptions,
		CreatedAt:         sl.CreatedAt,
	}
}

// applyRequest copies a full slot payload onto a slot record. PUT replaces
// the whole rule, not individual fields.
func applyRequest(sl *booking.Slot, req slotRequest) {
	sl.ProviderID = req.ProviderID
	sl.Name = req.Name
	sl.Frequency = booking.Frequency(req.Frequency)
	sl.DayOfWeek = req.DayOfWeek
	sl.DayOfMonth = req.DayOfMonth
	sl.TimeOfDay = req.TimeOfDay
	sl.Timezone = req.Timezone
	sl.DurationMinutes = req.DurationMinutes
	sl.Facility = req.Facility
	sl.Active = req.Active == nil || *req.Active
	sl.AttemptStrategy = booking.AttemptStrategy(req.AttemptStrategy)
	sl.OffsetDays = req.OffsetDays
	sl.OffsetHours = req.OffsetHours
	sl.OffsetMinutes = req.OffsetMinutes
	sl.ReleaseDaysBefore = req.ReleaseDaysBefore
	sl.ReleaseTime = req.ReleaseTime
	sl.ProviderOptions = req.ProviderOptions
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	slots, err := s.store.ListSlotsByUser(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "slot list failed")
		return
	}
	views := make([]slotView, 0, len(slots))
	for _, sl := range slots {
		views = append(views, toSlotView(sl))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	var req slotRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, err := s.store.GetProviderForUser(r.Context(), req.ProviderID, uid); err != nil {
		writeError(w, http.StatusBadRequest, "provider not found")
		return
	}

	var sl booking.Slot
	sl.UserID = uid
	applyRequest(&sl, req)
	if err := booking.ValidateSlot(sl); err != nil {
		writeError(w, http.StatusBadRequest, "%s", err)
		return
	}
	if err := s.store.CreateSlot(r.Context(), &sl); err != nil {
		writeError(w, http.StatusInternalServerError, "slot create failed")
		return
	}
	if sl.Active {
		if err := s.svc.SyncPendingTasks(r.Context(), sl, s.svc.QueueDepth(), true); err != nil {
			s.log.Error().Err(err).Int64("slot_id", sl.ID).Msg("initial queue sync failed")
		}
	}
	writeJSON(w, http.StatusCreated, toSlotView(sl))
}

func (s *Server) handleUpdateSlot(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}
	var req slotRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sl, err := s.store.GetSlotForUser(r.Context(), id, uid)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "booking slot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "slot lookup failed")
		return
	}

	if req.ProviderID != sl.ProviderID {
		if _, err := s.store.GetProviderForUser(r.Context(), req.ProviderID, uid); err != nil {
			writeError(w, http.StatusBadRequest, "new provider not found")
			return
		}
	}

	wasActive := sl.Active
	applyRequest(&sl, req)
	if err := booking.ValidateSlot(sl); err != nil {
		writeError(w, http.StatusBadRequest, "%s", err)
		return
	}
	if err := s.store.UpdateSlot(r.Context(), &sl); err != nil {
		writeError(w, http.StatusInternalServerError, "slot update failed")
		return
	}

	switch {
	case wasActive && !sl.Active:
		if _, err := s.svc.DeactivateSlot(r.Context(), sl); err != nil {
			s.log.Error().Err(err).Int64("slot_id", sl.ID).Msg("pending task cancellation failed")
		}
	case sl.Active:
		if err := s.svc.SyncPendingTasks(r.Context(), sl, s.svc.QueueDepth(), false); err != nil {
			s.log.Error().Err(err).Int64("slot_id", sl.ID).Msg("queue sync failed")
		}
	}
	writeJSON(w, http.StatusOK, toSlotView(sl))
}

func (s *Server) handleDeleteSlot(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}
	if err := s.store.DeleteSlot(r.Context(), id, uid); err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "booking slot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "slot delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResyncSlot(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	count := s.svc.QueueDepth()
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 12 {
			writeError(w, http.StatusBadRequest, "count must be between 1 and 12")
			return
		}
		count = n
	}

	sl, err := s.store.GetSlotForUser(r.Context(), id, uid)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking slot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "slot lookup failed")
		return
	}

	if err := s.svc.SyncPendingTasks(r.Context(), sl, count, true); err != nil {
		writeError(w, http.StatusInternalServerError, "queue sync failed")
		return
	}
	writeJSON(w, http.StatusOK, toSlotView(sl))
}
