package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lmor152/omnibooker-v2/internal/auth"
	"github.com/lmor152/omnibooker-v2/internal/booking"
	"github.com/lmor152/omnibooker-v2/internal/db"
)

type providerRequest struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Credentials map[string]any `json:"credentials"`
}

// providerView never echoes credentials back; they are write-only through
// the API and sealed at rest.
type providerView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func toProviderView(p booking.Provider) providerView {
	return providerView{ID: p.ID, Name: p.Name, Type: p.Type, CreatedAt: p.CreatedAt}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	providers, err := s.store.ListProvidersByUser(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "provider list failed")
		return
	}
	views := make([]providerView, 0, len(providers))
	for _, p := range providers {
		views = append(views, toProviderView(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	var req providerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if req.Name == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "name and type are required")
		return
	}

	p := booking.Provider{
		UserID:      uid,
		Name:        req.Name,
		Type:        req.Type,
		Credentials: req.Credentials,
	}
	if err := s.store.CreateProvider(r.Context(), &p); err != nil {
		writeError(w, http.StatusInternalServerError, "provider create failed")
		return
	}
	writeJSON(w, http.StatusCreated, toProviderView(p))
}

func (s *Server) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid provider id")
		return
	}
	var req providerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing, err := s.store.GetProviderForUser(r.Context(), id, uid)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "provider lookup failed")
		return
	}

	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Type != "" {
		existing.Type = strings.ToLower(strings.TrimSpace(req.Type))
	}
	if req.Credentials != nil {
		existing.Credentials = req.Credentials
	}
	if err := s.store.UpdateProvider(r.Context(), &existing); err != nil {
		writeError(w, http.StatusInternalServerError, "provider update failed")
		return
	}
	writeJSON(w, http.StatusOK, toProviderView(existing))
}

func (s *Server) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid provider id")
		return
	}
	if err := s.store.DeleteProvider(r.Context(), id, uid); err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "provider delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
