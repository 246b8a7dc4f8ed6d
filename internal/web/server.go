// Package web serves the JSON API: session auth, provider and slot CRUD, and
// task state-machine actions.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lmor152/omnibooker-v2/internal/auth"
	"github.com/lmor152/omnibooker-v2/internal/booking"
	"github.com/lmor152/omnibooker-v2/internal/metrics"
	"github.com/lmor152/omnibooker-v2/internal/store"
)

type Server struct {
	store    *store.Store
	svc      *booking.Service
	sessions *auth.Sessions

	// loginLimiter throttles password checks across all clients; bcrypt is
	// expensive and login is the only unauthenticated write.
	loginLimiter *rate.Limiter

	log zerolog.Logger
}

func NewServer(st *store.Store, svc *booking.Service, sessions *auth.Sessions, log zerolog.Logger) *Server {
	return &Server{
		store:        st,
		svc:          svc,
		sessions:     sessions,
		loginLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		log:          log.With().Str("component", "web").Logger(),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.Handle("GET /auth/me", s.protected(s.handleMe))

	mux.Handle("GET /providers", s.protected(s.handleListProviders))
	mux.Handle("POST /providers", s.protected(s.handleCreateProvider))
	mux.Handle("PUT /providers/{id}", s.protected(s.handleUpdateProvider))
	mux.Handle("DELETE /providers/{id}", s.protected(s.handleDeleteProvider))

	mux.Handle("GET /booking-slots", s.protected(s.handleListSlots))
	mux.Handle("POST /booking-slots", s.protected(s.handleCreateSlot))
	mux.Handle("PUT /booking-slots/{id}", s.protected(s.handleUpdateSlot))
	mux.Handle("DELETE /booking-slots/{id}", s.protected(s.handleDeleteSlot))
	mux.Handle("POST /booking-slots/{id}/resync", s.protected(s.handleResyncSlot))

	mux.Handle("GET /booking-tasks", s.protected(s.handleListTasks))
	mux.Handle("GET /booking-tasks/{id}", s.protected(s.handleGetTask))
	mux.Handle("POST /booking-tasks/{id}/cancel", s.protected(s.handleCancelTask))
	mux.Handle("POST /booking-tasks/{id}/reactivate", s.protected(s.handleReactivateTask))
	mux.Handle("POST /booking-tasks/{id}/execute", s.protected(s.handleExecuteTask))
	mux.Handle("DELETE /booking-tasks/{id}", s.protected(s.handleDeleteTask))

	return s.instrument(mux)
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return s.sessions.RequireAuth(h)
}

// Start serves until the context is cancelled, then drains for up to five
// seconds.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument tags every request with an id, logs it, and feeds the request
// counter.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		metrics.HTTPRequest(r.Method, fmt.Sprintf("%dxx", rec.status/100))
		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
