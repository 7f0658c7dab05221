// Package api is the HTTP surface of the reservation service. Every route
// under /api/v1 speaks JSON; authenticated routes take the session token in
// the X-Session-Token header.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"coophours/internal/config"
	"coophours/internal/domain"
	"coophours/internal/export"
	"coophours/internal/metrics"
	"coophours/internal/models"
	"coophours/internal/service"
	"coophours/internal/session"

	"github.com/rs/zerolog"
)

// ExportScheduler queues archival snapshot jobs for the export worker.
type ExportScheduler interface {
	Enqueue(ctx context.Context, equipmentID int64, requestedBy string) (*models.ExportJob, error)
}

type Server struct {
	cfg          *config.Config
	sessions     *session.Manager
	reservations *service.ReservationService
	users        *service.UserService
	exporter     *export.Exporter
	snapshots    ExportScheduler
	logger       *zerolog.Logger
	server       *http.Server
	limiter      *rateLimiter
}

func NewServer(cfg *config.Config, sessions *session.Manager, reservations *service.ReservationService, users *service.UserService, exporter *export.Exporter, snapshots ExportScheduler, logger *zerolog.Logger) *Server {
	s := &Server{
		cfg:          cfg,
		sessions:     sessions,
		reservations: reservations,
		users:        users,
		exporter:     exporter,
		snapshots:    snapshots,
		logger:       logger,
		limiter:      newRateLimiter(cfg.RateLimit),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/v1/equipment", s.handleListEquipment)
	mux.HandleFunc("GET /api/v1/equipment/{id}/reservations", s.handleListReservations)
	mux.HandleFunc("POST /api/v1/equipment/{id}/reservations", s.handleCreateReservation)
	mux.HandleFunc("GET /api/v1/equipment/{id}/suggested-start", s.handleSuggestedStart)
	mux.HandleFunc("GET /api/v1/equipment/{id}/export", s.handleExport)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.loggingMiddleware(s.rateLimitMiddleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the full middleware chain for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeDomainError maps the error taxonomy onto HTTP status codes. Unknown
// errors are logged and surface as an opaque 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInterval):
		writeError(w, http.StatusUnprocessableEntity, "end hour must be greater than start hour")
	case errors.Is(err, domain.ErrConflict):
		metrics.IncReservationConflict()
		writeError(w, http.StatusConflict, "interval overlaps an existing reservation")
	case errors.Is(err, domain.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username is already taken")
	case errors.Is(err, domain.ErrSessionExpired):
		metrics.IncSessionExpired()
		writeError(w, http.StatusUnauthorized, "session expired")
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrStorageUnavailable):
		s.logger.Error().Err(err).Msg("storage unavailable")
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		s.logger.Error().Err(err).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
