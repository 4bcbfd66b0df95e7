package http

import (
	"context"
	"net/http"
	"time"

	"github.com/ticketpulse/ticketpulse/pkg/logger"
)

// healthCheckTimeout bounds the database ping
const healthCheckTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HealthHandler reports process and database liveness
type HealthHandler struct {
	db      Pinger
	version string
	logger  logger.Logger
}

// NewHealthHandler creates a new health handler. A nil db skips the ping.
func NewHealthHandler(db Pinger, version string, logger logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		version: version,
		logger:  logger,
	}
}

// RegisterRoutes registers the health route
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := h.db.PingContext(ctx); err != nil {
			h.logger.WithField("error", err.Error()).Error("Health check database ping failed")
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Version: h.version})
			return
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}
