package httphandler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/johnnycage/internal/application"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler is the HTTP driving adapter that serves the operational API.
type Handler struct {
	db     Pinger
	links  *application.LinkService
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(db Pinger, links *application.LinkService, logger *slog.Logger) *Handler {
	return &Handler{
		db:     db,
		links:  links,
		logger: logger,
		now:    time.Now,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. metrics serves /metrics.
func NewServeMux(h *Handler, metrics http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/links/{user_id}", h.GetLink)
	mux.Handle("GET /metrics", metrics)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health reports ok when the credential database answers a ping.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status: "ok",
		Time:   h.now().UTC().Format(time.RFC3339),
	}

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("health check failed", "error", err)
		resp.Status = "unavailable"
		resp.Database = "unreachable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.Database = "ok"
	writeJSON(w, http.StatusOK, resp)
}

// GetLink returns link metadata for a Discord user. The token itself is never
// exposed.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if !isValidSnowflake(userID) {
		writeError(w, http.StatusBadRequest, "user_id must be a Discord user id")
		return
	}

	rec, err := h.links.Status(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to look up link", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	pending := h.links.Pending(userID)
	if rec == nil && !pending {
		writeError(w, http.StatusNotFound, "no link record for user")
		return
	}

	writeJSON(w, http.StatusOK, toLinkResponse(userID, rec, pending))
}

// isValidSnowflake reports whether id looks like a Discord snowflake: 1 to 20
// decimal digits.
func isValidSnowflake(id string) bool {
	if id == "" || len(id) > 20 {
		return false
	}
	for _, ch := range id {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
