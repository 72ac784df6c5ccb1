package handlers

import (
	"context"
	"net/http"
)

// Pinger reports liveness of a store connection.
type Pinger interface {
	IsAlive(ctx context.Context) bool
}

// CountingStore is the slice of the metadata store the stats endpoint needs.
type CountingStore interface {
	Pinger
	CountUsers(ctx context.Context) (int64, error)
	CountFiles(ctx context.Context) (int64, error)
}

// AppHandler serves the service health and stats endpoints.
type AppHandler struct {
	redis Pinger
	db    CountingStore
}

// NewAppHandler creates an app handler.
func NewAppHandler(redis Pinger, db CountingStore) *AppHandler {
	return &AppHandler{redis: redis, db: db}
}

// Status handles GET /status, reporting store liveness.
func (h *AppHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, map[string]bool{
		"redis": h.redis.IsAlive(ctx),
		"db":    h.db.IsAlive(ctx),
	})
}

// Stats handles GET /stats, reporting user and file counts.
func (h *AppHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "app.stats")
	defer span.End()

	users, err := h.db.CountUsers(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	files, err := h.db.CountFiles(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"users": users,
		"files": files,
	})
}
