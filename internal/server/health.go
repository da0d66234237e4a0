package server

import (
	"database/sql"
	"net/http"
)

// HealthHandler reports service liveness and database reachability.
//
// Registered before the session middleware so probes never mint tenant users.
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler creates a HealthHandler. The database may be nil.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Routes returns the path patterns this handler serves.
func (h *HealthHandler) Routes() []string {
	return []string{"/health"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
