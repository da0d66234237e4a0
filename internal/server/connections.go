package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/repositories"
	"github.com/desertthunder/portage/internal/services"
	"github.com/desertthunder/portage/internal/shared"
)

// ConnectionsHandler serves the provider connection API: the connected
// status map, raw credential upserts, and the Qobuz email/password login.
type ConnectionsHandler struct {
	connections *repositories.ConnectionRepository
	config      *shared.Config
	logger      *log.Logger
}

// NewConnectionsHandler creates a ConnectionsHandler backed by the given store.
func NewConnectionsHandler(connections *repositories.ConnectionRepository, config *shared.Config, logger *log.Logger) *ConnectionsHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ConnectionsHandler{connections: connections, config: config, logger: logger}
}

// Routes returns the path patterns this handler serves.
func (h *ConnectionsHandler) Routes() []string {
	return []string{"/api/connections", "/api/connections/"}
}

// ServeHTTP dispatches on method and sub-path:
//
//	GET  /api/connections              connected-provider map
//	PUT  /api/connections/{provider}   store or rotate a credential blob
//	POST /api/connections/qobuz/login  exchange email/password for a token
func (h *ConnectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no session")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/connections"), "/")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.list(w, user)
	case rest == "qobuz/login" && r.Method == http.MethodPost:
		h.qobuzLogin(w, r, user)
	case rest != "" && !strings.Contains(rest, "/") && r.Method == http.MethodPut:
		h.upsert(w, r, user, rest)
	case rest == "" || rest == "qobuz/login" || !strings.Contains(rest, "/"):
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// list reports which providers the user has stored credentials for.
func (h *ConnectionsHandler) list(w http.ResponseWriter, user *models.User) {
	providers := []models.Provider{
		models.ProviderSpotify,
		models.ProviderYTMusic,
		models.ProviderTidal,
		models.ProviderQobuz,
	}

	connected := map[string]bool{}
	for _, provider := range providers {
		_, err := h.connections.GetByUserProvider(user.ID(), provider)
		connected[provider.String()] = err == nil
	}

	writeJSON(w, http.StatusOK, map[string]any{"connections": connected})
}

// upsert stores or rotates the opaque credential blob for a provider.
func (h *ConnectionsHandler) upsert(w http.ResponseWriter, r *http.Request, user *models.User, name string) {
	provider, err := models.ParseProvider(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var credentials map[string]string
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(credentials) == 0 {
		writeError(w, http.StatusBadRequest, "credentials are required")
		return
	}

	if _, err := h.connections.Upsert(user.ID(), provider, credentials); err != nil {
		writeStoreError(w, err)
		return
	}

	h.logger.Info("stored provider credentials", "user_id", user.ID(), "provider", provider.String())
	writeJSON(w, http.StatusOK, map[string]any{"provider": provider.String(), "connected": true})
}

type qobuzLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// qobuzLogin exchanges an email/password pair for a Qobuz user auth token
// and stores it as the user's Qobuz connection.
func (h *ConnectionsHandler) qobuzLogin(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req qobuzLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	credentials := map[string]string{"app_id": h.config.Credentials.Qobuz.AppID}
	if h.config.Credentials.Qobuz.BaseURL != "" {
		credentials["base_url"] = h.config.Credentials.Qobuz.BaseURL
	}

	service, err := services.NewQobuzService(credentials)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	token, account, err := service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("qobuz login failed", "user_id", user.ID(), "error", err)
		writeStoreError(w, err)
		return
	}

	credentials["user_auth_token"] = token
	if _, err := h.connections.Upsert(user.ID(), models.ProviderQobuz, credentials); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider":  models.ProviderQobuz.String(),
		"connected": true,
		"login":     account.Login,
	})
}
