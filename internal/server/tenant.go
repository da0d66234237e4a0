package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/repositories"
	"github.com/desertthunder/portage/internal/shared"
)

// SessionCookie is the name of the signed tenant session cookie.
const SessionCookie = "portage_session"

type contextKey string

const userContextKey contextKey = "portage.user"

// WithUser returns a context carrying the session's resolved user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFrom extracts the session user from a request context.
func UserFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}

// TenantMiddleware resolves the tenant user from the signed session cookie
// and stores it on the request context.
//
// A request without a valid session gets a fresh user row and a new cookie,
// so the first visit is enough to start importing. The cookie value is the
// user id plus an HMAC-SHA256 signature keyed on the server secret; a
// tampered or stale cookie simply produces a new tenant.
func TenantMiddleware(users *repositories.UserRepository, secret string, logger *log.Logger) Middleware {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := sessionUser(users, secret, r)
			if user == nil {
				created, err := createTenant(users)
				if err != nil {
					logger.Error("failed to create tenant user", "error", err)
					writeError(w, http.StatusInternalServerError, "internal error")
					return
				}

				user = created
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sessionValue(secret, user.ID()),
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// sessionUser loads the user named by a valid session cookie, or nil.
func sessionUser(users *repositories.UserRepository, secret string, r *http.Request) *models.User {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}

	id, ok := parseSession(secret, cookie.Value)
	if !ok {
		return nil
	}

	user, err := users.Get(id)
	if err != nil {
		return nil
	}

	return user
}

// createTenant inserts a user row for a brand-new session.
func createTenant(users *repositories.UserRepository) (*models.User, error) {
	username := "guest-" + shared.GenerateID()[:8]

	user := models.NewUser(0, username, "Guest")
	if err := users.Create(user); err != nil {
		return nil, err
	}

	return user, nil
}

// sessionValue renders a signed cookie value: "<user id>.<signature>".
func sessionValue(secret, userID string) string {
	return userID + "." + signSession(secret, userID)
}

// parseSession splits and verifies a cookie value, returning the user id.
func parseSession(secret, value string) (string, bool) {
	idx := strings.LastIndex(value, ".")
	if idx <= 0 {
		return "", false
	}

	id, signature := value[:idx], value[idx+1:]
	if !hmac.Equal([]byte(signature), []byte(signSession(secret, id))) {
		return "", false
	}

	return id, true
}

// signSession computes the hex HMAC-SHA256 signature for a user id.
func signSession(secret, userID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}
