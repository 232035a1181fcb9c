package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/utils"
)

// Authenticator verifies HS256 access tokens.
type Authenticator struct {
	secret []byte
	logger *slog.Logger
}

func NewAuthenticator(secret string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{secret: []byte(secret), logger: logger}
}

// tokenFromRequest reads the bearer token, falling back to the access_token
// query parameter used by websocket clients.
func tokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func (a *Authenticator) verify(r *http.Request) (AuthUser, bool) {
	token := tokenFromRequest(r)
	if token == "" {
		return AuthUser{}, false
	}
	claims, err := utils.ParseJWT(a.secret, token)
	if err != nil {
		a.logger.DebugContext(r.Context(), "rejected access token",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		return AuthUser{}, false
	}
	return AuthUser{ID: claims.UserID, Role: models.UserRole(claims.Role)}, true
}

// Authenticate rejects requests without a valid token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := a.verify(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "invalid or missing authentication token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// OptionalAuth attaches the user when a valid token is present and never rejects.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := a.verify(r); ok {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}
