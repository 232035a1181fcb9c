package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/orbisplace/orbis-api/models"
)

type contextKey string

const userContextKey contextKey = "user"

var ErrNoUserInContext = errors.New("user claims not found in context")

// AuthUser is the identity taken from a verified access token.
type AuthUser struct {
	ID   string
	Role models.UserRole
}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, user AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func userFromContext(ctx context.Context) (AuthUser, bool) {
	user, ok := ctx.Value(userContextKey).(AuthUser)
	return user, ok && user.ID != ""
}

func GetUserIDFromContext(ctx context.Context) (string, error) {
	user, ok := userFromContext(ctx)
	if !ok {
		return "", ErrNoUserInContext
	}
	return user.ID, nil
}

// GetUserRoleFromContext returns the role claimed by the token. Authorization
// decisions re-read the role from the database.
func GetUserRoleFromContext(ctx context.Context) (models.UserRole, error) {
	user, ok := userFromContext(ctx)
	if !ok {
		return "", ErrNoUserInContext
	}
	return user.Role, nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
