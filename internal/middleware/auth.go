package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/bryanwahyu/bloodreport-ai/internal/domain/users"
)

type contextKey string

const UserKey contextKey = "user"

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*users.User, error)
}

// BearerAuth validates the JWT from the Authorization header and stores the user in context
func BearerAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(header, " ")
			token = strings.TrimSpace(token)
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				unauthorized(w, "Not authenticated")
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				unauthorized(w, "Could not validate credentials")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext extracts the authenticated user; nil when absent
func UserFromContext(ctx context.Context) *users.User {
	if u, ok := ctx.Value(UserKey).(*users.User); ok {
		return u
	}
	return nil
}

// WithUser is used by tests and internal callers to attach a user.
func WithUser(ctx context.Context, u *users.User) context.Context {
	return context.WithValue(ctx, UserKey, u)
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteError(w, http.StatusUnauthorized, detail)
}
