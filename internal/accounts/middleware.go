package accounts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

type ctxKey struct{}

// localAdmin is the caller every request runs as when auth is disabled.
var localAdmin = User{
	ID:     "local-admin",
	Email:  "admin@localhost",
	Name:   "Local Admin",
	Role:   RoleAdmin,
	Status: StatusActive,
}

// Guard authorizes requests by bearer token and role.
type Guard struct {
	store    *Store
	disabled bool
}

// NewGuard creates a Guard resolving tokens against store.
func NewGuard(store *Store) *Guard {
	return &Guard{store: store}
}

// NoAuth returns a Guard that admits every request as a built-in admin.
func NoAuth() *Guard {
	return &Guard{disabled: true}
}

// Require returns middleware rejecting callers below min. It answers 401
// without a valid token and 403 when the role is insufficient.
func (g *Guard) Require(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.disabled {
				u := localAdmin
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &u)))
				return
			}

			token := BearerToken(r)
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
				return
			}
			u, err := g.store.ResolveToken(r.Context(), token)
			if err != nil {
				if !errors.Is(err, ErrInvalidToken) {
					slog.Error("accounts: resolving token", "error", err)
				}
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": ErrInvalidToken.Error()})
				return
			}
			if !u.Role.Allows(min) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "requires " + string(min) + " role"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the authenticated caller, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*User)
	return u, ok && u != nil
}

// ActorID names the caller for audit entries.
func ActorID(ctx context.Context) string {
	if u, ok := UserFromContext(ctx); ok {
		return u.ID
	}
	return "anonymous"
}

// SessionCookie carries the token for browser sessions on console pages.
const SessionCookie = "j1939c_session"

// BearerToken extracts the token from an Authorization header, falling
// back to the session cookie.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) >= 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
