package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/kotoba/pkg/contextkeys"
	"github.com/platinummonkey/kotoba/pkg/httputil"
	"github.com/platinummonkey/kotoba/pkg/observability"
	"github.com/platinummonkey/kotoba/pkg/sso"
	"github.com/platinummonkey/kotoba/pkg/users"
)

// SessionStore resolves session cookies
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*sso.Session, error)
}

// UserLoader loads the account behind a session
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*users.User, error)
}

// SessionAuth authenticates requests by the session cookie. The user row is
// loaded on every request so plan changes made by billing webhooks apply
// immediately.
type SessionAuth struct {
	sessions    SessionStore
	users       UserLoader
	exposeError bool
}

// NewSessionAuth creates the session authentication middleware
func NewSessionAuth(sessions SessionStore, users UserLoader, exposeError bool) *SessionAuth {
	return &SessionAuth{
		sessions:    sessions,
		users:       users,
		exposeError: exposeError,
	}
}

// Handler wraps an HTTP handler with session authentication
func (m *SessionAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		cookie, err := r.Cookie(sso.SessionCookieName)
		if err != nil || cookie.Value == "" {
			httputil.WriteUnauthorized(w, "sign in required")
			return
		}

		session, err := m.sessions.GetSession(ctx, cookie.Value)
		if errors.Is(err, sso.ErrSessionNotFound) {
			httputil.WriteUnauthorized(w, "session expired or invalid")
			return
		}
		if err != nil {
			observability.FromContext(ctx).WithError(err).Error("session lookup failed")
			httputil.WriteInternalError(w, err, m.exposeError)
			return
		}

		user, err := m.users.GetByID(ctx, session.UserID)
		if errors.Is(err, users.ErrNotFound) {
			httputil.WriteUnauthorized(w, "session expired or invalid")
			return
		}
		if err != nil {
			observability.FromContext(ctx).WithError(err).Error("user lookup failed")
			httputil.WriteInternalError(w, err, m.exposeError)
			return
		}

		ctx = contextkeys.WithUser(ctx, user)
		ctx = contextkeys.WithSession(ctx, session)
		ctx = contextkeys.WithUserID(ctx, user.ID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the signed-in user set by SessionAuth
func UserFromContext(ctx context.Context) (*users.User, bool) {
	user, ok := ctx.Value(contextkeys.UserKey).(*users.User)
	return user, ok && user != nil
}

// SessionFromContext returns the session set by SessionAuth
func SessionFromContext(ctx context.Context) (*sso.Session, bool) {
	session, ok := ctx.Value(contextkeys.SessionKey).(*sso.Session)
	return session, ok && session != nil
}
