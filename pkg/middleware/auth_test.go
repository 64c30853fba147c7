package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/kotoba/pkg/contextkeys"
	"github.com/platinummonkey/kotoba/pkg/sso"
	"github.com/platinummonkey/kotoba/pkg/usage"
	"github.com/platinummonkey/kotoba/pkg/users"
)

type fakeSessions struct {
	sessions map[string]*sso.Session
	err      error
}

func (f *fakeSessions) GetSession(ctx context.Context, sessionID string) (*sso.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, sso.ErrSessionNotFound
	}
	return session, nil
}

type fakeUsers struct {
	users map[string]*users.User
	err   error
	calls int
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*users.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return user, nil
}

func newAuthFixture() (*SessionAuth, *fakeSessions, *fakeUsers) {
	sessions := &fakeSessions{sessions: map[string]*sso.Session{
		"sess-1": {ID: "sess-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)},
		"sess-2": {ID: "sess-2", UserID: "deleted-user", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	loader := &fakeUsers{users: map[string]*users.User{
		"user-1": {ID: "user-1", Email: "aiko@example.com", Plan: usage.PlanPremium},
	}}
	return NewSessionAuth(sessions, loader, false), sessions, loader
}

func requestWithSession(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/usage", nil)
	if id != "" {
		req.AddCookie(&http.Cookie{Name: sso.SessionCookieName, Value: id})
	}
	return req
}

func TestSessionAuth_SetsContext(t *testing.T) {
	auth, _, _ := newAuthFixture()

	var (
		gotUser    *users.User
		gotSession *sso.Session
		gotUserID  string
	)
	handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserFromContext(r.Context())
		gotSession, _ = SessionFromContext(r.Context())
		gotUserID = contextkeys.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithSession("sess-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotUser)
	assert.Equal(t, usage.PlanPremium, gotUser.Plan)
	require.NotNil(t, gotSession)
	assert.Equal(t, "sess-1", gotSession.ID)
	assert.Equal(t, "user-1", gotUserID)
}

func TestSessionAuth_ReloadsUserEveryRequest(t *testing.T) {
	auth, _, loader := newAuthFixture()
	handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestWithSession("sess-1"))
	}

	assert.Equal(t, 3, loader.calls)
}

func TestSessionAuth_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		cookie  string
		details string
	}{
		{"no cookie", "", "sign in required"},
		{"unknown session", "sess-unknown", "session expired or invalid"},
		{"deleted user", "sess-2", "session expired or invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, _, _ := newAuthFixture()
			handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, requestWithSession(tt.cookie))

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error":"unauthorized","details":"`+tt.details+`"}`, w.Body.String())
		})
	}
}

func TestSessionAuth_StoreErrors(t *testing.T) {
	t.Run("session store", func(t *testing.T) {
		auth, sessions, _ := newAuthFixture()
		sessions.err = errors.New("connection refused")
		handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestWithSession("sess-1"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("user store in dev mode", func(t *testing.T) {
		sessions := &fakeSessions{sessions: map[string]*sso.Session{"sess-1": {ID: "sess-1", UserID: "user-1"}}}
		auth := NewSessionAuth(sessions, &fakeUsers{err: errors.New("connection refused")}, true)
		handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestWithSession("sess-1"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "connection refused")
	})
}

func TestUserFromContext_Missing(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	_, ok = SessionFromContext(contextkeys.WithSession(context.Background(), "wrong type"))
	assert.False(t, ok)
}
