package sso

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/kotoba/pkg/observability"
)

var sessionRowColumns = []string{"id", "user_id", "provider", "created_at", "expires_at"}

func fixedNow() time.Time {
	return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
}

func newMockSessionManager(t *testing.T) (*SessionManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sm := NewSessionManager(db, SessionConfig{}, observability.NopLogger())
	sm.now = fixedNow
	return sm, mock
}

func TestNewSessionManager_Defaults(t *testing.T) {
	sm, _ := newMockSessionManager(t)
	assert.Equal(t, 30*24*time.Hour, sm.TTL())
}

func TestSessionManager_CreateThenGetUsesCache(t *testing.T) {
	sm, mock := newMockSessionManager(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(sqlmock.AnyArg(), "user-1", "github", fixedNow(), fixedNow().Add(DefaultSessionTTL)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := sm.CreateSession(ctx, "user-1", ProviderGitHub)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, fixedNow().Add(DefaultSessionTTL), session.ExpiresAt)

	got, err := sm.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	// no SELECT expected: the lookup was served from the cache
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionManager_GetFromDatabase(t *testing.T) {
	sm, mock := newMockSessionManager(t)
	ctx := context.Background()
	created := fixedNow().Add(-time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE id = \\$1 AND expires_at > NOW\\(\\)").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow("sess-1", "user-1", "google", created, created.Add(DefaultSessionTTL)))

	session, err := sm.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, session.Provider)

	_, err = sm.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionManager_GetMissing(t *testing.T) {
	sm, mock := newMockSessionManager(t)

	mock.ExpectQuery("SELECT (.+) FROM sessions").
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := sm.GetSession(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = sm.GetSession(context.Background(), "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionManager_GetDatabaseError(t *testing.T) {
	sm, mock := newMockSessionManager(t)

	mock.ExpectQuery("SELECT (.+) FROM sessions").WillReturnError(errors.New("connection refused"))

	_, err := sm.GetSession(context.Background(), "sess-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionManager_CachedSessionExpires(t *testing.T) {
	sm, mock := newMockSessionManager(t)
	sm.cache.Add("sess-old", &Session{ID: "sess-old", UserID: "user-1", ExpiresAt: fixedNow().Add(-time.Second)})

	mock.ExpectExec("DELETE FROM sessions WHERE id = \\$1").
		WithArgs("sess-old").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := sm.GetSession(context.Background(), "sess-old")

	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, time.Second, 10*time.Millisecond)
}

func TestSessionManager_DeleteAndCleanup(t *testing.T) {
	sm, mock := newMockSessionManager(t)
	ctx := context.Background()
	sm.cache.Add("sess-1", &Session{ID: "sess-1", ExpiresAt: fixedNow().Add(time.Hour)})

	mock.ExpectExec("DELETE FROM sessions WHERE id = \\$1").
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, sm.DeleteSession(ctx, "sess-1"))
	_, cached := sm.cache.Get("sess-1")
	assert.False(t, cached)

	mock.ExpectExec("DELETE FROM sessions WHERE expires_at <= NOW\\(\\)").
		WillReturnResult(sqlmock.NewResult(0, 4))
	removed, err := sm.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// newSharedSessionManagers returns two managers over one database and one
// Redis, standing in for two API instances
func newSharedSessionManagers(t *testing.T) (*SessionManager, *SessionManager, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	newManager := func() *SessionManager {
		sm := NewSessionManager(db, SessionConfig{}, observability.NopLogger()).WithRevocations(client)
		sm.now = fixedNow
		return sm
	}
	return newManager(), newManager(), mock, mr
}

func TestSessionManager_LogoutEvictsOtherInstances(t *testing.T) {
	first, second, mock, mr := newSharedSessionManagers(t)
	ctx := context.Background()
	created := fixedNow().Add(-time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM sessions").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow("sess-1", "user-1", "github", created, created.Add(DefaultSessionTTL)))
	mock.ExpectExec("DELETE FROM sessions WHERE id = \\$1").
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := second.GetSession(ctx, "sess-1")
	require.NoError(t, err)

	require.NoError(t, first.DeleteSession(ctx, "sess-1"))
	assert.True(t, mr.Exists(revokedKeyPrefix+"sess-1"))
	assert.Equal(t, DefaultSessionCacheTTL, mr.TTL(revokedKeyPrefix+"sess-1"))

	// cached on the second instance, but the logout marker wins
	_, err = second.GetSession(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionManager_RevocationCheckFallsBackToDatabase(t *testing.T) {
	_, sm, mock, mr := newSharedSessionManagers(t)
	ctx := context.Background()
	created := fixedNow().Add(-time.Hour)
	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(sessionRowColumns).
			AddRow("sess-1", "user-1", "github", created, created.Add(DefaultSessionTTL))
	}

	mock.ExpectQuery("SELECT (.+) FROM sessions").WithArgs("sess-1").WillReturnRows(row())
	mock.ExpectQuery("SELECT (.+) FROM sessions").WithArgs("sess-1").WillReturnRows(row())

	_, err := sm.GetSession(ctx, "sess-1")
	require.NoError(t, err)

	mr.Close()

	session, err := sm.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
