package sso

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/kotoba/pkg/async"
	"github.com/platinummonkey/kotoba/pkg/observability"
)

// Session defaults
const (
	DefaultSessionTTL       = 30 * 24 * time.Hour
	DefaultSessionCacheTTL  = 10 * time.Minute
	DefaultSessionCacheSize = 10000
)

// SessionConfig configures session lifetime and the lookup cache
type SessionConfig struct {
	TTL       time.Duration
	CacheTTL  time.Duration
	CacheSize int
}

// SessionManager manages sessions in the sessions table. Lookups go through
// an in-process LRU so most authenticated requests skip the database; the
// cache holds session rows only, never the user's plan.
type SessionManager struct {
	db       *sql.DB
	cache    *lru.LRU[string, *Session]
	cacheTTL time.Duration
	ttl      time.Duration
	logger   *observability.Logger
	now      func() time.Time

	// revocations holds logout markers shared by every instance. nil when
	// running without Redis.
	revocations *redis.Client
}

// revokedKeyPrefix namespaces logout markers in Redis
const revokedKeyPrefix = "kotoba:session:revoked:"

// NewSessionManager creates a new session manager
func NewSessionManager(db *sql.DB, config SessionConfig, logger *observability.Logger) *SessionManager {
	if config.TTL <= 0 {
		config.TTL = DefaultSessionTTL
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultSessionCacheTTL
	}
	if config.CacheSize <= 0 {
		config.CacheSize = DefaultSessionCacheSize
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &SessionManager{
		db:       db,
		cache:    lru.NewLRU[string, *Session](config.CacheSize, nil, config.CacheTTL),
		cacheTTL: config.CacheTTL,
		ttl:      config.TTL,
		logger:   logger,
		now:      time.Now,
	}
}

// WithRevocations shares logouts between instances through Redis. A logout
// leaves a marker for one cache TTL, and cache hits on any instance check it.
func (sm *SessionManager) WithRevocations(client *redis.Client) *SessionManager {
	sm.revocations = client
	return sm
}

// TTL returns the session lifetime
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CreateSession starts a session for userID
func (sm *SessionManager) CreateSession(ctx context.Context, userID string, provider ProviderName) (*Session, error) {
	now := sm.now().UTC()
	session := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Provider:  provider,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.ttl),
	}

	_, err := sm.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, provider, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, session.ID, session.UserID, string(session.Provider), session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sm.cache.Add(session.ID, session)
	return session, nil
}

// GetSession returns a live session or ErrSessionNotFound
func (sm *SessionManager) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	if session, ok := sm.cache.Get(sessionID); ok {
		if session.Expired(sm.now()) {
			sm.cache.Remove(sessionID)
			sm.deleteInBackground(ctx, sessionID)
			return nil, ErrSessionNotFound
		}

		revoked, err := sm.revoked(ctx, sessionID)
		if err == nil && !revoked {
			return session, nil
		}
		sm.cache.Remove(sessionID)
		if revoked {
			return nil, ErrSessionNotFound
		}
		// Redis unavailable; the database is authoritative
		sm.logger.WithError(err).Warn("session revocation check failed")
	}

	session := &Session{}
	var provider string
	err := sm.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, created_at, expires_at
		FROM sessions
		WHERE id = $1 AND expires_at > NOW()
	`, sessionID).Scan(&session.ID, &session.UserID, &provider, &session.CreatedAt, &session.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	session.Provider = ProviderName(provider)

	sm.cache.Add(session.ID, session)
	return session, nil
}

// DeleteSession deletes a session and, with revocations enabled, evicts it
// from the caches of other instances
func (sm *SessionManager) DeleteSession(ctx context.Context, sessionID string) error {
	sm.cache.Remove(sessionID)
	if _, err := sm.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if sm.revocations != nil {
		if err := sm.revocations.Set(ctx, revokedKeyPrefix+sessionID, 1, sm.cacheTTL).Err(); err != nil {
			sm.logger.WithError(err).Warn("failed to publish session revocation")
		}
	}
	return nil
}

func (sm *SessionManager) revoked(ctx context.Context, sessionID string) (bool, error) {
	if sm.revocations == nil {
		return false, nil
	}
	n, err := sm.revocations.Exists(ctx, revokedKeyPrefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CleanupExpiredSessions removes expired sessions
func (sm *SessionManager) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	result, err := sm.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	return result.RowsAffected()
}

func (sm *SessionManager) deleteInBackground(ctx context.Context, sessionID string) {
	async.SafeGo(ctx, sm.logger, 5*time.Second, "delete expired session", func(ctx context.Context) error {
		_, err := sm.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
		return err
	})
}
