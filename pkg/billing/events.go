package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EventLog remembers processed Stripe event ids so redeliveries are not
// applied twice
type EventLog interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID, eventType string) error
}

// PostgresEventLog stores processed events in stripe_events
type PostgresEventLog struct {
	db *sql.DB
}

// NewPostgresEventLog creates an event log backed by db
func NewPostgresEventLog(db *sql.DB) *PostgresEventLog {
	return &PostgresEventLog{db: db}
}

// Seen reports whether eventID was already processed
func (l *PostgresEventLog) Seen(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx, `SELECT 1 FROM stripe_events WHERE id = $1`, eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up stripe event: %w", err)
	}
	return true, nil
}

// Record marks eventID as processed
func (l *PostgresEventLog) Record(ctx context.Context, eventID, eventType string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO stripe_events (id, type)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return fmt.Errorf("failed to record stripe event: %w", err)
	}
	return nil
}

// DeleteProcessedBefore removes events processed before cutoff and returns
// how many were deleted. Stripe redelivers for up to three days.
func (l *PostgresEventLog) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM stripe_events WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stripe events: %w", err)
	}
	return result.RowsAffected()
}
