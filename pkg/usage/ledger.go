package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Ledger reads and increments per-period generation counters
type Ledger interface {
	// Count returns the counter for (userID, period); 0 when no entry exists
	Count(ctx context.Context, userID, period string) (int, error)
	// Increment adds one to the counter, creating it at 1, and returns the new value
	Increment(ctx context.Context, userID, period string) (int, error)
}

// PostgresLedger stores counters in the usage_tracking table
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger creates a ledger backed by db
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Count returns the stored counter, or 0 when the row does not exist
func (l *PostgresLedger) Count(ctx context.Context, userID, period string) (int, error) {
	query := `
		SELECT generation_count
		FROM usage_tracking
		WHERE user_id = $1 AND month_year = $2
	`
	var count int
	err := l.db.QueryRowContext(ctx, query, userID, period).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usage: %w", err)
	}
	return count, nil
}

// Increment is a single upsert so concurrent increments for the same user
// and period never lose an update.
func (l *PostgresLedger) Increment(ctx context.Context, userID, period string) (int, error) {
	query := `
		INSERT INTO usage_tracking (user_id, month_year, generation_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, month_year)
		DO UPDATE SET generation_count = usage_tracking.generation_count + 1, updated_at = NOW()
		RETURNING generation_count
	`
	var count int
	if err := l.db.QueryRowContext(ctx, query, userID, period).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return count, nil
}
