package generation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Store persists generation records
type Store interface {
	Create(ctx context.Context, record *Record) error
	Get(ctx context.Context, userID, id string) (*Record, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Record, error)
}

const recordColumns = `id, user_id, pipeline, platform, dialect, video_url, video_id,
	original_text, translated_title, translated_text, hashtags, optimal_post_time,
	cultural_advice, transcript, created_at`

// PostgresStore stores records in the generations table
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a record store backed by db
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts record and fills in its ID and CreatedAt
func (s *PostgresStore) Create(ctx context.Context, record *Record) error {
	transcript := record.Transcript
	if transcript == nil {
		transcript = []TranscriptLine{}
	}
	transcriptJSON, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}

	hashtags := record.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}

	query := `
		INSERT INTO generations (
			user_id, pipeline, platform, dialect, video_url, video_id,
			original_text, translated_title, translated_text, hashtags,
			optimal_post_time, cultural_advice, transcript
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at
	`
	err = s.db.QueryRowContext(ctx, query,
		record.UserID,
		string(record.Pipeline),
		nullString(string(record.Platform)),
		nullString(string(record.Dialect)),
		nullString(record.VideoURL),
		nullString(record.VideoID),
		record.OriginalText,
		nullString(record.TranslatedTitle),
		record.TranslatedText,
		pq.Array(hashtags),
		record.OptimalPostTime,
		record.CulturalAdvice,
		transcriptJSON,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}

	return nil
}

// Get returns the record with id when it belongs to userID
func (s *PostgresStore) Get(ctx context.Context, userID, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM generations WHERE id = $1 AND user_id = $2`, id, userID)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation %s: %w", id, err)
	}
	return record, nil
}

// ListByUser returns the user's newest records first
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM generations WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generations: %w", err)
	}

	return records, nil
}

// isInvalidID reports a malformed uuid in the lookup
func isInvalidID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record            Record
		pipeline          string
		platform, dialect sql.NullString
		videoURL, videoID sql.NullString
		title, text       sql.NullString
		postTime, advice  sql.NullString
		hashtags          pq.StringArray
		transcriptJSON    []byte
	)

	err := row.Scan(
		&record.ID, &record.UserID, &pipeline, &platform, &dialect, &videoURL, &videoID,
		&record.OriginalText, &title, &text, &hashtags, &postTime,
		&advice, &transcriptJSON, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Pipeline = Pipeline(pipeline)
	record.Platform = Platform(platform.String)
	record.Dialect = Dialect(dialect.String)
	record.VideoURL = videoURL.String
	record.VideoID = videoID.String
	record.TranslatedTitle = title.String
	record.TranslatedText = text.String
	record.OptimalPostTime = postTime.String
	record.CulturalAdvice = advice.String

	record.Hashtags = []string(hashtags)
	if record.Hashtags == nil {
		record.Hashtags = []string{}
	}

	record.Transcript = []TranscriptLine{}
	if len(transcriptJSON) > 0 {
		if err := json.Unmarshal(transcriptJSON, &record.Transcript); err != nil {
			return nil, fmt.Errorf("failed to decode transcript: %w", err)
		}
	}

	return &record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
