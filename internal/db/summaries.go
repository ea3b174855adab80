package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

const summaryColumns = `id, created_at, title, original_text, narrative, technical,
	word_count, char_count, token_estimate`

// InsertSummary stores a new summary and returns its store-assigned ID.
// The insert is a single statement: either the whole record is written or nothing is.
func InsertSummary(ctx context.Context, db *sql.DB, s *summary.Summary) (int64, error) {
	query := `
		INSERT INTO summaries (
			created_at, title, original_text, narrative, technical,
			word_count, char_count, token_estimate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query,
		s.CreatedAt, s.Title, s.OriginalText, s.Narrative, s.Technical,
		s.Stats.WordCount, s.Stats.CharCount, s.Stats.TokenEstimate,
	)
	if err != nil {
		return 0, errors.NewWriteFailure(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.NewWriteFailure(err)
	}

	s.ID = id
	return id, nil
}

// ListSummaries returns summaries ordered by created_at descending, ties broken
// by id descending, together with the total count.
// A limit of 0 or less returns every record.
func ListSummaries(ctx context.Context, db *sql.DB, limit, offset int) ([]summary.Summary, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	offset = max(offset, 0)

	rows, err := db.QueryContext(ctx, `
		SELECT `+summaryColumns+`
		FROM summaries
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var summaries []summary.Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		summaries = append(summaries, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return summaries, total, nil
}

// GetSummary retrieves a summary by ID.
func GetSummary(ctx context.Context, db *sql.DB, id int64) (*summary.Summary, error) {
	row := db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM summaries WHERE id = ?`, id)
	s, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("summary", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// DeleteSummary removes a summary. Deleting a missing ID is not an error.
func DeleteSummary(ctx context.Context, db *sql.DB, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM summaries WHERE id = ?`, id); err != nil {
		return errors.NewWriteFailure(err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSummary scans a single row into a Summary.
func scanSummary(row rowScanner) (*summary.Summary, error) {
	var s summary.Summary
	err := row.Scan(
		&s.ID, &s.CreatedAt, &s.Title, &s.OriginalText, &s.Narrative, &s.Technical,
		&s.Stats.WordCount, &s.Stats.CharCount, &s.Stats.TokenEstimate,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
