package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/shikibuild/internal/apperr"
	"github.com/starford/shikibuild/internal/build"
	"github.com/starford/shikibuild/internal/models"
)

// Store defines the build history operations. Consumers depend on this
// interface rather than *DB.
type Store interface {
	Record(ctx context.Context, r *build.Report) error
	Recent(ctx context.Context, limit int) ([]Summary, error)
	Get(ctx context.Context, id string) (*Summary, error)
	Errors(ctx context.Context, id string) ([]models.ProcessError, error)
	Close() error
}

var _ Store = (*DB)(nil)

// Summary is one stored build without its error list.
type Summary struct {
	ID          string      `json:"id"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	Incremental bool        `json:"incremental"`
	Since       time.Time   `json:"since,omitzero"`
	Stats       build.Stats `json:"stats"`
	ErrorCount  int         `json:"error_count"`
}

// Record inserts a report and its block errors in one transaction.
func (db *DB) Record(ctx context.Context, r *build.Report) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var since sql.NullTime
	if !r.Since.IsZero() {
		since = sql.NullTime{Time: r.Since.UTC(), Valid: true}
	}
	s := r.Stats
	_, err = tx.ExecContext(ctx, `
		INSERT INTO builds (
			id, started_at, finished_at, incremental, since,
			files_scanned, files_skipped, files_processed, files_failed,
			blocks_total, blocks_processed, blocks_cached, blocks_failed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.Incremental, since,
		s.FilesScanned, s.FilesSkipped, s.FilesProcessed, s.FilesFailed,
		s.BlocksTotal, s.BlocksProcessed, s.BlocksCached, s.BlocksFailed)
	if err != nil {
		return fmt.Errorf("history: insert build: %w", err)
	}

	if len(r.Errors) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO build_errors (build_id, seq, type, message, file, line, lang, cause, suggestions, fallback_used)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("history: prepare error insert: %w", err)
		}
		defer stmt.Close()
		for i, e := range r.Errors {
			sugg, _ := json.Marshal(e.Suggestions)
			if _, err := stmt.ExecContext(ctx, r.ID, i, string(e.Type), e.Message, e.File, e.Line, e.Lang, e.Cause, string(sugg), e.FallbackUsed); err != nil {
				return fmt.Errorf("history: insert error: %w", err)
			}
		}
	}

	return tx.Commit()
}

const summaryColumns = `
	b.id, b.started_at, b.finished_at, b.incremental, b.since,
	b.files_scanned, b.files_skipped, b.files_processed, b.files_failed,
	b.blocks_total, b.blocks_processed, b.blocks_cached, b.blocks_failed,
	(SELECT count(*) FROM build_errors e WHERE e.build_id = b.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*Summary, error) {
	var (
		s     Summary
		since sql.NullTime
	)
	st := &s.Stats
	err := row.Scan(&s.ID, &s.StartedAt, &s.FinishedAt, &s.Incremental, &since,
		&st.FilesScanned, &st.FilesSkipped, &st.FilesProcessed, &st.FilesFailed,
		&st.BlocksTotal, &st.BlocksProcessed, &st.BlocksCached, &st.BlocksFailed,
		&s.ErrorCount)
	if err != nil {
		return nil, err
	}
	if since.Valid {
		s.Since = since.Time
	}
	return &s, nil
}

// Recent returns up to limit builds, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT`+summaryColumns+` FROM builds b ORDER BY b.started_at DESC, b.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan build: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Get returns one build by id, or apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, id string) (*Summary, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT`+summaryColumns+` FROM builds b WHERE b.id = ?`, id)
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history: build %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("history: get: %w", err)
	}
	return s, nil
}

// Errors returns the block errors of one build in their original order.
func (db *DB) Errors(ctx context.Context, id string) ([]models.ProcessError, error) {
	if _, err := db.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT type, message, file, line, lang, cause, suggestions, fallback_used
		FROM build_errors WHERE build_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("history: errors: %w", err)
	}
	defer rows.Close()

	out := []models.ProcessError{}
	for rows.Next() {
		var (
			e    models.ProcessError
			typ  string
			sugg string
		)
		if err := rows.Scan(&typ, &e.Message, &e.File, &e.Line, &e.Lang, &e.Cause, &sugg, &e.FallbackUsed); err != nil {
			return nil, fmt.Errorf("history: scan error: %w", err)
		}
		e.Type = models.ErrorType(typ)
		_ = json.Unmarshal([]byte(sugg), &e.Suggestions)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SummaryOf condenses a report into its stored form.
func SummaryOf(r *build.Report) Summary {
	return Summary{
		ID:          r.ID,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Incremental: r.Incremental,
		Since:       r.Since,
		Stats:       r.Stats,
		ErrorCount:  len(r.Errors),
	}
}
