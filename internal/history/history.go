// package history persists sync run records in SQLite.
//
// The journal is observability for the user, not a second source of
// truth: the manifest alone decides what a sync does. A journal write
// that fails is logged by the engine and otherwise ignored.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ethan-hawksley/yt-play/internal/engine"
)

const defaultRunLimit = 20

// Run is one recorded sync, as read back from the journal.
type Run struct {
	ID          string
	PlaylistKey string
	Title       string
	Mode        string
	Added       int
	Removed     int
	Kept        int
	Failed      int
	Duration    time.Duration
	StartedAt   time.Time
}

// Failure is one track that exhausted its retry budget during a run.
type Failure struct {
	RunID   string
	VideoID string
	Title   string
	Error   string
}

// Repository reads and writes the sync journal. It implements
// [engine.Journal].
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository with the given database connection
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecordRun inserts a completed sync and its per-track failures in a
// single transaction.
func (r *Repository) RecordRun(ctx context.Context, run *engine.Result) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sync_runs (id, playlist_key, playlist_title, mode, added, removed, kept, failed, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		run.RunID,
		run.Key.String(),
		run.Title,
		run.Mode.String(),
		run.Added,
		run.Removed,
		run.Kept,
		len(run.Failed),
		run.Duration.Milliseconds(),
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	failQuery := `
		INSERT INTO sync_failures (run_id, video_id, title, error)
		VALUES (?, ?, ?, ?)
	`

	for _, f := range run.Failed {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		if _, err := tx.ExecContext(ctx, failQuery, run.RunID, f.VideoID, f.Title, msg); err != nil {
			return fmt.Errorf("failed to insert sync failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}

	return nil
}

// ListRuns retrieves recent runs, newest first. An empty key lists runs
// across all playlists; a non-positive limit falls back to the default.
func (r *Repository) ListRuns(key string, limit int) ([]Run, error) {
	query := `
		SELECT id, playlist_key, playlist_title, mode, added, removed, kept, failed, duration_ms, started_at
		FROM sync_runs
	`

	args := []any{}

	if key != "" {
		query += " WHERE playlist_key = ?"
		args = append(args, key)
	}

	if limit <= 0 {
		limit = defaultRunLimit
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Failures retrieves the skipped tracks of one run in insertion order.
func (r *Repository) Failures(runID string) ([]Failure, error) {
	query := `
		SELECT run_id, video_id, title, error
		FROM sync_failures
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.RunID, &f.VideoID, &f.Title, &f.Error); err != nil {
			return nil, fmt.Errorf("failed to scan sync failure: %w", err)
		}
		failures = append(failures, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return failures, nil
}

// scanRun scans a row from [sql.Rows] into a [Run]
func (r *Repository) scanRun(rows *sql.Rows) (Run, error) {
	var (
		run        Run
		durationMS int64
	)

	err := rows.Scan(
		&run.ID,
		&run.PlaylistKey,
		&run.Title,
		&run.Mode,
		&run.Added,
		&run.Removed,
		&run.Kept,
		&run.Failed,
		&durationMS,
		&run.StartedAt,
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}
