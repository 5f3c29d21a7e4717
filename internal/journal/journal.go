package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"comictag/internal/config"
)

// ErrRunNotFound reports an unknown run identifier.
var ErrRunNotFound = errors.New("journal: run not found")

// Run is one recorded batch run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Mode       string
	SourceRoot string
	OutputRoot string
	Succeeded  int
	Failed     int
	Cancelled  int
	Items      []Item
}

// Item is the outcome of one catalog item within a run.
type Item struct {
	Position    int
	RelPath     string
	Kind        string
	Destination string
	Status      string
	Error       string
}

// Journal stores run history in SQLite.
type Journal struct {
	db   *sql.DB
	path string
}

// Open creates or opens the journal in the configured state directory.
func Open(cfg *config.Config) (*Journal, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JournalPath())
}

// OpenPath opens the journal database at path.
func OpenPath(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	j := &Journal{db: db, path: path}
	if err := j.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the database file location.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordRun stores run and its items in one transaction.
func (j *Journal) RecordRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("journal: run id is required")
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (
            id, started_at, finished_at, mode, source_root, output_root,
            succeeded, failed, cancelled
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.Mode,
		run.SourceRoot,
		run.OutputRoot,
		run.Succeeded,
		run.Failed,
		run.Cancelled,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_items (run_id, position, rel_path, kind, destination, status, error_message)
        VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare run item insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range run.Items {
		if _, err := stmt.ExecContext(ctx,
			run.ID,
			item.Position,
			item.RelPath,
			item.Kind,
			nullableString(item.Destination),
			item.Status,
			nullableString(item.Error),
		); err != nil {
			return fmt.Errorf("insert run item %s: %w", item.RelPath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = "id, started_at, finished_at, mode, source_root, output_root, succeeded, failed, cancelled"

// ListRuns returns the most recent runs first, without items. A limit <= 0
// returns every run.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run with its items.
func (j *Journal) GetRun(ctx context.Context, id string) (Run, error) {
	row := j.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	run.Items, err = j.RunItems(ctx, id)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// RunItems returns the item outcomes of a run in processing order.
func (j *Journal) RunItems(ctx context.Context, runID string) ([]Item, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT position, rel_path, kind, destination, status, error_message
        FROM run_items WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			item        Item
			destination sql.NullString
			errorMsg    sql.NullString
		)
		if err := rows.Scan(&item.Position, &item.RelPath, &item.Kind, &destination, &item.Status, &errorMsg); err != nil {
			return nil, err
		}
		item.Destination = destination.String
		item.Error = errorMsg.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const kept = "SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?"
	if _, err := tx.ExecContext(ctx, "DELETE FROM run_items WHERE run_id NOT IN ("+kept+")", keep); err != nil {
		return 0, fmt.Errorf("prune run items: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id NOT IN ("+kept+")", keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return removed, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run                   Run
		startedRaw, finishRaw string
	)
	if err := scanner.Scan(
		&run.ID,
		&startedRaw,
		&finishRaw,
		&run.Mode,
		&run.SourceRoot,
		&run.OutputRoot,
		&run.Succeeded,
		&run.Failed,
		&run.Cancelled,
	); err != nil {
		return Run{}, err
	}
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishRaw)
	return run, nil
}

// timeLayout keeps a fixed fraction width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
