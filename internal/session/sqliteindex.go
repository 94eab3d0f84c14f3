package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, registers as "sqlite"
)

// SQLiteIndex is the default Index: a single file alongside the share
// directory, no server to run.
type SQLiteIndex struct {
	db *sql.DB

	stmtUpsert *sql.Stmt
	stmtList   *sql.Stmt
	stmtGet    *sql.Stmt
	stmtDelete *sql.Stmt
}

// OpenSQLiteIndex opens (creating if absent) the index database at path
// and ensures its schema exists.
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session: open sqlite index: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers anyway

	idx := &SQLiteIndex{db: db}
	if err := idx.init(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *SQLiteIndex) init() error {
	_, err := idx.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			work_dir TEXT NOT NULL,
			context_file TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_work_dir ON sessions(work_dir);
	`)
	if err != nil {
		return fmt.Errorf("session: create sqlite schema: %w", err)
	}

	idx.stmtUpsert, err = idx.db.Prepare(`
		INSERT INTO sessions (id, work_dir, context_file, title, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			work_dir = excluded.work_dir,
			context_file = excluded.context_file,
			title = excluded.title,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("session: prepare upsert: %w", err)
	}

	idx.stmtList, err = idx.db.Prepare(`
		SELECT id, work_dir, context_file, title, updated_at
		FROM sessions WHERE work_dir = ?
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return fmt.Errorf("session: prepare list: %w", err)
	}

	idx.stmtGet, err = idx.db.Prepare(`
		SELECT id, work_dir, context_file, title, updated_at
		FROM sessions WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("session: prepare get: %w", err)
	}

	idx.stmtDelete, err = idx.db.Prepare(`DELETE FROM sessions WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("session: prepare delete: %w", err)
	}

	return nil
}

func (idx *SQLiteIndex) Upsert(ctx context.Context, s Summary) error {
	_, err := idx.stmtUpsert.ExecContext(ctx, s.ID, s.WorkDir, s.ContextFile, s.Title, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("session: upsert %s: %w", s.ID, err)
	}
	return nil
}

func (idx *SQLiteIndex) List(ctx context.Context, workDir string) ([]Summary, error) {
	rows, err := idx.stmtList.QueryContext(ctx, workDir)
	if err != nil {
		return nil, fmt.Errorf("session: list %s: %w", workDir, err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (idx *SQLiteIndex) Get(ctx context.Context, id string) (Summary, error) {
	var s Summary
	var updatedAt time.Time
	err := idx.stmtGet.QueryRowContext(ctx, id).Scan(&s.ID, &s.WorkDir, &s.ContextFile, &s.Title, &updatedAt)
	if err == sql.ErrNoRows {
		return Summary{}, fmt.Errorf("session: %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("session: get %s: %w", id, err)
	}
	s.UpdatedAt = updatedAt
	return s, nil
}

func (idx *SQLiteIndex) Delete(ctx context.Context, id string) error {
	_, err := idx.stmtDelete.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	return nil
}

func (idx *SQLiteIndex) Close() error {
	return idx.db.Close()
}

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	var out []Summary
	for rows.Next() {
		var s Summary
		var updatedAt time.Time
		if err := rows.Scan(&s.ID, &s.WorkDir, &s.ContextFile, &s.Title, &updatedAt); err != nil {
			return nil, fmt.Errorf("session: scan row: %w", err)
		}
		s.UpdatedAt = updatedAt
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: iterate rows: %w", err)
	}
	return out, nil
}
