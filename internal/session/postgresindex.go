package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresConfig configures a PostgresIndex connection (CockroachDB speaks
// the same wire protocol, so this also covers a Cockroach-backed shared
// deployment).
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns sane pool defaults for a lightweight index
// table (this is not the conversation store — row counts stay small).
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "soulwire",
		Database:        "soulwire",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// PostgresIndex is the shared-deployment Index: a sessions table any
// front-end sharing the same database can query, for a share directory
// mounted across multiple machines.
type PostgresIndex struct {
	db *sql.DB

	stmtUpsert *sql.Stmt
	stmtList   *sql.Stmt
	stmtGet    *sql.Stmt
	stmtDelete *sql.Stmt
}

// OpenPostgresIndex connects using cfg, ensures the schema exists, and
// prepares every statement used by Index.
func OpenPostgresIndex(cfg PostgresConfig) (*PostgresIndex, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, int(cfg.ConnectTimeout.Seconds()),
	)
	return openPostgresIndexWithDSN(dsn, cfg)
}

// OpenPostgresIndexFromDSN connects using a raw DSN/URL, for callers that
// already assemble one (e.g. from an environment variable).
func OpenPostgresIndexFromDSN(dsn string, cfg PostgresConfig) (*PostgresIndex, error) {
	if dsn == "" {
		return nil, fmt.Errorf("session: dsn is required")
	}
	return openPostgresIndexWithDSN(dsn, cfg)
}

func openPostgresIndexWithDSN(dsn string, cfg PostgresConfig) (*PostgresIndex, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open postgres index: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: ping postgres index: %w", err)
	}

	idx := &PostgresIndex{db: db}
	if err := idx.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// newPostgresIndexFromDB wraps an already-open *sql.DB (a sqlmock
// connection in tests) without dialing or pinging anything.
func newPostgresIndexFromDB(db *sql.DB) (*PostgresIndex, error) {
	idx := &PostgresIndex{db: db}
	if err := idx.init(context.Background()); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *PostgresIndex) init(ctx context.Context) error {
	if _, err := idx.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			work_dir TEXT NOT NULL,
			context_file TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("session: create postgres schema: %w", err)
	}

	var err error
	idx.stmtUpsert, err = idx.db.Prepare(`
		INSERT INTO sessions (id, work_dir, context_file, title, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
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
		FROM sessions WHERE work_dir = $1
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return fmt.Errorf("session: prepare list: %w", err)
	}

	idx.stmtGet, err = idx.db.Prepare(`
		SELECT id, work_dir, context_file, title, updated_at
		FROM sessions WHERE id = $1
	`)
	if err != nil {
		return fmt.Errorf("session: prepare get: %w", err)
	}

	idx.stmtDelete, err = idx.db.Prepare(`DELETE FROM sessions WHERE id = $1`)
	if err != nil {
		return fmt.Errorf("session: prepare delete: %w", err)
	}

	return nil
}

func (idx *PostgresIndex) Upsert(ctx context.Context, s Summary) error {
	_, err := idx.stmtUpsert.ExecContext(ctx, s.ID, s.WorkDir, s.ContextFile, s.Title, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("session: upsert %s: %w", s.ID, err)
	}
	return nil
}

func (idx *PostgresIndex) List(ctx context.Context, workDir string) ([]Summary, error) {
	rows, err := idx.stmtList.QueryContext(ctx, workDir)
	if err != nil {
		return nil, fmt.Errorf("session: list %s: %w", workDir, err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (idx *PostgresIndex) Get(ctx context.Context, id string) (Summary, error) {
	var s Summary
	err := idx.stmtGet.QueryRowContext(ctx, id).Scan(&s.ID, &s.WorkDir, &s.ContextFile, &s.Title, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return Summary{}, fmt.Errorf("session: %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("session: get %s: %w", id, err)
	}
	return s, nil
}

func (idx *PostgresIndex) Delete(ctx context.Context, id string) error {
	_, err := idx.stmtDelete.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	return nil
}

func (idx *PostgresIndex) Close() error {
	return idx.db.Close()
}
