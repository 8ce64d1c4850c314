package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	Path        string // sqlite file; ":memory:" for an in-process database
	DSN         string // postgres:// or postgresql:// URL; wins over Path
	BusyTimeout time.Duration
	MaxConns    int32

	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ConfigFor picks the backend from a single --db style target: a postgres URL
// or a sqlite path.
func ConfigFor(target string) Config {
	if isPostgres(target) {
		return Config{DSN: target}
	}
	return Config{Path: target}
}

func isPostgres(s string) bool {
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://")
}

// DB is an open database and the SQL dialect its statements are built for.
type DB struct {
	*sql.DB
	Dialect string // dialect.SQLite or dialect.Postgres
	Target  string // sqlite path, or host/database for postgres

	pool *pgxpool.Pool
}

// Backend names the database for locations: "sqlite" or "postgres".
func (db *DB) Backend() string {
	if db.Dialect == dialect.Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Open connects to postgres when cfg.DSN is set and to the sqlite file at
// cfg.Path otherwise, then creates the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		db  *DB
		err error
	)
	if cfg.DSN != "" {
		db, err = openPostgres(ctx, cfg, logger)
	} else {
		db, err = openSQLite(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("repository.open.failed", "error", err)
		return nil, err
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			Close(db, logger)
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return db, nil
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	target := pc.ConnConfig.Host + "/" + pc.ConnConfig.Database
	logger.Info("repository.open", "backend", "postgres", "target", target)

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "invoice-extractor"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &DB{DB: stdlib.OpenDBFromPool(pool), Dialect: dialect.Postgres, Target: target, pool: pool}, nil
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 10 * time.Second
	}
	logger.Info("repository.open", "backend", "sqlite", "path", cfg.Path)

	memory := cfg.Path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	switch {
	case memory:
		// Every connection to :memory: is a separate database.
		sqlDB.SetMaxOpenConns(1)
	case cfg.MaxConns > 0:
		sqlDB.SetMaxOpenConns(int(cfg.MaxConns))
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, p); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return &DB{DB: sqlDB, Dialect: dialect.SQLite, Target: cfg.Path}, nil
}

// Close closes the database connections, logging any error.
func Close(db *DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.DB.Close(); err != nil {
		logger.Error("repository.close.failed", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
}

// HealthCheck pings the database.
func HealthCheck(ctx context.Context, db *DB, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.PingContext(ctx)
}

// schema is portable between sqlite and postgres; one statement per entry.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	filename          TEXT NOT NULL,
	kind              TEXT NOT NULL,
	content_hash      TEXT NOT NULL,
	status            TEXT NOT NULL,
	method            TEXT NOT NULL,
	source            TEXT NOT NULL DEFAULT '',
	record_count      INTEGER NOT NULL,
	total_value       DOUBLE PRECISION NOT NULL,
	delivery_date     TEXT NOT NULL DEFAULT '',
	delivery_date_iso TEXT,
	invoice_number    TEXT NOT NULL DEFAULT '',
	vendor            TEXT NOT NULL DEFAULT '',
	stated_total      DOUBLE PRECISION,
	raw_text          TEXT NOT NULL DEFAULT '',
	error_code        TEXT NOT NULL DEFAULT '',
	error             TEXT NOT NULL DEFAULT '',
	extracted_at      TEXT NOT NULL,
	result_json       TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS documents_content_hash ON documents(content_hash)`,
	`CREATE INDEX IF NOT EXISTS documents_status ON documents(status)`,
	`CREATE TABLE IF NOT EXISTS records (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	idx         INTEGER NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	line_value  DOUBLE PRECISION NOT NULL,
	fields_json TEXT NOT NULL,
	PRIMARY KEY (document_id, idx)
)`,
}
