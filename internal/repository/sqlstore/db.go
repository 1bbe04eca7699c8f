package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"snapfeed/internal/repository"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Options selects and tunes the backing database.
type Options struct {
	Driver          string
	Path            string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is the sqlx backed repository.Store.
type Store struct {
	db      *sqlx.DB
	dialect string
}

var _ repository.Store = (*Store)(nil)

// Open connects to the configured database. SQLite files and their parent
// directories are created on demand.
func Open(opts Options) (*Store, error) {
	switch opts.Driver {
	case DialectSQLite, "":
		db, err := openSQLite(opts.Path)
		if err != nil {
			return nil, err
		}
		return New(db, DialectSQLite), nil
	case DialectPostgres:
		db, err := openPostgres(opts)
		if err != nil {
			return nil, err
		}
		return New(db, DialectPostgres), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// New wraps an already opened handle.
func New(db *sqlx.DB, dialect string) *Store {
	return &Store{db: db, dialect: dialect}
}

func openSQLite(path string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// a single connection serializes writers; sqlite rejects concurrent ones anyway
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}
	return db, nil
}

func openPostgres(opts Options) (*sqlx.DB, error) {
	cfg, err := pgx.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.ConnectTimeout = 5 * time.Second

	db := sqlx.NewDb(stdlib.OpenDB(*cfg), "pgx")
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}

func (s *Store) Begin(ctx context.Context) (repository.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{ctx: ctx, db: s.db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
