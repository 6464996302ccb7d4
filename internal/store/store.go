// Package store persists products, variants, option types and datasheet
// runs in PostgreSQL (pgx) or SQLite (modernc).
//
// A single SQL implementation serves both databases. Queries are written
// with '?' placeholders and rebound to $n for PostgreSQL. Attribute values
// are validated and typed by the entity definitions in core before they
// reach SQL, and are read back as text so records compare the same way on
// every driver.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/datasheet/internal/core"
)

// Dialect identifies the SQL database behind a Store.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Options configures the connection pool.
type Options struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store implements core.Repository and core.RunStore.
type Store struct {
	db      executor
	dialect Dialect
	logger  *slog.Logger
}

var (
	_ core.Repository = (*Store)(nil)
	_ core.RunStore   = (*Store)(nil)
)

// Open connects to the database named by opts.URL. postgres:// and
// postgresql:// URLs use pgx; "sqlite:" or "file:" URLs and bare paths use
// SQLite. The connection is verified before Open returns.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dialect, dsn := ParseURL(opts.URL)

	var s *Store
	switch dialect {
	case DialectPostgres:
		poolConfig, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse database URL: %w", err)
		}
		if opts.MaxConns > 0 {
			poolConfig.MaxConns = int32(opts.MaxConns)
		}
		if opts.MinConns > 0 {
			poolConfig.MinConns = int32(opts.MinConns)
		}
		if opts.MaxConnLifetime > 0 {
			poolConfig.MaxConnLifetime = opts.MaxConnLifetime
		}
		if opts.MaxConnIdleTime > 0 {
			poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s = NewPostgres(pool)

	default:
		db, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		s = NewSQLite(db)
	}

	if err := s.Ping(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return s, nil
}

// NewPostgres returns a Store over an existing pgx pool.
func NewPostgres(pool *pgxpool.Pool) *Store {
	return &Store{db: pgxExecutor{pool: pool}, dialect: DialectPostgres, logger: slog.Default()}
}

// NewSQLite returns a Store over an open SQLite database.
func NewSQLite(db *sql.DB) *Store {
	return &Store{db: sqlExecutor{db: db}, dialect: DialectSQLite, logger: slog.Default()}
}

// OpenSQLite opens a SQLite database with foreign keys enforced. SQLite
// allows one writer at a time, so the pool is limited to one connection;
// this also keeps ":memory:" databases shared across queries.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}
	return db, nil
}

// ParseURL splits a database URL into its dialect and driver DSN.
func ParseURL(url string) (Dialect, string) {
	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, url
	case strings.HasPrefix(lower, "sqlite://"):
		return DialectSQLite, url[len("sqlite://"):]
	case strings.HasPrefix(lower, "sqlite:"):
		return DialectSQLite, url[len("sqlite:"):]
	default:
		return DialectSQLite, url
	}
}

// WithLogger sets the logger used for store diagnostics.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Dialect reports which database the store talks to.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.db.close()
}

// rebind converts '?' placeholders to PostgreSQL's $1, $2, ...
// Queries in this package never contain a literal '?'.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
