package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// executor is the subset of a connection pool the store needs. Queries use
// '?' placeholders; the PostgreSQL executor rebinds them.
type executor interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	query(ctx context.Context, query string, args ...any) (rows, error)
	queryRow(ctx context.Context, query string, args ...any) row
	ping(ctx context.Context) error
	close()
}

type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// row.Scan returns sql.ErrNoRows for an empty result on every driver.
type row interface {
	Scan(dest ...any) error
}

// pgxExecutor runs queries on a pgx connection pool.
type pgxExecutor struct {
	pool *pgxpool.Pool
}

func (e pgxExecutor) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := e.pool.Exec(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (e pgxExecutor) query(ctx context.Context, query string, args ...any) (rows, error) {
	r, err := e.pool.Query(ctx, rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (e pgxExecutor) queryRow(ctx context.Context, query string, args ...any) row {
	return pgxRow{e.pool.QueryRow(ctx, rebind(query), args...)}
}

func (e pgxExecutor) ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

func (e pgxExecutor) close() {
	e.pool.Close()
}

type pgxRow struct {
	pgx.Row
}

func (r pgxRow) Scan(dest ...any) error {
	err := r.Row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return sql.ErrNoRows
	}
	return err
}

// sqlExecutor runs queries through database/sql (SQLite).
type sqlExecutor struct {
	db *sql.DB
}

func (e sqlExecutor) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (e sqlExecutor) query(ctx context.Context, query string, args ...any) (rows, error) {
	r, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{r}, nil
}

func (e sqlExecutor) queryRow(ctx context.Context, query string, args ...any) row {
	return e.db.QueryRowContext(ctx, query, args...)
}

func (e sqlExecutor) ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

func (e sqlExecutor) close() {
	_ = e.db.Close()
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	_ = r.Rows.Close()
}
