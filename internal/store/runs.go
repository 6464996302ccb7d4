package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/datasheet/internal/core"
)

const runColumns = `CAST(id AS TEXT), file_name, path, created_at, processed_at, deleted_at,
	matched_records, updated_records, failed_records, failed_queries, skipped_records, created_records`

func scanRun(r row) (core.Run, error) {
	var (
		run                    core.Run
		processedAt, deletedAt sql.NullTime
	)
	err := r.Scan(
		&run.ID, &run.FileName, &run.Path, &run.CreatedAt, &processedAt, &deletedAt,
		&run.Stats.Matched, &run.Stats.Updated, &run.Stats.Failed,
		&run.Stats.FailedQueries, &run.Stats.Skipped, &run.Stats.Created,
	)
	if err != nil {
		return core.Run{}, err
	}
	if processedAt.Valid {
		t := processedAt.Time
		run.ProcessedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		run.DeletedAt = &t
	}
	return run, nil
}

// CreateRun records a pending datasheet run.
func (s *Store) CreateRun(ctx context.Context, run core.Run) (core.Run, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	_, err := s.db.exec(ctx,
		`INSERT INTO product_datasheets (id, file_name, path, created_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.FileName, run.Path, run.CreatedAt,
	)
	if err != nil {
		return core.Run{}, writeError("create run", err)
	}
	run.ProcessedAt, run.DeletedAt, run.Stats = nil, nil, core.Stats{}
	return run, nil
}

// GetRun returns a run, including soft-deleted ones.
func (s *Store) GetRun(ctx context.Context, id string) (core.Run, error) {
	run, err := scanRun(s.db.queryRow(ctx,
		`SELECT `+runColumns+` FROM product_datasheets WHERE CAST(id AS TEXT) = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Run{}, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	if err != nil {
		return core.Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns runs newest first. Soft-deleted runs are included only
// when includeDeleted is set.
func (s *Store) ListRuns(ctx context.Context, includeDeleted bool) ([]core.Run, error) {
	query := `SELECT ` + runColumns + ` FROM product_datasheets`
	if !includeDeleted {
		query += ` WHERE deleted_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id`

	rs, err := s.db.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rs.Close()

	runs := []core.Run{}
	for rs.Next() {
		run, err := scanRun(rs)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return runs, nil
}

// SoftDeleteRun marks a run deleted. The row and the stored file are kept.
func (s *Store) SoftDeleteRun(ctx context.Context, id string) error {
	n, err := s.db.exec(ctx,
		`UPDATE product_datasheets SET deleted_at = ? WHERE CAST(id AS TEXT) = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	return nil
}

// CompleteRun writes the run summary. A summary is written once; completing
// an already processed run returns core.ErrRunProcessed.
func (s *Store) CompleteRun(ctx context.Context, id string, summary core.Summary) error {
	n, err := s.db.exec(ctx, `
		UPDATE product_datasheets SET
			processed_at = ?,
			matched_records = ?, updated_records = ?, failed_records = ?,
			failed_queries = ?, skipped_records = ?, created_records = ?
		WHERE CAST(id AS TEXT) = ? AND processed_at IS NULL`,
		summary.ProcessedAt.UTC(),
		summary.Matched, summary.Updated, summary.Failed,
		summary.FailedQueries, summary.Skipped, summary.Created,
		id,
	)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.GetRun(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", core.ErrRunProcessed, id)
}
