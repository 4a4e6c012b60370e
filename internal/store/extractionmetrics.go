package store

import (
	"context"

	"github.com/dexflow/dexingest/internal/model"
)

// EnsureExtractionMetricsTable creates the shared append-only
// extraction_metrics table.
func (s *Store) EnsureExtractionMetricsTable(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS extraction_metrics (
			ts               TIMESTAMPTZ NOT NULL,
			block_range      TEXT NOT NULL,
			log_count        BIGINT NOT NULL,
			duration_seconds DOUBLE PRECISION NOT NULL,
			pool_slug        TEXT NOT NULL
		)`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return wrapSQLErr("store.EnsureExtractionMetricsTable", err)
	}
	return nil
}

// LogExtractionMetrics appends one row describing a completed pipeline
// run, grounded on log_extraction_metrics.py.
func (s *Store) LogExtractionMetrics(ctx context.Context, m model.ExtractionMetrics) error {
	const sql = `
		INSERT INTO extraction_metrics (ts, block_range, log_count, duration_seconds, pool_slug)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, sql, m.Timestamp, m.BlockRange, m.LogCount, m.DurationSeconds, m.PoolSlug); err != nil {
		return wrapSQLErr("store.LogExtractionMetrics", err)
	}
	return nil
}
