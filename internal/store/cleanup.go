package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dexflow/dexingest/internal/apperr"
)

// DeletePriceAnomalies removes minutes whose avg_price is zero, and any
// minute whose avg_price changed by more than pctThreshold versus the
// previous minute (optionally only when its base volume is below
// volumeFloor), grounded on cleaner.py's single CTE delete. Returns the
// number of rows removed.
func (s *Store) DeletePriceAnomalies(ctx context.Context, tableName string, pctThreshold float64, volumeFloor *float64) (int64, error) {
	name, err := sqlIdent(tableName)
	if err != nil {
		return 0, err
	}

	volumeClause := ""
	if volumeFloor != nil {
		volumeClause = fmt.Sprintf("AND total_base_volume < %f", *volumeFloor)
	}

	sql := fmt.Sprintf(`
		WITH cleaned AS (
			DELETE FROM %[1]s
			WHERE avg_price = 0
			RETURNING minute_start
		),
		price_changes AS (
			SELECT
				minute_start,
				avg_price,
				total_base_volume,
				LAG(avg_price) OVER (ORDER BY minute_start) AS prev_avg,
				ABS(avg_price - LAG(avg_price) OVER (ORDER BY minute_start))
					/ NULLIF(LAG(avg_price) OVER (ORDER BY minute_start), 0) AS pct_change
			FROM %[1]s
		),
		to_delete AS (
			SELECT minute_start
			FROM price_changes
			WHERE prev_avg IS NOT NULL
			AND pct_change > $1
			%[2]s
		)
		DELETE FROM %[1]s
		WHERE minute_start IN (SELECT minute_start FROM to_delete)
		RETURNING minute_start
	`, name, volumeClause)

	rows, err := s.pool.Query(ctx, sql, pctThreshold)
	if err != nil {
		return 0, wrapSQLErr("store.DeletePriceAnomalies", err)
	}
	defer rows.Close()

	var count int64
	for rows.Next() {
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, wrapSQLErr("store.DeletePriceAnomalies", err)
	}
	return count, nil
}

// DeletePriceAnomaliesWithRetry retries DeletePriceAnomalies up to
// retries times on a transient error, sleeping delay between attempts —
// grounded on delete_price_anomalies_with_retry's InterfaceError retry
// loop.
func (s *Store) DeletePriceAnomaliesWithRetry(ctx context.Context, tableName string, pctThreshold float64, volumeFloor *float64, retries int, delay time.Duration) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		count, err := s.DeletePriceAnomalies(ctx, tableName, pctThreshold, volumeFloor)
		if err == nil {
			return count, nil
		}
		lastErr = err
		if !apperr.Of(err, apperr.KindSQLTransient) {
			return 0, err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return 0, lastErr
}
