package store

import (
	"context"
	"fmt"
)

// EnsureKlineTable creates the per-pool 1-minute kline table if it
// doesn't already exist. Column set matches model.MinuteBucket plus the
// nullable derived-metrics columns populated by ComputeDerivedMetrics.
func (s *Store) EnsureKlineTable(ctx context.Context, tableName string) error {
	name, err := sqlIdent(tableName)
	if err != nil {
		return err
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			minute_start        TIMESTAMPTZ PRIMARY KEY,
			open_price          NUMERIC(38,18) NOT NULL,
			open_ts             BIGINT NOT NULL,
			close_price         NUMERIC(38,18) NOT NULL,
			close_ts            BIGINT NOT NULL,
			high_price          NUMERIC(38,18) NOT NULL,
			low_price           NUMERIC(38,18) NOT NULL,
			avg_price           NUMERIC(38,18) NOT NULL DEFAULT 0,
			swap_count          BIGINT NOT NULL DEFAULT 0,
			total_base_volume   NUMERIC(38,18) NOT NULL DEFAULT 0,
			total_quote_volume  NUMERIC(38,18) NOT NULL DEFAULT 0,
			trade_imbalance     DOUBLE PRECISION,
			price_volatility    DOUBLE PRECISION,
			price_momentum      DOUBLE PRECISION
		)`, name)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return wrapSQLErr("store.EnsureKlineTable", err)
	}
	return nil
}

// EnsureRawSwapsTable creates the per-pool raw-swaps table if it
// doesn't already exist.
func (s *Store) EnsureRawSwapsTable(ctx context.Context, tableName string) error {
	name, err := sqlIdent(tableName)
	if err != nil {
		return err
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			block_number BIGINT NOT NULL,
			tx_hash      TEXT NOT NULL,
			log_index    INT NOT NULL,
			ts           TIMESTAMPTZ NOT NULL,
			sender       TEXT NOT NULL,
			recipient    TEXT NOT NULL,
			caller       TEXT,
			router_tag   TEXT,
			base_delta   NUMERIC(38,18) NOT NULL,
			quote_delta  NUMERIC(38,18) NOT NULL,
			base_vol     NUMERIC(38,18) NOT NULL,
			quote_vol    NUMERIC(38,18) NOT NULL,
			price        NUMERIC(38,18) NOT NULL,
			is_buy       BOOLEAN NOT NULL,
			liquidity    NUMERIC(38,0),
			tick         INT,
			PRIMARY KEY (block_number, tx_hash, log_index)
		)`, name)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return wrapSQLErr("store.EnsureRawSwapsTable", err)
	}
	return nil
}

// ExistingMinuteRange returns the (min, max) minute_start already
// present in tableName, or (nil, nil) if the table is empty — the
// input blockindex.ComputeGaps needs to decide what's missing.
func (s *Store) ExistingMinuteRange(ctx context.Context, tableName string) (minTS, maxTS *int64, err error) {
	name, err := sqlIdent(tableName)
	if err != nil {
		return nil, nil, err
	}
	row := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT EXTRACT(EPOCH FROM MIN(minute_start))::bigint, EXTRACT(EPOCH FROM MAX(minute_start))::bigint FROM %s`, name))

	var min, max *int64
	if err := row.Scan(&min, &max); err != nil {
		return nil, nil, wrapSQLErr("store.ExistingMinuteRange", err)
	}
	return min, max, nil
}
