package store

import (
	"context"
	"fmt"

	"github.com/dexflow/dexingest/internal/model"
)

// UpsertKlines bulk-upserts a batch of minute buckets into tableName in
// one round trip (UNNEST + ON CONFLICT), grounded on
// upsert_aggregated_klines.py and the bulk-UNNEST pattern from
// postgres_ingest.go.go. The merge discipline inside the conflict
// clause is server-side so no read-modify-write race exists between
// concurrent pool pipelines (spec.md I2, §4.4.2).
func (s *Store) UpsertKlines(ctx context.Context, tableName string, buckets []model.MinuteBucket) error {
	if len(buckets) == 0 {
		return nil
	}
	name, err := sqlIdent(tableName)
	if err != nil {
		return err
	}

	n := len(buckets)
	minuteStarts := make([]interface{}, n)
	openPrices := make([]string, n)
	openTSs := make([]int64, n)
	closePrices := make([]string, n)
	closeTSs := make([]int64, n)
	highPrices := make([]string, n)
	lowPrices := make([]string, n)
	avgPrices := make([]string, n)
	swapCounts := make([]int64, n)
	totalBase := make([]string, n)
	totalQuote := make([]string, n)

	for i, b := range buckets {
		minuteStarts[i] = b.MinuteStart
		openPrices[i] = b.OpenPrice.String()
		openTSs[i] = b.OpenTS
		closePrices[i] = b.ClosePrice.String()
		closeTSs[i] = b.CloseTS
		highPrices[i] = b.HighPrice.String()
		lowPrices[i] = b.LowPrice.String()
		avgPrices[i] = b.AvgPrice.String()
		swapCounts[i] = b.SwapCount
		totalBase[i] = b.TotalBaseVolume.String()
		totalQuote[i] = b.TotalQuoteVolume.String()
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (
			minute_start, open_price, open_ts, close_price, close_ts,
			high_price, low_price, avg_price, swap_count,
			total_base_volume, total_quote_volume
		)
		SELECT
			u.minute_start, u.open_price::numeric, u.open_ts, u.close_price::numeric, u.close_ts,
			u.high_price::numeric, u.low_price::numeric, u.avg_price::numeric, u.swap_count,
			u.total_base_volume::numeric, u.total_quote_volume::numeric
		FROM UNNEST(
			$1::timestamptz[], $2::text[], $3::bigint[], $4::text[], $5::bigint[],
			$6::text[], $7::text[], $8::text[], $9::bigint[], $10::text[], $11::text[]
		) AS u(
			minute_start, open_price, open_ts, close_price, close_ts,
			high_price, low_price, avg_price, swap_count, total_base_volume, total_quote_volume
		)
		ON CONFLICT (minute_start) DO UPDATE SET
			open_price = CASE WHEN %s.open_ts <= EXCLUDED.open_ts THEN %s.open_price ELSE EXCLUDED.open_price END,
			open_ts = LEAST(%s.open_ts, EXCLUDED.open_ts),
			close_price = CASE WHEN %s.close_ts >= EXCLUDED.close_ts THEN %s.close_price ELSE EXCLUDED.close_price END,
			close_ts = GREATEST(%s.close_ts, EXCLUDED.close_ts),
			high_price = GREATEST(%s.high_price, EXCLUDED.high_price),
			low_price = LEAST(%s.low_price, EXCLUDED.low_price),
			swap_count = %s.swap_count + EXCLUDED.swap_count,
			total_base_volume = %s.total_base_volume + EXCLUDED.total_base_volume,
			total_quote_volume = %s.total_quote_volume + EXCLUDED.total_quote_volume,
			avg_price = COALESCE(
				(%s.total_quote_volume + EXCLUDED.total_quote_volume) /
				NULLIF(%s.total_base_volume + EXCLUDED.total_base_volume, 0),
				0
			)
	`, name, name, name, name, name, name, name, name, name, name, name, name, name, name)

	if _, err := s.pool.Exec(ctx, sql,
		minuteStarts, openPrices, openTSs, closePrices, closeTSs,
		highPrices, lowPrices, avgPrices, swapCounts, totalBase, totalQuote,
	); err != nil {
		return wrapSQLErr("store.UpsertKlines", err)
	}
	return nil
}
