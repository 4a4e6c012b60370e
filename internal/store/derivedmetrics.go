package store

import (
	"context"
	"fmt"
	"math"
	"time"
)

// derivedMetricsBatchSize mirrors feature_generator.py's batch_size.
const derivedMetricsBatchSize = 5000

type klineRow struct {
	minuteStart      time.Time
	avgPrice         float64
	totalBaseVolume  float64
	totalQuoteVolume float64
}

// ComputeDerivedMetrics recomputes trade_imbalance, price_volatility
// (rolling stddev of avg_price over rollWindow minutes) and
// price_momentum (pct change over rollWindow minutes) for every row in
// tableName and writes them back in batches of 5000, grounded on
// feature_generator.py's crunch_metrics_for_table.
func (s *Store) ComputeDerivedMetrics(ctx context.Context, tableName string, rollWindow int) error {
	name, err := sqlIdent(tableName)
	if err != nil {
		return err
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT minute_start, avg_price, total_base_volume, total_quote_volume FROM %s ORDER BY minute_start`, name))
	if err != nil {
		return wrapSQLErr("store.ComputeDerivedMetrics", err)
	}

	var data []klineRow
	for rows.Next() {
		var r klineRow
		if err := rows.Scan(&r.minuteStart, &r.avgPrice, &r.totalBaseVolume, &r.totalQuoteVolume); err != nil {
			rows.Close()
			return wrapSQLErr("store.ComputeDerivedMetrics", err)
		}
		data = append(data, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return wrapSQLErr("store.ComputeDerivedMetrics", err)
	}
	rows.Close()
	if len(data) == 0 {
		return nil
	}

	imbalance := make([]float64, len(data))
	volatility := make([]*float64, len(data))
	momentum := make([]*float64, len(data))

	prices := make([]float64, len(data))
	for i, r := range data {
		prices[i] = r.avgPrice
		denom := r.totalBaseVolume + r.totalQuoteVolume + 1e-9
		imbalance[i] = (r.totalBaseVolume - r.totalQuoteVolume) / denom
	}
	for i := range data {
		volatility[i] = rollingStdDev(prices, i, rollWindow)
		momentum[i] = pctChange(prices, i, rollWindow)
	}

	for start := 0; start < len(data); start += derivedMetricsBatchSize {
		end := start + derivedMetricsBatchSize
		if end > len(data) {
			end = len(data)
		}
		if err := s.writeDerivedMetricsBatch(ctx, name, data[start:end], imbalance[start:end], volatility[start:end], momentum[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeDerivedMetricsBatch(ctx context.Context, name string, rows []klineRow, imbalance []float64, volatility, momentum []*float64) error {
	n := len(rows)
	minuteStarts := make([]time.Time, n)
	for i, r := range rows {
		minuteStarts[i] = r.minuteStart
	}

	sql := fmt.Sprintf(`
		UPDATE %[1]s t
		SET trade_imbalance = u.trade_imbalance,
		    price_volatility = u.price_volatility,
		    price_momentum = u.price_momentum
		FROM UNNEST($1::timestamptz[], $2::double precision[], $3::double precision[], $4::double precision[])
			AS u(minute_start, trade_imbalance, price_volatility, price_momentum)
		WHERE t.minute_start = u.minute_start
	`, name)

	if _, err := s.pool.Exec(ctx, sql, minuteStarts, imbalance, volatility, momentum); err != nil {
		return wrapSQLErr("store.writeDerivedMetricsBatch", err)
	}
	return nil
}

// rollingStdDev computes the sample (ddof=1 when possible, falling
// back to ddof=0 for a single sample) standard deviation of
// prices over the window ending at index i, min_periods=1.
func rollingStdDev(prices []float64, i, window int) *float64 {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	slice := prices[start : i+1]
	n := len(slice)
	if n == 0 {
		return nil
	}
	var mean float64
	for _, v := range slice {
		mean += v
	}
	mean /= float64(n)

	var sumSq float64
	for _, v := range slice {
		d := v - mean
		sumSq += d * d
	}
	ddof := 1
	if n == 1 {
		ddof = 0
	}
	denom := n - ddof
	if denom <= 0 {
		denom = 1
	}
	v := math.Sqrt(sumSq / float64(denom))
	return &v
}

// pctChange returns (prices[i]-prices[i-window])/prices[i-window], or
// nil if there aren't window prior periods or the base is zero.
func pctChange(prices []float64, i, window int) *float64 {
	j := i - window
	if j < 0 {
		return nil
	}
	if prices[j] == 0 {
		return nil
	}
	v := (prices[i] - prices[j]) / prices[j]
	return &v
}
