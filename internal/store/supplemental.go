package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dexflow/dexingest/internal/model"
)

// EnsureTradeSizeTable creates the per-pool trade-size histogram table.
func (s *Store) EnsureTradeSizeTable(ctx context.Context, tableName string) error {
	name, err := sqlIdent(tableName)
	if err != nil {
		return err
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			bucket_key INT PRIMARY KEY,
			trade_count BIGINT NOT NULL DEFAULT 0
		)`, name)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return wrapSQLErr("store.EnsureTradeSizeTable", err)
	}
	return nil
}

// UpsertTradeSizeHistogram adds counts onto the existing per-bucket
// totals, grounded on upsert_aggregated_trade_sizes.py's additive merge.
func (s *Store) UpsertTradeSizeHistogram(ctx context.Context, tableName string, buckets model.TradeSizeBuckets) error {
	name, err := sqlIdent(tableName)
	if err != nil {
		return err
	}
	keys := make([]int32, 0, len(buckets.Counts))
	counts := make([]int64, 0, len(buckets.Counts))
	for i, c := range buckets.Counts {
		if c == 0 {
			continue
		}
		keys = append(keys, int32(i-2))
		counts = append(counts, c)
	}
	if len(keys) == 0 {
		return nil
	}

	sql := fmt.Sprintf(`
		INSERT INTO %[1]s (bucket_key, trade_count)
		SELECT u.bucket_key, u.trade_count FROM UNNEST($1::int[], $2::bigint[]) AS u(bucket_key, trade_count)
		ON CONFLICT (bucket_key) DO UPDATE SET trade_count = %[1]s.trade_count + EXCLUDED.trade_count
	`, name)
	if _, err := s.pool.Exec(ctx, sql, keys, counts); err != nil {
		return wrapSQLErr("store.UpsertTradeSizeHistogram", err)
	}
	return nil
}

// EnsureHourlyFlowTable creates the shared pool_flow_hourly table,
// grounded on crunch_pool_flow.py's destination schema.
func (s *Store) EnsureHourlyFlowTable(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS pool_flow_hourly (
			pool_slug     TEXT NOT NULL,
			bucket_start  TIMESTAMPTZ NOT NULL,
			buys_usd      NUMERIC(38,2) NOT NULL,
			sells_usd     NUMERIC(38,2) NOT NULL,
			volume_usd    NUMERIC(38,2) NOT NULL,
			pressure      NUMERIC(8,5),
			PRIMARY KEY (pool_slug, bucket_start)
		)`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return wrapSQLErr("store.EnsureHourlyFlowTable", err)
	}
	return nil
}

// UpsertHourlyFlow overwrites (not adds — the source does a full
// recompute per window) the pool's hourly flow rows.
func (s *Store) UpsertHourlyFlow(ctx context.Context, poolSlug string, flows []model.HourlyFlow) error {
	if len(flows) == 0 {
		return nil
	}
	n := len(flows)
	slugs := make([]string, n)
	buckets := make([]time.Time, n)
	buys := make([]string, n)
	sells := make([]string, n)
	volume := make([]string, n)
	pressure := make([]*float64, n)

	for i, f := range flows {
		slugs[i] = poolSlug
		buckets[i] = f.HourStart
		buys[i] = f.BuyVolumeQuote.String()
		sells[i] = f.SellVolumeQuote.String()
		vol := f.BuyVolumeQuote.Add(f.SellVolumeQuote)
		volume[i] = vol.String()
		if !vol.IsZero() {
			p, _ := f.NetFlowQuote.Div(vol).Float64()
			pressure[i] = &p
		}
	}

	const sql = `
		INSERT INTO pool_flow_hourly (pool_slug, bucket_start, buys_usd, sells_usd, volume_usd, pressure)
		SELECT u.pool_slug, u.bucket_start, u.buys_usd::numeric, u.sells_usd::numeric, u.volume_usd::numeric, u.pressure
		FROM UNNEST($1::text[], $2::timestamptz[], $3::text[], $4::text[], $5::text[], $6::double precision[])
			AS u(pool_slug, bucket_start, buys_usd, sells_usd, volume_usd, pressure)
		ON CONFLICT (pool_slug, bucket_start) DO UPDATE SET
			buys_usd = EXCLUDED.buys_usd,
			sells_usd = EXCLUDED.sells_usd,
			volume_usd = EXCLUDED.volume_usd,
			pressure = EXCLUDED.pressure
	`
	if _, err := s.pool.Exec(ctx, sql, slugs, buckets, buys, sells, volume, pressure); err != nil {
		return wrapSQLErr("store.UpsertHourlyFlow", err)
	}
	return nil
}

// EnsureWalletStatsTable creates the shared wallet_stats table.
func (s *Store) EnsureWalletStatsTable(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS wallet_stats (
			wallet            TEXT NOT NULL,
			pool_slug         TEXT NOT NULL,
			trade_count       BIGINT NOT NULL DEFAULT 0,
			buy_volume_quote  NUMERIC(38,18) NOT NULL DEFAULT 0,
			sell_volume_quote NUMERIC(38,18) NOT NULL DEFAULT 0,
			first_seen        BIGINT NOT NULL,
			last_seen         BIGINT NOT NULL,
			PRIMARY KEY (wallet, pool_slug)
		)`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return wrapSQLErr("store.EnsureWalletStatsTable", err)
	}
	return nil
}

// UpsertWalletStats adds trade/volume counts onto existing per-wallet
// totals and widens the first/last-seen window, grounded on
// upsert_aggregated_wallet_stats.py.
func (s *Store) UpsertWalletStats(ctx context.Context, poolSlug string, stats []model.WalletStats) error {
	if len(stats) == 0 {
		return nil
	}
	n := len(stats)
	wallets := make([]string, n)
	slugs := make([]string, n)
	tradeCounts := make([]int64, n)
	buyVols := make([]string, n)
	sellVols := make([]string, n)
	firstSeens := make([]int64, n)
	lastSeens := make([]int64, n)

	for i, st := range stats {
		wallets[i] = st.Wallet
		slugs[i] = poolSlug
		tradeCounts[i] = st.TradeCount
		buyVols[i] = st.BuyVolumeQuote.String()
		sellVols[i] = st.SellVolumeQuote.String()
		firstSeens[i] = st.FirstSeen
		lastSeens[i] = st.LastSeen
	}

	const sql = `
		INSERT INTO wallet_stats (wallet, pool_slug, trade_count, buy_volume_quote, sell_volume_quote, first_seen, last_seen)
		SELECT u.wallet, u.pool_slug, u.trade_count, u.buy_volume_quote::numeric, u.sell_volume_quote::numeric, u.first_seen, u.last_seen
		FROM UNNEST($1::text[], $2::text[], $3::bigint[], $4::text[], $5::text[], $6::bigint[], $7::bigint[])
			AS u(wallet, pool_slug, trade_count, buy_volume_quote, sell_volume_quote, first_seen, last_seen)
		ON CONFLICT (wallet, pool_slug) DO UPDATE SET
			trade_count = wallet_stats.trade_count + EXCLUDED.trade_count,
			buy_volume_quote = wallet_stats.buy_volume_quote + EXCLUDED.buy_volume_quote,
			sell_volume_quote = wallet_stats.sell_volume_quote + EXCLUDED.sell_volume_quote,
			first_seen = LEAST(wallet_stats.first_seen, EXCLUDED.first_seen),
			last_seen = GREATEST(wallet_stats.last_seen, EXCLUDED.last_seen)
	`
	if _, err := s.pool.Exec(ctx, sql, wallets, slugs, tradeCounts, buyVols, sellVols, firstSeens, lastSeens); err != nil {
		return wrapSQLErr("store.UpsertWalletStats", err)
	}
	return nil
}
