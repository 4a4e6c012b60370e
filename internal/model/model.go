// Package model holds the value types shared across the ingestion
// pipeline: pools, normalized swap records, minute buckets and the
// auxiliary aggregates derived from them.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pool mirrors the externally-populated `pools` table (engine reads it,
// never writes it).
type Pool struct {
	ID          int64
	Chain       string
	Dex         string
	Pair        string // oriented base/quote label, e.g. "ARB/USDC"
	Address     string // checksum-normalized, globally unique
	Active      bool
	LastStarted *time.Time
}

// BaseQuote splits Pair into its base and quote legs, upper-cased.
func (p Pool) BaseQuote() (base, quote string) {
	for i := 0; i < len(p.Pair); i++ {
		if p.Pair[i] == '/' {
			return upper(p.Pair[:i]), upper(p.Pair[i+1:])
		}
	}
	return upper(p.Pair), ""
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// BlockRange is an inclusive [From, To] block span.
type BlockRange struct {
	From uint64
	To   uint64
}

// SwapRecord is the normalized form every decoder produces, keyed
// uniquely per pool by (BlockNumber, TxHash, LogIndex).
type SwapRecord struct {
	BlockNumber uint64
	TxHash      string
	LogIndex    uint

	Timestamp int64 // seconds since epoch, interpolated

	Sender    string
	Recipient string
	Caller    *string // optional, filled by enrichment
	RouterTag *string // optional, filled by enrichment

	BaseDelta  decimal.Decimal // signed, pool perspective
	QuoteDelta decimal.Decimal // signed, pool perspective
	BaseVol    decimal.Decimal // unsigned
	QuoteVol   decimal.Decimal // unsigned
	Price      decimal.Decimal // quote per base
	IsBuy      bool

	Liquidity *decimal.Decimal // v3-style only
	Tick      *int32           // v3-style only
}

// MinuteStart truncates the record's timestamp to the containing UTC
// minute.
func (s SwapRecord) MinuteStart() time.Time {
	return time.Unix(s.Timestamp, 0).UTC().Truncate(time.Minute)
}

// MinuteBucket is one OHLCV candle, keyed by MinuteStart.
type MinuteBucket struct {
	MinuteStart time.Time

	OpenPrice  decimal.Decimal
	OpenTS     int64
	ClosePrice decimal.Decimal
	CloseTS    int64
	HighPrice  decimal.Decimal
	LowPrice   decimal.Decimal
	AvgPrice   decimal.Decimal // VWAP = sum(quote_vol) / sum(base_vol)

	SwapCount         int64
	TotalBaseVolume   decimal.Decimal
	TotalQuoteVolume  decimal.Decimal

	// Optional derived columns, populated by the post-ingest pass.
	TradeImbalance  *decimal.Decimal
	PriceVolatility *decimal.Decimal
	PriceMomentum   *decimal.Decimal
}

// TradeSizeBuckets is the fixed 9-bucket histogram, keyed by
// floor(log10(quote_vol_usd)) clamped to [-2, 6].
type TradeSizeBuckets struct {
	Counts [9]int64 // index 0 == bucket -2 ... index 8 == bucket 6
}

// BucketIndex converts a clamped bucket key in [-2, 6] into a Counts index.
func BucketIndex(key int) int { return key + 2 }

// WalletStats is the per-wallet rollup (supplemental to spec.md,
// sourced from original_source/wallet_stats_aggregator.py).
type WalletStats struct {
	Wallet          string
	TradeCount      int64
	BuyVolumeQuote  decimal.Decimal
	SellVolumeQuote decimal.Decimal
	FirstSeen       int64
	LastSeen        int64
}

// HourlyFlow is the per-pool hourly rollup (supplemental to spec.md,
// sourced from original_source/crunch_pool_flow.py).
type HourlyFlow struct {
	HourStart       time.Time
	BuyVolumeQuote  decimal.Decimal
	SellVolumeQuote decimal.Decimal
	NetFlowQuote    decimal.Decimal
	UniqueWallets   int64
}

// ExtractionMetrics is one append-only row describing a completed
// pipeline run, written to `extraction_metrics`.
type ExtractionMetrics struct {
	Timestamp       time.Time
	BlockRange      string
	LogCount        int64
	DurationSeconds float64
	PoolSlug        string
}
