package aggregate

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/dexflow/dexingest/internal/model"
)

// minBucketKey and maxBucketKey clamp the histogram to spec.md's
// [-2, 6] range (sub-cent trades through eight-figure trades).
const (
	minBucketKey = -2
	maxBucketKey = 6
)

// TradeSizeAggregator buckets quote-denominated trade sizes by
// floor(log10(quote_vol)), clamped to [-2, 6]. Grounded on
// aggreation/trade_size_aggregator.py. Only meant to be fed swaps whose
// quote asset is in the USD-equivalent set (spec.md §4.4.1) — callers
// filter before calling Add.
type TradeSizeAggregator struct {
	counts model.TradeSizeBuckets
}

// NewTradeSizeAggregator returns an empty histogram.
func NewTradeSizeAggregator() *TradeSizeAggregator {
	return &TradeSizeAggregator{}
}

// epsilon substitutes for a zero or negative quote volume so log10
// never sees a non-positive input (spec.md §4.4.1: "max(quote_vol, ε)").
const epsilon = 1e-9

// Add increments the clamped bucket for quoteVol.
func (a *TradeSizeAggregator) Add(quoteVol decimal.Decimal) {
	key := bucketKey(quoteVol)
	a.counts.Counts[model.BucketIndex(key)]++
}

// Result returns the finished histogram.
func (a *TradeSizeAggregator) Result() model.TradeSizeBuckets {
	return a.counts
}

func bucketKey(quoteVol decimal.Decimal) int {
	f, _ := quoteVol.Float64()
	if f <= 0 {
		f = epsilon
	}
	key := int(math.Floor(math.Log10(f)))
	if key < minBucketKey {
		key = minBucketKey
	}
	if key > maxBucketKey {
		key = maxBucketKey
	}
	return key
}
