// Package aggregate folds decoded swap records into minute buckets, a
// trade-size histogram, and (supplemental) per-wallet and hourly-flow
// statistics. Every aggregator here is a pure accumulator: callers feed
// it decoded swaps in any order and read the result once, so re-running
// over the same (or a reordered, overlapping) set of swaps yields an
// identical result — the property the destination upsert then extends
// across process runs (spec.md P1).
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/dexflow/dexingest/internal/model"
)

type swapBucket struct {
	openPrice, closePrice decimal.Decimal
	openTS, closeTS       int64
	hasOpen, hasClose     bool
	highPrice, lowPrice   decimal.Decimal
	hasRange              bool
	swapCount             int64
	totalBase, totalQuote decimal.Decimal
}

// SwapAggregator folds a stream of decoded swap records into one
// OHLCV bucket per UTC minute. Grounded on
// aggreation/swap_aggregator.py: same open/close-by-timestamp,
// high/low-by-price, additive-volume discipline (spec.md §4.4.1, P2).
type SwapAggregator struct {
	buckets map[int64]*swapBucket // keyed by minute_start unix seconds
}

// NewSwapAggregator returns an empty aggregator.
func NewSwapAggregator() *SwapAggregator {
	return &SwapAggregator{buckets: make(map[int64]*swapBucket)}
}

// Add folds one decoded swap into its minute bucket.
func (a *SwapAggregator) Add(swap model.SwapRecord) {
	minute := swap.MinuteStart().Unix()
	b, ok := a.buckets[minute]
	if !ok {
		b = &swapBucket{
			totalBase:  decimal.Zero,
			totalQuote: decimal.Zero,
		}
		a.buckets[minute] = b
	}

	if !b.hasOpen || swap.Timestamp < b.openTS {
		b.openPrice = swap.Price
		b.openTS = swap.Timestamp
		b.hasOpen = true
	}
	if !b.hasClose || swap.Timestamp > b.closeTS {
		b.closePrice = swap.Price
		b.closeTS = swap.Timestamp
		b.hasClose = true
	}

	if !b.hasRange {
		b.highPrice = swap.Price
		b.lowPrice = swap.Price
		b.hasRange = true
	} else {
		if swap.Price.GreaterThan(b.highPrice) {
			b.highPrice = swap.Price
		}
		if swap.Price.LessThan(b.lowPrice) {
			b.lowPrice = swap.Price
		}
	}

	b.totalBase = b.totalBase.Add(swap.BaseVol)
	b.totalQuote = b.totalQuote.Add(swap.QuoteVol)
	b.swapCount++
}

// Aggregate returns the finished per-minute buckets. avg_price is the
// volume-weighted average price (total_quote/total_base), left zero
// when there was no base volume (matches the source's "None" case:
// callers should treat a bucket with SwapCount==0 specially, but that
// never occurs here since a bucket only exists once Add has run).
func (a *SwapAggregator) Aggregate() []model.MinuteBucket {
	out := make([]model.MinuteBucket, 0, len(a.buckets))
	for minute, b := range a.buckets {
		var avg decimal.Decimal
		if !b.totalBase.IsZero() {
			avg = b.totalQuote.Div(b.totalBase)
		}
		out = append(out, model.MinuteBucket{
			MinuteStart:      secondsToTime(minute),
			OpenPrice:        b.openPrice,
			OpenTS:           b.openTS,
			ClosePrice:       b.closePrice,
			CloseTS:          b.closeTS,
			HighPrice:        b.highPrice,
			LowPrice:         b.lowPrice,
			AvgPrice:         avg,
			SwapCount:        b.swapCount,
			TotalBaseVolume:  b.totalBase,
			TotalQuoteVolume: b.totalQuote,
		})
	}
	return out
}

// Reset clears all accumulated buckets.
func (a *SwapAggregator) Reset() {
	a.buckets = make(map[int64]*swapBucket)
}
