package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dexflow/dexingest/internal/model"
)

type hourBucket struct {
	buyVolumeQuote  decimal.Decimal
	sellVolumeQuote decimal.Decimal
	wallets         map[string]struct{}
}

// HourlyFlowAggregator folds decoded swaps into per-pool hourly
// buy/sell flow (supplemental to spec.md, grounded on
// crunch_pool_flow.py). The original computes this with a SQL query
// straight against the raw-swaps table; here it runs as an in-memory
// fold over the same decoded records the minute aggregator sees, kept
// in lockstep with the rest of the aggregate package instead of a
// second round-trip to Postgres.
type HourlyFlowAggregator struct {
	buckets map[int64]*hourBucket // keyed by hour_start unix seconds
}

// NewHourlyFlowAggregator returns an empty aggregator.
func NewHourlyFlowAggregator() *HourlyFlowAggregator {
	return &HourlyFlowAggregator{buckets: make(map[int64]*hourBucket)}
}

// Add folds one decoded swap into its containing hour bucket.
func (a *HourlyFlowAggregator) Add(swap model.SwapRecord) {
	hour := time.Unix(swap.Timestamp, 0).UTC().Truncate(time.Hour).Unix()
	b, ok := a.buckets[hour]
	if !ok {
		b = &hourBucket{
			buyVolumeQuote:  decimal.Zero,
			sellVolumeQuote: decimal.Zero,
			wallets:         make(map[string]struct{}),
		}
		a.buckets[hour] = b
	}
	if swap.IsBuy {
		b.buyVolumeQuote = b.buyVolumeQuote.Add(swap.QuoteVol)
	} else {
		b.sellVolumeQuote = b.sellVolumeQuote.Add(swap.QuoteVol)
	}
	b.wallets[swap.Sender] = struct{}{}
}

// Aggregate returns the finished per-hour rollups.
func (a *HourlyFlowAggregator) Aggregate() []model.HourlyFlow {
	out := make([]model.HourlyFlow, 0, len(a.buckets))
	for hour, b := range a.buckets {
		out = append(out, model.HourlyFlow{
			HourStart:       secondsToTime(hour),
			BuyVolumeQuote:  b.buyVolumeQuote,
			SellVolumeQuote: b.sellVolumeQuote,
			NetFlowQuote:    b.buyVolumeQuote.Sub(b.sellVolumeQuote),
			UniqueWallets:   int64(len(b.wallets)),
		})
	}
	return out
}
