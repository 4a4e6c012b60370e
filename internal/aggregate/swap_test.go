package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dexflow/dexingest/internal/model"
)

func swapAt(ts int64, price string) model.SwapRecord {
	p := decimal.RequireFromString(price)
	return model.SwapRecord{
		Timestamp: ts,
		Price:     p,
		BaseVol:   decimal.RequireFromString("1"),
		QuoteVol:  p,
	}
}

// TestScenario1SingleMinuteThreeSwaps matches spec.md §8 scenario 1:
// swaps at T, T+10s, T+30s with prices 100, 105, 102 fold into one
// bucket with open=100, close=102, high=105, low=100, swap_count=3.
func TestScenario1SingleMinuteThreeSwaps(t *testing.T) {
	base := int64(1_700_000_000)
	base -= base % 60 // align to a minute boundary

	agg := NewSwapAggregator()
	agg.Add(swapAt(base, "100"))
	agg.Add(swapAt(base+10, "105"))
	agg.Add(swapAt(base+30, "102"))

	buckets := agg.Aggregate()
	require.Len(t, buckets, 1)
	b := buckets[0]
	require.True(t, b.OpenPrice.Equal(decimal.RequireFromString("100")))
	require.True(t, b.ClosePrice.Equal(decimal.RequireFromString("102")))
	require.True(t, b.HighPrice.Equal(decimal.RequireFromString("105")))
	require.True(t, b.LowPrice.Equal(decimal.RequireFromString("100")))
	require.Equal(t, int64(3), b.SwapCount)
}

// TestScenario3OutOfOrderDeliveryMatchesInOrder matches spec.md §8
// scenario 3: feeding the same three swaps in a different order
// produces an identical bucket (P1, P2).
func TestScenario3OutOfOrderDeliveryMatchesInOrder(t *testing.T) {
	base := int64(1_700_000_000)
	base -= base % 60

	inOrder := NewSwapAggregator()
	inOrder.Add(swapAt(base, "100"))
	inOrder.Add(swapAt(base+10, "105"))
	inOrder.Add(swapAt(base+30, "102"))
	want := inOrder.Aggregate()[0]

	outOfOrder := NewSwapAggregator()
	outOfOrder.Add(swapAt(base+10, "105"))
	outOfOrder.Add(swapAt(base, "100"))
	outOfOrder.Add(swapAt(base+30, "102"))
	got := outOfOrder.Aggregate()[0]

	require.True(t, want.OpenPrice.Equal(got.OpenPrice))
	require.True(t, want.ClosePrice.Equal(got.ClosePrice))
	require.True(t, want.HighPrice.Equal(got.HighPrice))
	require.True(t, want.LowPrice.Equal(got.LowPrice))
	require.Equal(t, want.SwapCount, got.SwapCount)
}

func TestSwapsInDifferentMinutesProduceSeparateBuckets(t *testing.T) {
	agg := NewSwapAggregator()
	agg.Add(swapAt(0, "1"))
	agg.Add(swapAt(60, "2"))
	require.Len(t, agg.Aggregate(), 2)
}

func TestAvgPriceIsVWAP(t *testing.T) {
	agg := NewSwapAggregator()
	s1 := swapAt(0, "100")
	s1.BaseVol = decimal.RequireFromString("2")
	s1.QuoteVol = decimal.RequireFromString("200")
	s2 := swapAt(1, "100")
	s2.BaseVol = decimal.RequireFromString("1")
	s2.QuoteVol = decimal.RequireFromString("100")
	agg.Add(s1)
	agg.Add(s2)

	b := agg.Aggregate()[0]
	require.True(t, b.AvgPrice.Equal(decimal.RequireFromString("100")))
}
