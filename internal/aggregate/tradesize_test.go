package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dexflow/dexingest/internal/model"
)

func TestTradeSizeBucketKeyClamps(t *testing.T) {
	cases := []struct {
		quoteVol string
		wantKey  int
	}{
		{"0.001", -2},    // below lower bound clamps to -2
		{"0.5", -1},      // floor(log10(0.5)) == -1
		{"151", 2},       // floor(log10(151)) == 2
		{"999999999", 6}, // above upper bound clamps to 6
	}
	for _, c := range cases {
		agg := NewTradeSizeAggregator()
		agg.Add(decimal.RequireFromString(c.quoteVol))
		got := agg.Result()
		require.Equal(t, int64(1), got.Counts[model.BucketIndex(c.wantKey)], "quoteVol=%s", c.quoteVol)
	}
}

func TestTradeSizeZeroVolumeUsesEpsilonFloor(t *testing.T) {
	agg := NewTradeSizeAggregator()
	agg.Add(decimal.Zero)
	got := agg.Result()
	require.Equal(t, int64(1), got.Counts[model.BucketIndex(-2)])
}
