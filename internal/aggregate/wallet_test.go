package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dexflow/dexingest/internal/model"
)

func TestWalletStatsSeparatesBuyAndSellVolume(t *testing.T) {
	agg := NewWalletStatsAggregator()
	agg.Add(model.SwapRecord{Sender: "0xabc", Timestamp: 1, IsBuy: true, QuoteVol: decimal.RequireFromString("10")})
	agg.Add(model.SwapRecord{Sender: "0xabc", Timestamp: 2, IsBuy: false, QuoteVol: decimal.RequireFromString("4")})

	results := agg.Results()
	require.Len(t, results, 1)
	require.Equal(t, "0xabc", results[0].Wallet)
	require.Equal(t, int64(2), results[0].TradeCount)
	require.True(t, results[0].BuyVolumeQuote.Equal(decimal.RequireFromString("10")))
	require.True(t, results[0].SellVolumeQuote.Equal(decimal.RequireFromString("4")))
	require.Equal(t, int64(1), results[0].FirstSeen)
	require.Equal(t, int64(2), results[0].LastSeen)
}
