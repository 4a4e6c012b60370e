package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dexflow/dexingest/internal/model"
)

func TestHourlyFlowNetsBuysAgainstSells(t *testing.T) {
	agg := NewHourlyFlowAggregator()
	agg.Add(model.SwapRecord{Sender: "0x1", Timestamp: 0, IsBuy: true, QuoteVol: decimal.RequireFromString("100")})
	agg.Add(model.SwapRecord{Sender: "0x2", Timestamp: 10, IsBuy: false, QuoteVol: decimal.RequireFromString("30")})

	rows := agg.Aggregate()
	require.Len(t, rows, 1)
	require.True(t, rows[0].NetFlowQuote.Equal(decimal.RequireFromString("70")))
	require.Equal(t, int64(2), rows[0].UniqueWallets)
}

func TestHourlyFlowSeparatesHours(t *testing.T) {
	agg := NewHourlyFlowAggregator()
	agg.Add(model.SwapRecord{Sender: "0x1", Timestamp: 0, IsBuy: true, QuoteVol: decimal.RequireFromString("1")})
	agg.Add(model.SwapRecord{Sender: "0x1", Timestamp: 3700, IsBuy: true, QuoteVol: decimal.RequireFromString("1")})
	require.Len(t, agg.Aggregate(), 2)
}
