package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dexflow/dexingest/internal/model"
)

// These exercise the pieces of store logic that resolve before any
// pool round trip — identifier validation and empty-batch short
// circuits — so a nil pool is safe to embed.

func newNilStore() *Store { return &Store{pool: nil} }

func TestEnsureKlineTableRejectsUnsafeName(t *testing.T) {
	s := newNilStore()
	err := s.EnsureKlineTable(context.Background(), "arb_uni_weth-usdc_1m_klines; DROP TABLE x")
	require.Error(t, err)
}

func TestEnsureRawSwapsTableRejectsUnsafeName(t *testing.T) {
	s := newNilStore()
	err := s.EnsureRawSwapsTable(context.Background(), "bad name")
	require.Error(t, err)
}

func TestEnsureTradeSizeTableRejectsUnsafeName(t *testing.T) {
	s := newNilStore()
	err := s.EnsureTradeSizeTable(context.Background(), "")
	require.Error(t, err)
}

func TestUpsertKlinesEmptySliceNoop(t *testing.T) {
	s := newNilStore()
	err := s.UpsertKlines(context.Background(), "arb_uniswap_v3_weth_usdc_1m_klines", nil)
	require.NoError(t, err)
}

func TestUpsertRawSwapsEmptySliceNoop(t *testing.T) {
	s := newNilStore()
	err := s.UpsertRawSwaps(context.Background(), "arb_uniswap_v3_weth_usdc_raw_swaps", nil)
	require.NoError(t, err)
}

func TestUpsertTradeSizeHistogramAllZeroCountsNoop(t *testing.T) {
	s := newNilStore()
	err := s.UpsertTradeSizeHistogram(context.Background(), "arb_uniswap_v3_trade_sizes", model.TradeSizeBuckets{})
	require.NoError(t, err)
}

func TestUpsertHourlyFlowEmptySliceNoop(t *testing.T) {
	s := newNilStore()
	err := s.UpsertHourlyFlow(context.Background(), "weth-usdc", nil)
	require.NoError(t, err)
}

func TestUpsertWalletStatsEmptySliceNoop(t *testing.T) {
	s := newNilStore()
	err := s.UpsertWalletStats(context.Background(), "weth-usdc", nil)
	require.NoError(t, err)
}

func TestUpsertTradeSizeHistogramRejectsUnsafeName(t *testing.T) {
	s := newNilStore()
	buckets := model.TradeSizeBuckets{}
	buckets.Counts[model.BucketIndex(0)] = 3
	err := s.UpsertTradeSizeHistogram(context.Background(), "bad;name", buckets)
	require.Error(t, err)
}
