package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/dexflow/dexingest/internal/model"
)

type walletState struct {
	tradeCount      int64
	buyVolumeQuote  decimal.Decimal
	sellVolumeQuote decimal.Decimal
	firstSeen       int64
	lastSeen        int64
	seen            bool
}

// WalletStatsAggregator rolls decoded swaps up per wallet (supplemental
// to spec.md, grounded on aggreation/wallet_stats_aggregator.py; scoped
// down to the volume/activity fields this engine persists — PnL tracking
// in the original requires a USD price feed this engine doesn't carry).
type WalletStatsAggregator struct {
	wallets map[string]*walletState
}

// NewWalletStatsAggregator returns an empty aggregator.
func NewWalletStatsAggregator() *WalletStatsAggregator {
	return &WalletStatsAggregator{wallets: make(map[string]*walletState)}
}

// Add folds one decoded swap into its sender wallet's rollup.
func (a *WalletStatsAggregator) Add(swap model.SwapRecord) {
	st, ok := a.wallets[swap.Sender]
	if !ok {
		st = &walletState{buyVolumeQuote: decimal.Zero, sellVolumeQuote: decimal.Zero}
		a.wallets[swap.Sender] = st
	}

	st.tradeCount++
	if swap.IsBuy {
		st.buyVolumeQuote = st.buyVolumeQuote.Add(swap.QuoteVol)
	} else {
		st.sellVolumeQuote = st.sellVolumeQuote.Add(swap.QuoteVol)
	}

	if !st.seen || swap.Timestamp < st.firstSeen {
		st.firstSeen = swap.Timestamp
	}
	if !st.seen || swap.Timestamp > st.lastSeen {
		st.lastSeen = swap.Timestamp
	}
	st.seen = true
}

// Results returns one rollup row per wallet seen.
func (a *WalletStatsAggregator) Results() []model.WalletStats {
	out := make([]model.WalletStats, 0, len(a.wallets))
	for wallet, st := range a.wallets {
		out = append(out, model.WalletStats{
			Wallet:          wallet,
			TradeCount:      st.tradeCount,
			BuyVolumeQuote:  st.buyVolumeQuote,
			SellVolumeQuote: st.sellVolumeQuote,
			FirstSeen:       st.firstSeen,
			LastSeen:        st.lastSeen,
		})
	}
	return out
}
