package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dexflow/dexingest/internal/model"
)

// UpsertRawSwaps bulk-inserts decoded swaps with conflict-do-nothing on
// (block_number, tx_hash, log_index), so re-ingesting any block range
// produces zero new rows (spec.md I4, P3).
func (s *Store) UpsertRawSwaps(ctx context.Context, tableName string, swaps []model.SwapRecord) error {
	if len(swaps) == 0 {
		return nil
	}
	name, err := sqlIdent(tableName)
	if err != nil {
		return err
	}

	n := len(swaps)
	blockNumbers := make([]int64, n)
	txHashes := make([]string, n)
	logIndexes := make([]int32, n)
	timestamps := make([]time.Time, n)
	senders := make([]string, n)
	recipients := make([]string, n)
	callers := make([]*string, n)
	routerTags := make([]*string, n)
	baseDeltas := make([]string, n)
	quoteDeltas := make([]string, n)
	baseVols := make([]string, n)
	quoteVols := make([]string, n)
	prices := make([]string, n)
	isBuys := make([]bool, n)
	liquidities := make([]*string, n)
	ticks := make([]*int32, n)

	for i, sw := range swaps {
		blockNumbers[i] = int64(sw.BlockNumber)
		txHashes[i] = sw.TxHash
		logIndexes[i] = int32(sw.LogIndex)
		timestamps[i] = time.Unix(sw.Timestamp, 0).UTC()
		senders[i] = sw.Sender
		recipients[i] = sw.Recipient
		callers[i] = sw.Caller
		routerTags[i] = sw.RouterTag
		baseDeltas[i] = sw.BaseDelta.String()
		quoteDeltas[i] = sw.QuoteDelta.String()
		baseVols[i] = sw.BaseVol.String()
		quoteVols[i] = sw.QuoteVol.String()
		prices[i] = sw.Price.String()
		isBuys[i] = sw.IsBuy
		if sw.Liquidity != nil {
			v := sw.Liquidity.String()
			liquidities[i] = &v
		}
		ticks[i] = sw.Tick
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (
			block_number, tx_hash, log_index, ts, sender, recipient, caller, router_tag,
			base_delta, quote_delta, base_vol, quote_vol, price, is_buy, liquidity, tick
		)
		SELECT
			u.block_number, u.tx_hash, u.log_index, u.ts, u.sender, u.recipient, u.caller, u.router_tag,
			u.base_delta::numeric, u.quote_delta::numeric, u.base_vol::numeric, u.quote_vol::numeric,
			u.price::numeric, u.is_buy, u.liquidity::numeric, u.tick
		FROM UNNEST(
			$1::bigint[], $2::text[], $3::int[], $4::timestamptz[], $5::text[], $6::text[],
			$7::text[], $8::text[], $9::text[], $10::text[], $11::text[], $12::text[],
			$13::text[], $14::bool[], $15::text[], $16::int[]
		) AS u(
			block_number, tx_hash, log_index, ts, sender, recipient, caller, router_tag,
			base_delta, quote_delta, base_vol, quote_vol, price, is_buy, liquidity, tick
		)
		ON CONFLICT (block_number, tx_hash, log_index) DO NOTHING
	`, name)

	if _, err := s.pool.Exec(ctx, sql,
		blockNumbers, txHashes, logIndexes, timestamps, senders, recipients, callers, routerTags,
		baseDeltas, quoteDeltas, baseVols, quoteVols, prices, isBuys, liquidities, ticks,
	); err != nil {
		return wrapSQLErr("store.UpsertRawSwaps", err)
	}
	return nil
}
