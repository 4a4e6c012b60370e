// Package orchestrator drives one pool end-to-end: inspect, resolve
// destination tables, compute gaps, walk block ranges, fetch and
// decode logs, enrich, aggregate, and upsert — grounded on
// original_source/evm/utils/orchestrator.py's run_evm_orchestration.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dexflow/dexingest/internal/aggregate"
	"github.com/dexflow/dexingest/internal/apperr"
	"github.com/dexflow/dexingest/internal/blockindex"
	"github.com/dexflow/dexingest/internal/chainclient"
	"github.com/dexflow/dexingest/internal/enrich"
	applog "github.com/dexflow/dexingest/internal/log"
	"github.com/dexflow/dexingest/internal/model"
	"github.com/dexflow/dexingest/internal/store"
	"github.com/dexflow/dexingest/internal/symbol"
	"github.com/dexflow/dexingest/internal/tokenmeta"
)

const (
	token0Selector = "0x0dfe1681"
	token1Selector = "0xd21220a7"

	maxDecodeWorkers  = 8
	logsPerSubChunk   = 200
	enrichmentEnabled = true
)

// Config bundles the per-run tunables Pipeline needs from
// internal/config, kept narrow so callers don't have to construct a
// full config.Config for tests.
type Config struct {
	DaysBack             int
	BlockChunkSize       uint64
	PriceDeviationPct    float64
	VolumeFloor          *float64
	DerivedMetricsWindow int
	RouterMap            enrich.RouterMap
}

// Pipeline is a per-pool driver, safe to reuse across runs against
// different pools sharing the same chain client and store.
type Pipeline struct {
	client   *chainclient.Client
	store    *store.Store
	tokens   *tokenmeta.Registry
	resolver *blockindex.SegmentResolver
	cfg      Config
}

// New builds a Pipeline bound to one chain's client.
func New(client *chainclient.Client, st *store.Store, cfg Config) *Pipeline {
	return &Pipeline{
		client:   client,
		store:    st,
		tokens:   tokenmeta.NewRegistry(),
		resolver: blockindex.NewSegmentResolver(client),
		cfg:      cfg,
	}
}

// Run executes one full ingestion pass for pool, matching spec.md
// §4.5.2: inspect pool, clean/normalize symbols, resolve/create
// tables, compute gaps, walk chunks, fan out decode, aggregate +
// upsert, cleanup, derived metrics, extraction-metrics logging.
func (p *Pipeline) Run(ctx context.Context, pool model.Pool, swapTopic string) error {
	start := time.Now()
	log := applog.New("chain", pool.Chain, "dex", pool.Dex, "pool", pool.Address)

	token0Addr, token1Addr, err := p.inspectPoolTokens(ctx, pool.Address)
	if err != nil {
		return err
	}
	meta0, err := p.tokens.Lookup(ctx, p.client, pool.Chain, token0Addr)
	if err != nil {
		return err
	}
	meta1, err := p.tokens.Lookup(ctx, p.client, pool.Chain, token1Addr)
	if err != nil {
		return err
	}

	sym0 := symbol.Normalize(meta0.Symbol)
	sym1 := symbol.Normalize(meta1.Symbol)

	baseIsToken1, err := symbol.ResolvePairOrientation(pool.Pair, sym0, sym1)
	if err != nil {
		return err
	}
	base, quote := pool.BaseQuote()

	klineTable := symbol.KlineTableName(pool.Chain, pool.Dex, base, quote)
	rawSwapsTable := symbol.RawSwapsTableName(pool.Chain, pool.Dex, base, quote)
	tradeSizeTable := fmt.Sprintf("%s_%s_%s%s_trade_sizes", pool.Chain, pool.Dex, strings.ToLower(base), strings.ToLower(quote))
	poolSlug := fmt.Sprintf("%s/%s", base, quote)

	if err := p.store.EnsureKlineTable(ctx, klineTable); err != nil {
		return err
	}
	if err := p.store.EnsureRawSwapsTable(ctx, rawSwapsTable); err != nil {
		return err
	}
	if err := p.store.EnsureTradeSizeTable(ctx, tradeSizeTable); err != nil {
		return err
	}
	if err := p.store.EnsureHourlyFlowTable(ctx); err != nil {
		return err
	}
	if err := p.store.EnsureWalletStatsTable(ctx); err != nil {
		return err
	}
	if err := p.store.EnsureExtractionMetricsTable(ctx); err != nil {
		return err
	}

	minTS, maxTS, err := p.store.ExistingMinuteRange(ctx, klineTable)
	if err != nil {
		return err
	}

	gaps, err := blockindex.ComputeGaps(ctx, p.client, klineTable, blockindex.ExistingRange{MinTS: minTS, MaxTS: maxTS}, p.cfg.DaysBack, time.Now())
	if err != nil {
		return err
	}
	if len(gaps) == 0 {
		log.Info("up to date, nothing to do")
		return nil
	}

	chunkSize := p.cfg.BlockChunkSize
	if chunkSize == 0 {
		chunkSize = 10_000
	}

	var totalLogs int64
	var firstBlock, lastBlock uint64
	haveRange := false

	for _, gap := range gaps {
		if !haveRange || gap.From < firstBlock {
			firstBlock = gap.From
		}
		if !haveRange || gap.To > lastBlock {
			lastBlock = gap.To
		}
		haveRange = true

		ranges := blockindex.WalkBlockRanges(gap.From, gap.To, chunkSize)
		for _, r := range ranges {
			rangeStart := time.Now()
			n, err := p.processRange(ctx, pool, swapTopic, r, meta0.Decimals, meta1.Decimals, baseIsToken1, rawSwapsTable, klineTable, tradeSizeTable, poolSlug, quote)
			if err != nil {
				return err
			}
			totalLogs += int64(n)
			log.Info("processed block range", "from", r.From, "to", r.To, "logs", n, "duration", time.Since(rangeStart).Seconds())
		}
	}

	if _, err := p.store.DeletePriceAnomaliesWithRetry(ctx, klineTable, p.cfg.PriceDeviationPct, p.cfg.VolumeFloor, 3, time.Second); err != nil {
		return err
	}

	window := p.cfg.DerivedMetricsWindow
	if window == 0 {
		window = 60
	}
	if err := p.store.ComputeDerivedMetrics(ctx, klineTable, window); err != nil {
		return err
	}

	metrics := model.ExtractionMetrics{
		Timestamp:       time.Now(),
		BlockRange:      fmt.Sprintf("%d-%d", firstBlock, lastBlock),
		LogCount:        totalLogs,
		DurationSeconds: time.Since(start).Seconds(),
		PoolSlug:        poolSlug,
	}
	if err := p.store.LogExtractionMetrics(ctx, metrics); err != nil {
		return err
	}
	log.Info("pipeline run complete", "block_range", metrics.BlockRange, "log_count", metrics.LogCount, "duration_seconds", metrics.DurationSeconds)
	return nil
}

// processRange fetches, decodes, optionally enriches, aggregates and
// upserts one block range, returning the number of logs fetched.
func (p *Pipeline) processRange(ctx context.Context, pool model.Pool, swapTopic string, r model.BlockRange, dec0, dec1 int32, baseIsToken1 bool, rawSwapsTable, klineTable, tradeSizeTable, poolSlug, quote string) (int, error) {
	rawLogs, err := p.client.GetLogs(ctx, pool.Address, []string{swapTopic}, r.From, r.To)
	if err != nil {
		return 0, err
	}
	if len(rawLogs) == 0 {
		return 0, nil
	}

	blockNumbers := make([]uint64, 0, len(rawLogs))
	seen := make(map[uint64]struct{}, len(rawLogs))
	for _, lg := range rawLogs {
		if _, ok := seen[lg.BlockNumber]; !ok {
			seen[lg.BlockNumber] = struct{}{}
			blockNumbers = append(blockNumbers, lg.BlockNumber)
		}
	}
	blockTimestamps, err := p.resolver.AssignTimestamps(ctx, blockNumbers)
	if err != nil {
		return 0, err
	}

	subChunks := decodeSubChunkCount(len(rawLogs), maxDecodeWorkers, logsPerSubChunk)
	chunks := chunkLogs(rawLogs, subChunks)

	swaps, err := scatterDecode(ctx, pool.Chain, pool.Dex, chunks, blockTimestamps, dec0, dec1, baseIsToken1)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindPersistentDecoder, "orchestrator.processRange", err)
	}
	if len(swaps) == 0 {
		return len(rawLogs), nil
	}

	if enrichmentEnabled && p.cfg.RouterMap != nil {
		e := enrich.New(p.client, p.cfg.RouterMap)
		if err := e.Enrich(ctx, swaps); err != nil {
			return 0, err
		}
	}

	if err := p.aggregateAndUpsert(ctx, swaps, rawSwapsTable, klineTable, tradeSizeTable, poolSlug, quote); err != nil {
		return 0, err
	}
	return len(rawLogs), nil
}

// aggregateAndUpsert is the Go analogue of
// aggregator_and_upsert_handler.aggregate_and_upsert: it folds one
// decoded batch into every destination aggregate and persists all of
// them in the same pass. The trade-size histogram is USD-denominated,
// so it only accumulates (and is only persisted) when quote is a
// recognized USD-equivalent — mirroring
// `if quote_pair in SUPPORTED_CONVERSIONS: trade_size_aggregator.add(log)`.
func (p *Pipeline) aggregateAndUpsert(ctx context.Context, swaps []model.SwapRecord, rawSwapsTable, klineTable, tradeSizeTable, poolSlug, quote string) error {
	if err := p.store.UpsertRawSwaps(ctx, rawSwapsTable, swaps); err != nil {
		return err
	}

	swapAgg := aggregate.NewSwapAggregator()
	walletAgg := aggregate.NewWalletStatsAggregator()
	hourlyAgg := aggregate.NewHourlyFlowAggregator()
	trackTradeSize := symbol.IsStablecoin(quote)
	tradeSizeAgg := aggregate.NewTradeSizeAggregator()

	for _, sw := range swaps {
		swapAgg.Add(sw)
		if trackTradeSize {
			tradeSizeAgg.Add(sw.QuoteVol)
		}
		walletAgg.Add(sw)
		hourlyAgg.Add(sw)
	}

	if err := p.store.UpsertKlines(ctx, klineTable, swapAgg.Aggregate()); err != nil {
		return err
	}
	if trackTradeSize {
		if err := p.store.UpsertTradeSizeHistogram(ctx, tradeSizeTable, tradeSizeAgg.Result()); err != nil {
			return err
		}
	}
	if err := p.store.UpsertHourlyFlow(ctx, poolSlug, hourlyAgg.Aggregate()); err != nil {
		return err
	}
	if err := p.store.UpsertWalletStats(ctx, poolSlug, walletAgg.Results()); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) inspectPoolTokens(ctx context.Context, poolAddr string) (token0, token1 string, err error) {
	raw0, err := p.client.EthCall(ctx, poolAddr, token0Selector)
	if err != nil {
		return "", "", err
	}
	raw1, err := p.client.EthCall(ctx, poolAddr, token1Selector)
	if err != nil {
		return "", "", err
	}
	t0, err := decodeAddressResult(raw0)
	if err != nil {
		return "", "", err
	}
	t1, err := decodeAddressResult(raw1)
	if err != nil {
		return "", "", err
	}
	return t0, t1, nil
}

func decodeAddressResult(raw []byte) (string, error) {
	if len(raw) < 32 {
		return "", apperr.Wrap(apperr.KindPersistentDecoder, "orchestrator.decodeAddressResult", fmt.Errorf("short eth_call result: %d bytes", len(raw)))
	}
	return "0x" + fmt.Sprintf("%x", raw[12:32]), nil
}
