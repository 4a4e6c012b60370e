// Package enrich attaches the true transaction-originating EOA and a
// router/aggregator tag to decoded swap records, batching
// eth_getTransactionByHash calls and rate-limiting them so enrichment
// never outruns the upstream RPC provider's free-tier quota. Grounded
// on original_source/evm/utils/enrich_tx_batch.py.
package enrich

import (
	"context"
	"strings"

	"golang.org/x/time/rate"

	"github.com/dexflow/dexingest/internal/apperr"
	"github.com/dexflow/dexingest/internal/chainclient"
	"github.com/dexflow/dexingest/internal/model"
)

const (
	// BatchSize mirrors the Alchemy eth_getTransactionByHash hard limit.
	BatchSize = 100
	// RateLimitPerSec keeps enrichment traffic under typical free-tier caps.
	RateLimitPerSec = 900
)

// RouterMap labels known router/aggregator contract addresses
// (lower-cased) the way original_source's settings.ROUTER_MAP does.
type RouterMap map[string]string

// TagEOA, TagRouterAgg mirror enrich_tx_batch.py's tag vocabulary.
const (
	TagEOA       = "EOA"
	TagRouterAgg = "router/agg"
)

// Enricher batches transaction lookups and tags swap records with
// caller/router_tag.
type Enricher struct {
	client    *chainclient.Client
	routerMap RouterMap
	limiter   *rate.Limiter
}

// New builds an Enricher around client, rate-limited to RateLimitPerSec.
func New(client *chainclient.Client, routerMap RouterMap) *Enricher {
	return &Enricher{
		client:    client,
		routerMap: routerMap,
		limiter:   rate.NewLimiter(rate.Limit(RateLimitPerSec), BatchSize),
	}
}

// Enrich mutates swaps in place: every record gets a RouterTag, and
// Caller is set to the transaction-level `from` whenever the
// transaction lookup resolved (nil otherwise).
func (e *Enricher) Enrich(ctx context.Context, swaps []model.SwapRecord) error {
	if len(swaps) == 0 {
		return nil
	}

	hashSet := make(map[string]struct{})
	for _, sw := range swaps {
		hashSet[stripHexPrefix(sw.TxHash)] = struct{}{}
	}
	hashes := make([]string, 0, len(hashSet))
	for h := range hashSet {
		hashes = append(hashes, "0x"+h)
	}

	fromMap := make(map[string]string, len(hashes))
	for start := 0; start < len(hashes); start += BatchSize {
		end := start + BatchSize
		if end > len(hashes) {
			end = len(hashes)
		}
		batch := hashes[start:end]

		if err := e.limiter.WaitN(ctx, len(batch)); err != nil {
			return apperr.Wrap(apperr.KindTransientRPC, "enrich.Enrich", err)
		}

		txs, err := e.client.GetTransactionByHash(ctx, batch)
		if err != nil {
			return err
		}
		for hash, tx := range txs {
			fromMap[stripHexPrefix(hash)] = strings.ToLower(tx.From)
		}
	}

	for i := range swaps {
		h := stripHexPrefix(swaps[i].TxHash)
		sender := strings.ToLower(swaps[i].Sender)

		caller, ok := fromMap[h]
		var callerPtr *string
		if ok {
			c := caller
			callerPtr = &c
		}
		swaps[i].Caller = callerPtr

		tag := e.tag(sender, caller, ok)
		swaps[i].RouterTag = &tag
	}
	return nil
}

func stripHexPrefix(s string) string {
	s = strings.ToLower(s)
	if len(s) >= 2 && s[0:2] == "0x" {
		return s[2:]
	}
	return s
}

func (e *Enricher) tag(sender, caller string, resolved bool) string {
	if label, known := e.routerMap[sender]; known {
		return label
	}
	if resolved && caller == sender {
		return TagEOA
	}
	return TagRouterAgg
}
