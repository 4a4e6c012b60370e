// Package tokenmeta fetches and caches ERC-20 token metadata (decimals,
// symbol) needed to scale swap amounts and build destination table
// names. A token's metadata never changes once deployed, so it is
// cached process-wide behind a bounded LRU keyed by (chain, address),
// mirroring the teacher's generic cache idiom (utils.LRUCache) built
// here directly on the same golang-lru dependency the block index
// resolver already uses.
package tokenmeta

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dexflow/dexingest/internal/apperr"
)

const cacheCapacity = 4096

// selector for ERC-20 decimals()
const decimalsSelector = "0x313ce567"

// selector for ERC-20 symbol()
const symbolSelector = "0x95d89b41"

// EthCaller is the chain-client surface Lookup needs. *chainclient.Client
// satisfies it; tests substitute a mock.
//
//go:generate go run go.uber.org/mock/mockgen -destination=mock_ethcaller_test.go -package=tokenmeta . EthCaller
type EthCaller interface {
	EthCall(ctx context.Context, to, data string) ([]byte, error)
}

// Metadata is what the rest of the pipeline needs to know about a token.
type Metadata struct {
	Decimals int32
	Symbol   string
}

type cacheKey struct {
	chain   string
	address string
}

// Registry resolves and caches token metadata per chain.
type Registry struct {
	cache *lru.Cache[cacheKey, Metadata]
}

// NewRegistry builds an empty, bounded token metadata cache.
func NewRegistry() *Registry {
	c, _ := lru.New[cacheKey, Metadata](cacheCapacity)
	return &Registry{cache: c}
}

// Lookup returns a token's decimals and symbol, fetching via eth_call
// and caching the result on first use.
func (r *Registry) Lookup(ctx context.Context, client EthCaller, chain, address string) (Metadata, error) {
	key := cacheKey{chain: strings.ToLower(chain), address: strings.ToLower(address)}
	if v, ok := r.cache.Get(key); ok {
		return v, nil
	}

	decRaw, err := client.EthCall(ctx, address, decimalsSelector)
	if err != nil {
		return Metadata{}, apperr.Wrap(apperr.KindTransientRPC, "tokenmeta.Lookup", err)
	}
	decimals, err := decodeUint8(decRaw)
	if err != nil {
		return Metadata{}, apperr.Wrap(apperr.KindPersistentDecoder, "tokenmeta.Lookup", err)
	}

	symRaw, err := client.EthCall(ctx, address, symbolSelector)
	if err != nil {
		return Metadata{}, apperr.Wrap(apperr.KindTransientRPC, "tokenmeta.Lookup", err)
	}
	sym, err := decodeString(symRaw)
	if err != nil {
		return Metadata{}, apperr.Wrap(apperr.KindPersistentDecoder, "tokenmeta.Lookup", err)
	}

	meta := Metadata{Decimals: decimals, Symbol: sym}
	r.cache.Add(key, meta)
	return meta, nil
}

func decodeUint8(raw []byte) (int32, error) {
	if len(raw) < 32 {
		return 0, fmt.Errorf("decimals() returned %d bytes, want >= 32", len(raw))
	}
	return int32(raw[31]), nil
}

// decodeString handles both the common dynamic-string ABI encoding
// (offset + length + data) and the legacy fixed bytes32 encoding some
// old tokens (e.g. MKR) use for symbol().
func decodeString(raw []byte) (string, error) {
	if len(raw) == 32 {
		return strings.TrimRight(string(trimNulTail(raw)), "\x00"), nil
	}
	if len(raw) < 64 {
		return "", fmt.Errorf("symbol() returned %d bytes, too short for dynamic string", len(raw))
	}
	length := int(raw[63])
	start := 64
	end := start + length
	if end > len(raw) {
		return "", fmt.Errorf("symbol() length %d exceeds payload", length)
	}
	return string(raw[start:end]), nil
}

func trimNulTail(raw []byte) []byte {
	i := len(raw)
	for i > 0 && raw[i-1] == 0 {
		i--
	}
	return raw[:i]
}
