// Package symbol cleans and normalizes ERC-20 token symbols pulled
// off-chain, and derives the per-pool destination table names from
// them. Grounded on app/utils/clean_util.py and app/storage/db_utils.py.
package symbol

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/dexflow/dexingest/internal/apperr"
)

// Replacements substitutes glyphs that occasionally show up in token
// metadata for their ASCII ticker equivalent, applied before NFKD
// folding.
var Replacements = map[string]string{
	"₮": "t",   // Tether
	"Ξ": "eth", // ETH symbol
	"Ƀ": "btc", // Bitcoin symbol
}

// WrapperMap collapses a wrapped/staked asset's symbol to its
// underlying asset for quote-pair and USD-conversion purposes.
var WrapperMap = map[string]string{
	"weth":  "eth",
	"cbeth": "eth",
	"reth":  "eth",
	"steth": "eth",
	"wbtc":  "btc",
	"tbtc":  "btc",
}

// SupportedConversions lists the quote assets the USD-valuation stage
// can convert against without an external price feed. The trade-size
// histogram only accumulates when the quote leg is one of these.
var SupportedConversions = map[string]struct{}{
	"usdc": {}, "usdt": {}, "dai": {}, "busd": {}, "usdp": {}, "tusd": {},
}

// IsStablecoin reports whether the (already-cleaned, lowercase) symbol
// is one of the recognized USD-pegged stablecoins.
func IsStablecoin(symbol string) bool {
	_, ok := SupportedConversions[strings.ToLower(symbol)]
	return ok
}

// Clean strips a raw on-chain symbol down to lowercase ASCII
// alphanumerics: known unicode glyphs are swapped for their ticker
// first, then the rest is folded through NFKD and anything left
// outside [a-zA-Z0-9] is dropped.
func Clean(rawSymbol string) string {
	s := rawSymbol
	for glyph, repl := range Replacements {
		s = strings.ReplaceAll(s, glyph, repl)
	}

	folded := norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r > 0x7f {
			continue // ascii-only, mirrors Python's encode("ascii", "ignore")
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}

// Normalize cleans the symbol and then collapses known wrapped assets
// to their underlying ticker (weth -> eth, wbtc -> btc, ...).
func Normalize(rawSymbol string) string {
	cleaned := Clean(rawSymbol)
	if underlying, ok := WrapperMap[cleaned]; ok {
		return underlying
	}
	return cleaned
}

// KlineTableName builds the 1-minute kline destination table name for
// (chain, dex, base, quote), matching table_exists_agg's naming scheme.
func KlineTableName(chain, dex, base, quote string) string {
	return fmt.Sprintf("%s_%s_%s%s_1m_klines", strings.ToLower(chain), strings.ToLower(dex), strings.ToLower(base), strings.ToLower(quote))
}

// RawSwapsTableName builds the raw-swaps destination table name
// accompanying a kline table.
func RawSwapsTableName(chain, dex, base, quote string) string {
	return fmt.Sprintf("%s_%s_%s%s_raw_swaps", strings.ToLower(chain), strings.ToLower(dex), strings.ToLower(base), strings.ToLower(quote))
}

// ResolvePairOrientation picks which of (token0, token1) is the base
// asset for the user-configured pair ("ARB/USDC") even when the pool's
// on-chain token0/token1 order is reversed. Returns baseIsToken1.
func ResolvePairOrientation(pair, symbol0, symbol1 string) (baseIsToken1 bool, err error) {
	parts := strings.SplitN(strings.ToUpper(pair), "/", 2)
	if len(parts) != 2 {
		return false, apperr.Wrap(apperr.KindInvalidConfig, "symbol.ResolvePairOrientation",
			fmt.Errorf("pair %q is not in BASE/QUOTE form", pair))
	}
	desiredBase := parts[0]

	s0, s1 := strings.ToUpper(symbol0), strings.ToUpper(symbol1)
	switch desiredBase {
	case s0:
		return false, nil
	case s1:
		return true, nil
	default:
		return false, apperr.Wrap(apperr.KindInvalidConfig, "symbol.ResolvePairOrientation",
			fmt.Errorf("pair %q base not found among pool tokens %s/%s", pair, symbol0, symbol1))
	}
}
