// Package decoder turns raw EVM logs into model.SwapRecord values. Each
// decoder is a pure function selected by (chain, dex); it has no access
// to the network and no side effects, so it can run as an independent
// fan-out worker (spec.md §4.3).
package decoder

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/dexflow/dexingest/internal/apperr"
	"github.com/dexflow/dexingest/internal/chainclient"
	"github.com/dexflow/dexingest/internal/model"
)

// Decoder decodes one chunk of logs for a single pool. dec0/dec1 are the
// pool's token0/token1 decimals; baseIsToken1 says which side is the
// base asset. A log that fails to decode is skipped; a chunk-level
// failure (bad args, ABI mismatch on every log) is returned to the
// caller so the coordinator can mark the chunk failed.
type Decoder func(logs []chainclient.RawLog, blockTimestamps map[uint64]int64, dec0, dec1 int32, baseIsToken1 bool) ([]model.SwapRecord, error)

// Key selects a decoder by chain and DEX name, e.g. {"arbitrum", "uniswap_v3"}.
type Key struct {
	Chain string
	Dex   string
}

var registry = map[Key]Decoder{
	{Chain: "arbitrum", Dex: "uniswap_v3"}: DecodeUniswapV3,
	{Chain: "base", Dex: "uniswap_v3"}:     DecodeUniswapV3,
	{Chain: "arbitrum", Dex: "camelot_v2"}: DecodeUniswapV2,
	{Chain: "base", Dex: "aerodrome"}:      DecodeUniswapV2,
	{Chain: "base", Dex: "pancakeswap_v3"}: DecodePancakeSwapV3,
	{Chain: "arbitrum", Dex: "sushiswap"}:  DecodeUniswapV2,
}

// Lookup returns the decoder registered for (chain, dex).
func Lookup(chain, dex string) (Decoder, bool) {
	d, ok := registry[Key{Chain: chain, Dex: dex}]
	return d, ok
}

// Register installs or overrides a decoder, for wiring up a DEX variant
// not built in.
func Register(chain, dex string, d Decoder) {
	registry[Key{Chain: chain, Dex: dex}] = d
}

// TopicUniswapV3Swap is keccak256("Swap(address,address,int256,int256,uint160,uint128,int24)"),
// shared verbatim by every v3-family fork (Uniswap V3, PancakeSwap V3)
// since none of them change the event's field layout.
const TopicUniswapV3Swap = "0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67"

// TopicUniswapV2Swap is keccak256("Swap(address,uint256,uint256,uint256,uint256,address)").
const TopicUniswapV2Swap = "0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822"

var (
	int256Type, _ = abi.NewType("int256", "", nil)
	uint160Type, _ = abi.NewType("uint160", "", nil)
	uint128Type, _ = abi.NewType("uint128", "", nil)
	int24Type, _   = abi.NewType("int24", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)

	v3DataArgs = abi.Arguments{
		{Type: int256Type},  // amount0
		{Type: int256Type},  // amount1
		{Type: uint160Type}, // sqrtPriceX96
		{Type: uint128Type}, // liquidity
		{Type: int24Type},   // tick
	}
	v2DataArgs = abi.Arguments{
		{Type: uint256Type}, // amount0In
		{Type: uint256Type}, // amount1In
		{Type: uint256Type}, // amount0Out
		{Type: uint256Type}, // amount1Out
	}
)

var (
	pow10Mu    sync.Mutex
	pow10Cache = map[int32]*big.Float{}
)

// pow10 returns 10^exp (exp may be negative) at 256-bit float precision,
// cached since the same handful of decimal exponents recur across every
// swap in a pool.
func pow10(exp int32) *big.Float {
	pow10Mu.Lock()
	defer pow10Mu.Unlock()
	if v, ok := pow10Cache[exp]; ok {
		return v
	}
	f := new(big.Float).SetPrec(256)
	if exp >= 0 {
		f.SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
	} else {
		whole := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil)
		f.Quo(big.NewFloat(1), new(big.Float).SetPrec(256).SetInt(whole))
	}
	pow10Cache[exp] = f
	return f
}

var (
	twoPow96Once sync.Once
	twoPow96Val  *big.Float
)

// twoPow96 returns 2^96 as used by Uniswap V3's Q64.96 fixed-point price.
func twoPow96() *big.Float {
	twoPow96Once.Do(func() {
		twoPow96Val = new(big.Float).SetPrec(256).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))
	})
	return twoPow96Val
}

func decodeAddressTopic(topic string) (string, error) {
	h := strings.TrimPrefix(topic, "0x")
	if len(h) < 40 {
		return "", fmt.Errorf("topic too short: %q", topic)
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(raw[len(raw)-20:]), nil
}

func decodeDataBytes(data string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(data, "0x"))
}

// DecodeUniswapV3 implements the v3-family Swap decode: price from
// sqrtPriceX96 squared and scaled by 10^(dec0-dec1), signed flows in
// pool perspective, is_buy iff the wallet spent quote (spec.md §4.3,
// grounded on uniswap_v3_decoder.py).
func DecodeUniswapV3(logs []chainclient.RawLog, blockTimestamps map[uint64]int64, dec0, dec1 int32, baseIsToken1 bool) ([]model.SwapRecord, error) {
	if len(logs) == 0 {
		return nil, nil
	}
	out := make([]model.SwapRecord, 0, len(logs))
	for _, lg := range logs {
		rec, ok := decodeV3Log(lg, blockTimestamps, dec0, dec1, baseIsToken1)
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func decodeV3Log(lg chainclient.RawLog, blockTimestamps map[uint64]int64, dec0, dec1 int32, baseIsToken1 bool) (model.SwapRecord, bool) {
	if len(lg.Topics) < 3 {
		return model.SwapRecord{}, false
	}
	sender, err := decodeAddressTopic(lg.Topics[1])
	if err != nil {
		return model.SwapRecord{}, false
	}
	recipient, err := decodeAddressTopic(lg.Topics[2])
	if err != nil {
		return model.SwapRecord{}, false
	}
	data, err := decodeDataBytes(lg.Data)
	if err != nil {
		return model.SwapRecord{}, false
	}
	values, err := v3DataArgs.UnpackValues(data)
	if err != nil || len(values) != 5 {
		return model.SwapRecord{}, false
	}
	amount0 := values[0].(*big.Int)
	amount1 := values[1].(*big.Int)
	sqrtPriceX96 := values[2].(*big.Int)
	liquidity := values[3].(*big.Int)
	tick := values[4].(*big.Int)

	ts, ok := blockTimestamps[lg.BlockNumber]
	if !ok {
		return model.SwapRecord{}, false
	}

	sqrtPrice := new(big.Float).SetPrec(256).SetInt(sqrtPriceX96)
	sqrtPrice.Quo(sqrtPrice, twoPow96())
	priceRaw := new(big.Float).SetPrec(256).Mul(sqrtPrice, sqrtPrice)
	priceRaw.Mul(priceRaw, pow10(dec0-dec1))

	price, _ := floatToDecimal(priceRaw)

	d0 := pow10(dec0)
	d1 := pow10(dec1)
	a0 := new(big.Float).SetPrec(256).SetInt(amount0)
	a1 := new(big.Float).SetPrec(256).SetInt(amount1)
	a0.Quo(a0, d0)
	a1.Quo(a1, d1)

	var baseDeltaF, quoteDeltaF *big.Float
	if baseIsToken1 {
		baseDeltaF, quoteDeltaF = a1, a0
	} else {
		baseDeltaF, quoteDeltaF = a0, a1
	}
	baseDelta, _ := floatToDecimal(baseDeltaF)
	quoteDelta, _ := floatToDecimal(quoteDeltaF)

	liq := decimalFromBigInt(liquidity)
	tickVal := int32(tick.Int64())

	return model.SwapRecord{
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TransactionHash,
		LogIndex:    lg.LogIndex,
		Timestamp:   ts,
		Sender:      sender,
		Recipient:   recipient,
		BaseDelta:   baseDelta,
		QuoteDelta:  quoteDelta,
		BaseVol:     baseDelta.Abs(),
		QuoteVol:    quoteDelta.Abs(),
		Price:       price,
		IsBuy:       quoteDelta.IsPositive(),
		Liquidity:   &liq,
		Tick:        &tickVal,
	}, true
}

// DecodePancakeSwapV3 reuses the v3 math verbatim: PancakeSwap V3 emits
// the identical Swap event layout, only the pool factory differs
// (spec.md §4.3 calls this out explicitly as a distinct registry key).
func DecodePancakeSwapV3(logs []chainclient.RawLog, blockTimestamps map[uint64]int64, dec0, dec1 int32, baseIsToken1 bool) ([]model.SwapRecord, error) {
	return DecodeUniswapV3(logs, blockTimestamps, dec0, dec1, baseIsToken1)
}

// DecodeUniswapV2 implements the v2-family Swap decode: price as
// |quote_in+quote_out| / |base_in+base_out|, grounded on
// uniswap_v2_decoder.py.
func DecodeUniswapV2(logs []chainclient.RawLog, blockTimestamps map[uint64]int64, dec0, dec1 int32, baseIsToken1 bool) ([]model.SwapRecord, error) {
	if len(logs) == 0 {
		return nil, nil
	}
	out := make([]model.SwapRecord, 0, len(logs))
	for _, lg := range logs {
		rec, ok := decodeV2Log(lg, blockTimestamps, dec0, dec1, baseIsToken1)
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func decodeV2Log(lg chainclient.RawLog, blockTimestamps map[uint64]int64, dec0, dec1 int32, baseIsToken1 bool) (model.SwapRecord, bool) {
	if len(lg.Topics) < 3 {
		return model.SwapRecord{}, false
	}
	sender, err := decodeAddressTopic(lg.Topics[1])
	if err != nil {
		return model.SwapRecord{}, false
	}
	to, err := decodeAddressTopic(lg.Topics[2])
	if err != nil {
		return model.SwapRecord{}, false
	}
	data, err := decodeDataBytes(lg.Data)
	if err != nil {
		return model.SwapRecord{}, false
	}
	values, err := v2DataArgs.UnpackValues(data)
	if err != nil || len(values) != 4 {
		return model.SwapRecord{}, false
	}
	amount0In := values[0].(*big.Int)
	amount1In := values[1].(*big.Int)
	amount0Out := values[2].(*big.Int)
	amount1Out := values[3].(*big.Int)

	ts, ok := blockTimestamps[lg.BlockNumber]
	if !ok {
		return model.SwapRecord{}, false
	}

	d0 := pow10(dec0)
	d1 := pow10(dec1)
	amt0In := new(big.Float).SetPrec(256).Quo(new(big.Float).SetPrec(256).SetInt(amount0In), d0)
	amt1In := new(big.Float).SetPrec(256).Quo(new(big.Float).SetPrec(256).SetInt(amount1In), d1)
	amt0Out := new(big.Float).SetPrec(256).Quo(new(big.Float).SetPrec(256).SetInt(amount0Out), d0)
	amt1Out := new(big.Float).SetPrec(256).Quo(new(big.Float).SetPrec(256).SetInt(amount1Out), d1)

	var baseIn, baseOut, quoteIn, quoteOut *big.Float
	if baseIsToken1 {
		baseIn, baseOut, quoteIn, quoteOut = amt1In, amt1Out, amt0In, amt0Out
	} else {
		baseIn, baseOut, quoteIn, quoteOut = amt0In, amt0Out, amt1In, amt1Out
	}

	baseDeltaF := new(big.Float).SetPrec(256).Sub(baseIn, baseOut)
	quoteDeltaF := new(big.Float).SetPrec(256).Sub(quoteIn, quoteOut)

	baseSumAbs := new(big.Float).SetPrec(256).Add(baseIn, baseOut)
	quoteSumAbs := new(big.Float).SetPrec(256).Add(quoteIn, quoteOut)
	baseSumAbs.Abs(baseSumAbs)
	quoteSumAbs.Abs(quoteSumAbs)

	var priceF *big.Float
	if baseSumAbs.Sign() == 0 {
		priceF = big.NewFloat(0)
	} else {
		priceF = new(big.Float).SetPrec(256).Quo(quoteSumAbs, baseSumAbs)
	}

	baseDelta, _ := floatToDecimal(baseDeltaF)
	quoteDelta, _ := floatToDecimal(quoteDeltaF)
	price, _ := floatToDecimal(priceF)

	return model.SwapRecord{
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TransactionHash,
		LogIndex:    lg.LogIndex,
		Timestamp:   ts,
		Sender:      sender,
		Recipient:   to,
		BaseDelta:   baseDelta,
		QuoteDelta:  quoteDelta,
		BaseVol:     baseDelta.Abs(),
		QuoteVol:    quoteDelta.Abs(),
		Price:       price,
		IsBuy:       quoteDelta.IsPositive(),
	}, true
}

// DecodeChunk looks up the decoder for (chain, dex) and runs it,
// wrapping an unknown pairing as a persistent-decoder error so the
// coordinator can fail the chunk rather than silently dropping it.
func DecodeChunk(chain, dex string, logs []chainclient.RawLog, blockTimestamps map[uint64]int64, dec0, dec1 int32, baseIsToken1 bool) ([]model.SwapRecord, error) {
	d, ok := Lookup(chain, dex)
	if !ok {
		return nil, apperr.Wrap(apperr.KindPersistentDecoder, "decoder.DecodeChunk",
			fmt.Errorf("no decoder registered for chain=%s dex=%s", chain, dex))
	}
	records, err := d(logs, blockTimestamps, dec0, dec1, baseIsToken1)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistentDecoder, "decoder.DecodeChunk", err)
	}
	return records, nil
}
