// Package chainclient is a thin façade over an EVM JSON-RPC endpoint:
// latest block, single and batched block headers, log filtering, and
// batched transaction lookups for enrichment. One client is built per
// RPC URL and reused for the process lifetime.
package chainclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dexflow/dexingest/internal/apperr"
	applog "github.com/dexflow/dexingest/internal/log"
)

const requestTimeout = 10 * time.Second

// RawLog is the JSON-RPC shape of an eth_getLogs result entry.
type RawLog struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     uint64   `json:"-"`
	BlockNumberHex  string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        uint     `json:"-"`
	LogIndexHex     string   `json:"logIndex"`
	Removed         bool     `json:"removed"`
}

// normalize fills the decoded numeric fields from their hex counterparts.
func (l *RawLog) normalize() error {
	bn, err := parseHexUint(l.BlockNumberHex)
	if err != nil {
		return fmt.Errorf("parse blockNumber: %w", err)
	}
	l.BlockNumber = bn
	li, err := parseHexUint(l.LogIndexHex)
	if err != nil {
		return fmt.Errorf("parse logIndex: %w", err)
	}
	l.LogIndex = uint(li)
	return nil
}

func parseHexUint(s string) (uint64, error) {
	if len(s) < 2 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return 0, fmt.Errorf("not a hex string: %q", s)
	}
	return strconv.ParseUint(s[2:], 16, 64)
}

// Tx is the subset of eth_getTransactionByHash this engine needs.
type Tx struct {
	Hash string `json:"hash"`
	From string `json:"from"`
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// Client is a single RPC endpoint's façade. Construct via the package
// level registry (Get), not directly, so the singleton-per-URL policy
// holds.
type Client struct {
	url        string
	httpClient *http.Client
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Client{}
)

// Get returns the process-wide singleton Client for url, connecting
// (with retry) on first use.
func Get(ctx context.Context, url string) (*Client, error) {
	registryMu.Lock()
	if c, ok := registry[url]; ok {
		registryMu.Unlock()
		return c, nil
	}
	registryMu.Unlock()

	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: requestTimeout},
	}

	connect := func() error {
		_, err := c.LatestBlock(ctx)
		return err
	}
	if err := withRetry(ctx, 4, connect); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if existing, ok := registry[url]; ok {
		return existing, nil
	}
	registry[url] = c
	return c, nil
}

func (c *Client) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, err
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

func (c *Client) callBatch(ctx context.Context, reqs []rpcRequest) ([]rpcResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResps []rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResps); err != nil {
		return nil, err
	}
	return rpcResps, nil
}

func withRetry(ctx context.Context, maxAttempts uint64, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = time.Second
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	b := backoff.WithMaxRetries(eb, maxAttempts)
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

// LatestBlock returns the chain's current block height. Retried with
// exponential backoff (initial 1s, factor 2, up to 5 attempts).
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	var height uint64
	op := func() error {
		raw, err := c.call(ctx, "eth_blockNumber")
		if err != nil {
			return err
		}
		var hexStr string
		if err := json.Unmarshal(raw, &hexStr); err != nil {
			return err
		}
		h, err := parseHexUint(hexStr)
		if err != nil {
			return err
		}
		height = h
		return nil
	}
	if err := withRetry(ctx, 4, op); err != nil {
		return 0, apperr.Wrap(apperr.KindTransientRPC, "chainclient.LatestBlock", err)
	}
	return height, nil
}

// BlockTimestamp fetches one block header's timestamp via a single
// eth_getBlockByNumber call.
func (c *Client) BlockTimestamp(ctx context.Context, block uint64) (int64, error) {
	var ts int64
	op := func() error {
		raw, err := c.call(ctx, "eth_getBlockByNumber", "0x"+strconv.FormatUint(block, 16), false)
		if err != nil {
			return err
		}
		var header struct {
			Timestamp string `json:"timestamp"`
		}
		if err := json.Unmarshal(raw, &header); err != nil {
			return err
		}
		if header.Timestamp == "" {
			return fmt.Errorf("block %d not found", block)
		}
		t, err := parseHexUint(header.Timestamp)
		if err != nil {
			return err
		}
		ts = int64(t)
		return nil
	}
	if err := withRetry(ctx, 4, op); err != nil {
		return 0, apperr.Wrap(apperr.KindTransientRPC, "chainclient.BlockTimestamp", err)
	}
	return ts, nil
}

// BatchBlockTimestamps issues one network round-trip containing N
// eth_getBlockByNumber sub-requests and returns block→timestamp for
// every sub-reply that resolved. Unresolved (null) replies are simply
// absent from the result — the caller is responsible for handling
// missing entries.
func (c *Client) BatchBlockTimestamps(ctx context.Context, blocks []uint64) (map[uint64]int64, error) {
	if len(blocks) == 0 {
		return map[uint64]int64{}, nil
	}

	reqs := make([]rpcRequest, len(blocks))
	for i, b := range blocks {
		reqs[i] = rpcRequest{
			JSONRPC: "2.0",
			ID:      i,
			Method:  "eth_getBlockByNumber",
			Params:  []interface{}{"0x" + strconv.FormatUint(b, 16), false},
		}
	}

	var resps []rpcResponse
	op := func() error {
		r, err := c.callBatch(ctx, reqs)
		if err != nil {
			return err
		}
		resps = r
		return nil
	}
	if err := withRetry(ctx, 2, op); err != nil {
		return nil, apperr.Wrap(apperr.KindTransientRPC, "chainclient.BatchBlockTimestamps", err)
	}

	out := make(map[uint64]int64, len(resps))
	for _, resp := range resps {
		if resp.Error != nil || resp.Result == nil || string(resp.Result) == "null" {
			continue
		}
		var header struct {
			Number    string `json:"number"`
			Timestamp string `json:"timestamp"`
		}
		if err := json.Unmarshal(resp.Result, &header); err != nil {
			continue
		}
		bn, err1 := parseHexUint(header.Number)
		ts, err2 := parseHexUint(header.Timestamp)
		if err1 != nil || err2 != nil {
			continue
		}
		out[bn] = int64(ts)
	}
	return out, nil
}

// GetLogs filters logs by address/topics/range. Retried up to 3 times;
// on persistent failure it returns an empty slice and a nil error — the
// error is logged here and never raised, so the outer loop treats "no
// logs" identically whether the range was truly empty or the RPC call
// failed.
func (c *Client) GetLogs(ctx context.Context, address string, topics []string, from, to uint64) ([]RawLog, error) {
	params := map[string]interface{}{
		"address":   address,
		"fromBlock": "0x" + strconv.FormatUint(from, 16),
		"toBlock":   "0x" + strconv.FormatUint(to, 16),
	}
	if len(topics) > 0 {
		params["topics"] = []interface{}{topics}
	}

	var logs []RawLog
	op := func() error {
		raw, err := c.call(ctx, "eth_getLogs", params)
		if err != nil {
			return err
		}
		var rawLogs []RawLog
		if err := json.Unmarshal(raw, &rawLogs); err != nil {
			return err
		}
		for i := range rawLogs {
			if err := rawLogs[i].normalize(); err != nil {
				return err
			}
		}
		logs = rawLogs
		return nil
	}

	if err := withRetry(ctx, 2, op); err != nil {
		applog.Warn("get_logs failed, treating range as empty", "from", from, "to", to, "err", err)
		return nil, nil
	}
	return logs, nil
}

// GetTransactionByHash batch-fetches up to len(hashes) transactions
// (the caller is responsible for chunking to the provider's batch
// limit) via one round-trip.
func (c *Client) GetTransactionByHash(ctx context.Context, hashes []string) (map[string]Tx, error) {
	if len(hashes) == 0 {
		return map[string]Tx{}, nil
	}
	reqs := make([]rpcRequest, len(hashes))
	for i, h := range hashes {
		reqs[i] = rpcRequest{JSONRPC: "2.0", ID: i, Method: "eth_getTransactionByHash", Params: []interface{}{h}}
	}

	var resps []rpcResponse
	op := func() error {
		r, err := c.callBatch(ctx, reqs)
		if err != nil {
			return err
		}
		resps = r
		return nil
	}
	if err := withRetry(ctx, 2, op); err != nil {
		return nil, apperr.Wrap(apperr.KindTransientRPC, "chainclient.GetTransactionByHash", err)
	}

	out := make(map[string]Tx, len(resps))
	for _, resp := range resps {
		if resp.Error != nil || resp.Result == nil || string(resp.Result) == "null" {
			continue
		}
		var tx Tx
		if err := json.Unmarshal(resp.Result, &tx); err != nil {
			continue
		}
		out[hexNormalize(tx.Hash)] = tx
	}
	return out, nil
}

// EthCall performs a read-only contract call, used for token0/token1/
// decimals/symbol view calls against a pool or ERC-20 contract.
func (c *Client) EthCall(ctx context.Context, to, data string) ([]byte, error) {
	var result []byte
	op := func() error {
		raw, err := c.call(ctx, "eth_call", map[string]string{"to": to, "data": data}, "latest")
		if err != nil {
			return err
		}
		var hexStr string
		if err := json.Unmarshal(raw, &hexStr); err != nil {
			return err
		}
		decoded, err := hex.DecodeString(hexNormalize(hexStr))
		if err != nil {
			return err
		}
		result = decoded
		return nil
	}
	if err := withRetry(ctx, 4, op); err != nil {
		return nil, apperr.Wrap(apperr.KindTransientRPC, "chainclient.EthCall", err)
	}
	return result, nil
}

func hexNormalize(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
