package tokenmeta

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dexflow/dexingest/internal/chainclient"
)

func abiServer(t *testing.T, decimalsHex, symbolHex string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int             `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")

		if req.Method == "eth_blockNumber" {
			json.NewEncoder(w).Encode(map[string]interface{}{"id": req.ID, "jsonrpc": "2.0", "result": "0x1"})
			return
		}

		var params []interface{}
		require.NoError(t, json.Unmarshal(req.Params, &params))
		callArgs := params[0].(map[string]interface{})
		data := callArgs["data"].(string)

		var result string
		switch {
		case strings.HasPrefix(data, decimalsSelector):
			result = decimalsHex
		case strings.HasPrefix(data, symbolSelector):
			result = symbolHex
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": req.ID, "jsonrpc": "2.0", "result": result})
	}))
}

func TestLookupDecodesDecimalsAndDynamicSymbol(t *testing.T) {
	// decimals() -> 6 (0x...06), symbol() -> "USDC" dynamic string encoding
	decimalsHex := "0x" + strings.Repeat("0", 63) + "6"
	symbolHex := "0x" +
		strings.Repeat("0", 62) + "20" + // offset = 0x20
		strings.Repeat("0", 62) + "04" + // length = 4
		"55534443" + strings.Repeat("0", 56) // "USDC" padded to 32 bytes

	srv := abiServer(t, decimalsHex, symbolHex)
	defer srv.Close()

	client, err := chainclient.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	reg := NewRegistry()
	meta, err := reg.Lookup(context.Background(), client, "arbitrum", "0xaaaa")
	require.NoError(t, err)
	require.Equal(t, int32(6), meta.Decimals)
	require.Equal(t, "USDC", meta.Symbol)
}

func TestLookupCachesSecondCall(t *testing.T) {
	hits := 0
	decimalsHex := "0x" + strings.Repeat("0", 63) + "8"
	symbolHex := "0x" +
		strings.Repeat("0", 62) + "20" +
		strings.Repeat("0", 62) + "03" +
		"415242" + strings.Repeat("0", 58)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int             `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		if req.Method == "eth_blockNumber" {
			json.NewEncoder(w).Encode(map[string]interface{}{"id": req.ID, "jsonrpc": "2.0", "result": "0x1"})
			return
		}
		hits++
		var params []interface{}
		require.NoError(t, json.Unmarshal(req.Params, &params))
		callArgs := params[0].(map[string]interface{})
		data := callArgs["data"].(string)
		var result string
		if strings.HasPrefix(data, decimalsSelector) {
			result = decimalsHex
		} else {
			result = symbolHex
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": req.ID, "jsonrpc": "2.0", "result": result})
	}))
	defer srv.Close()

	client, err := chainclient.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	reg := NewRegistry()
	_, err = reg.Lookup(context.Background(), client, "arbitrum", "0xbbbb")
	require.NoError(t, err)
	firstHits := hits
	require.Equal(t, 2, firstHits) // one decimals + one symbol call

	_, err = reg.Lookup(context.Background(), client, "arbitrum", "0xbbbb")
	require.NoError(t, err)
	require.Equal(t, firstHits, hits) // second lookup served from cache, no new RPC calls
}
