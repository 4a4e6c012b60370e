package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dexflow/dexingest/internal/chainclient"
	"github.com/dexflow/dexingest/internal/model"
)

type rpcReq struct {
	ID     int           `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// txServer answers eth_blockNumber (single-object request, used by
// chainclient.Get's connect probe) and eth_getTransactionByHash
// (batched array request) against an in-memory from-address table.
func txServer(t *testing.T, fromByHash map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")

		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			var single rpcReq
			require.NoError(t, json.Unmarshal(trimmed, &single))
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1"}`))
			return
		}

		var reqs []rpcReq
		require.NoError(t, json.Unmarshal(trimmed, &reqs))

		resp := make([]map[string]interface{}, 0, len(reqs))
		for _, req := range reqs {
			hash, _ := req.Params[0].(string)
			from, ok := fromByHash[hash]
			if !ok {
				resp = append(resp, map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": nil})
				continue
			}
			resp = append(resp, map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  map[string]string{"hash": hash, "from": from},
			})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestEnrichTagsKnownRouter(t *testing.T) {
	routerAddr := "0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45"
	srv := txServer(t, map[string]string{
		"0xaaa1": "0xcaller1",
	})
	defer srv.Close()

	client, err := chainclient.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	e := New(client, RouterMap{routerAddr: "Uniswap V3 router"})
	swaps := []model.SwapRecord{
		{TxHash: "0xaaa1", Sender: routerAddr},
	}
	require.NoError(t, e.Enrich(context.Background(), swaps))

	require.NotNil(t, swaps[0].RouterTag)
	require.Equal(t, "Uniswap V3 router", *swaps[0].RouterTag)
	require.NotNil(t, swaps[0].Caller)
	require.Equal(t, "0xcaller1", *swaps[0].Caller)
}

func TestEnrichTagsEOAWhenCallerMatchesSender(t *testing.T) {
	sender := "0xdeadbeef00000000000000000000000000000001"
	srv := txServer(t, map[string]string{
		"0xbbb1": sender,
	})
	defer srv.Close()

	client, err := chainclient.Get(context.Background(), fmt.Sprintf("%s?eoa", srv.URL))
	require.NoError(t, err)

	e := New(client, RouterMap{})
	swaps := []model.SwapRecord{{TxHash: "0xbbb1", Sender: sender}}
	require.NoError(t, e.Enrich(context.Background(), swaps))

	require.Equal(t, TagEOA, *swaps[0].RouterTag)
}

func TestEnrichTagsRouterAggWhenUnresolvedAndUnknown(t *testing.T) {
	srv := txServer(t, map[string]string{})
	defer srv.Close()

	client, err := chainclient.Get(context.Background(), fmt.Sprintf("%s?unresolved", srv.URL))
	require.NoError(t, err)

	e := New(client, RouterMap{})
	swaps := []model.SwapRecord{{TxHash: "0xccc1", Sender: "0xsomecontract"}}
	require.NoError(t, e.Enrich(context.Background(), swaps))

	require.Equal(t, TagRouterAgg, *swaps[0].RouterTag)
	require.Nil(t, swaps[0].Caller)
}

func TestEnrichEmptyBatchIsNoop(t *testing.T) {
	e := New(nil, RouterMap{})
	require.NoError(t, e.Enrich(context.Background(), nil))
}
