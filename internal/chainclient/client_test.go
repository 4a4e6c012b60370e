package chainclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func jsonRPCServer(t *testing.T, handle func(method string, params json.RawMessage) (interface{}, bool)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []struct {
			ID     int             `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		body := json.NewDecoder(r.Body)
		var single struct {
			ID     int             `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}

		// Peek: try array first.
		var raw json.RawMessage
		require.NoError(t, body.Decode(&raw))
		isArray := len(raw) > 0 && raw[0] == '['

		w.Header().Set("Content-Type", "application/json")
		if isArray {
			require.NoError(t, json.Unmarshal(raw, &batch))
			resp := make([]map[string]interface{}, 0, len(batch))
			for _, req := range batch {
				result, isNull := handle(req.Method, req.Params)
				entry := map[string]interface{}{"id": req.ID, "jsonrpc": "2.0"}
				if isNull {
					entry["result"] = nil
				} else {
					entry["result"] = result
				}
				resp = append(resp, entry)
			}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
			return
		}
		require.NoError(t, json.Unmarshal(raw, &single))
		result, _ := handle(single.Method, single.Params)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"id": single.ID, "jsonrpc": "2.0", "result": result,
		}))
	}))
}

func TestLatestBlock(t *testing.T) {
	srv := jsonRPCServer(t, func(method string, params json.RawMessage) (interface{}, bool) {
		require.Equal(t, "eth_blockNumber", method)
		return "0x2a", false
	})
	defer srv.Close()

	c, err := Get(context.Background(), srv.URL)
	require.NoError(t, err)

	height, err := c.LatestBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(42), height)
}

func TestGetClientIsSingletonPerURL(t *testing.T) {
	srv := jsonRPCServer(t, func(method string, params json.RawMessage) (interface{}, bool) {
		return "0x1", false
	})
	defer srv.Close()

	c1, err := Get(context.Background(), srv.URL)
	require.NoError(t, err)
	c2, err := Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Same(t, c1, c2)
}

func TestBatchBlockTimestampsDropsNulls(t *testing.T) {
	srv := jsonRPCServer(t, func(method string, params json.RawMessage) (interface{}, bool) {
		require.Equal(t, "eth_getBlockByNumber", method)
		var p []interface{}
		require.NoError(t, json.Unmarshal(params, &p))
		blockHex := p[0].(string)
		if blockHex == "0x2" {
			return nil, true // simulate a dropped/unresolved sub-reply
		}
		return map[string]string{"number": blockHex, "timestamp": "0x64"}, false
	})
	defer srv.Close()

	c := &Client{url: srv.URL, httpClient: http.DefaultClient}
	out, err := c.BatchBlockTimestamps(context.Background(), []uint64{1, 2, 3})
	require.NoError(t, err)
	require.Contains(t, out, uint64(1))
	require.Contains(t, out, uint64(3))
	require.NotContains(t, out, uint64(2))
}

func TestGetLogsSwallowsPersistentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Client{url: srv.URL, httpClient: http.DefaultClient}
	logs, err := c.GetLogs(context.Background(), "0xabc", []string{"0xtopic"}, 1, 100)
	require.NoError(t, err)
	require.Empty(t, logs)
}
