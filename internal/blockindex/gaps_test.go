package blockindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dexflow/dexingest/internal/chainclient"
)

func TestValidateTableNameRejectsUnsafe(t *testing.T) {
	require.NoError(t, ValidateTableName("klines_arbitrum_weth_usdc"))
	require.Error(t, ValidateTableName("klines; DROP TABLE x"))
	require.Error(t, ValidateTableName("klines-arbitrum"))
}

// linearChainServer serves a chain whose block N has timestamp
// baseTS+N*blockSeconds, so ResolveBlock's binary search is exact.
func linearChainServer(t *testing.T, latest uint64, baseTS int64, blockSeconds int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int             `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")

		switch req.Method {
		case "eth_blockNumber":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id": req.ID, "jsonrpc": "2.0", "result": toHex(latest),
			})
		case "eth_getBlockByNumber":
			var p []interface{}
			require.NoError(t, json.Unmarshal(req.Params, &p))
			blockHex := p[0].(string)
			n := fromHex(blockHex)
			ts := baseTS + int64(n)*blockSeconds
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id": req.ID, "jsonrpc": "2.0",
				"result": map[string]string{"number": blockHex, "timestamp": toHex(ts)},
			})
		}
	}))
}

func toHex(v int64) string {
	if v < 0 {
		v = 0
	}
	return "0x" + intToHex(uint64(v))
}

func intToHex(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v%16]
		v /= 16
	}
	return string(buf[i:])
}

func fromHex(s string) uint64 {
	var n uint64
	for _, c := range s[2:] {
		n *= 16
		switch {
		case c >= '0' && c <= '9':
			n += uint64(c - '0')
		case c >= 'a' && c <= 'f':
			n += uint64(c-'a') + 10
		}
	}
	return n
}

func TestComputeGapsEmptyTableYieldsSingleGap(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	srv := linearChainServer(t, 100000, base, 1)
	defer srv.Close()

	client, err := chainclient.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	now := time.Unix(base, 0).UTC().Add(50000 * time.Second)
	gaps, err := ComputeGaps(context.Background(), client, "klines_test", ExistingRange{}, 1, now)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	require.Equal(t, uint64(100000), gaps[0].To)
}

func TestComputeGapsSplitsEarlyAndLate(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	srv := linearChainServer(t, 200000, base, 1)
	defer srv.Close()

	client, err := chainclient.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	now := time.Unix(base, 0).UTC().Add(150000 * time.Second)

	haveMin := base + 50000
	haveMax := base + 100000
	existing := ExistingRange{MinTS: &haveMin, MaxTS: &haveMax}

	gaps, err := ComputeGaps(context.Background(), client, "klines_test", existing, 2, now)
	require.NoError(t, err)
	require.Len(t, gaps, 2)

	// Early gap ends at least 60s before haveMin.
	require.Less(t, gaps[0].To, uint64(50000))
	// Late gap starts at least 60s after haveMax and runs to latest.
	require.Greater(t, gaps[1].From, uint64(100000))
	require.Equal(t, uint64(200000), gaps[1].To)
}

func TestWalkBlockRangesChunksInclusive(t *testing.T) {
	ranges := WalkBlockRanges(100, 250, 100)
	require.Len(t, ranges, 2)
	require.Equal(t, uint64(100), ranges[0].From)
	require.Equal(t, uint64(199), ranges[0].To)
	require.Equal(t, uint64(200), ranges[1].From)
	require.Equal(t, uint64(250), ranges[1].To)
}
