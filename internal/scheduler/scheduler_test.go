package scheduler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolLockNameIsAddressScoped(t *testing.T) {
	require.Equal(t, "ingest_lock:0xabc", poolLockName("0xabc"))
	require.NotEqual(t, poolLockName("0xabc"), poolLockName("0xdef"))
}

func TestOrchestrateTaskPayloadRoundTrips(t *testing.T) {
	p := OrchestrateTaskPayload{
		PoolID:    7,
		Chain:     "arbitrum",
		Dex:       "uniswap_v3",
		Pair:      "ARB/USDC",
		Address:   "0xpool",
		SwapTopic: "0xtopic",
	}
	body, err := json.Marshal(p)
	require.NoError(t, err)

	var round OrchestrateTaskPayload
	require.NoError(t, json.Unmarshal(body, &round))
	require.Equal(t, p, round)
}
