package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dexflow/dexingest/internal/chainclient"
)

func TestChunkLogsSplitsEvenly(t *testing.T) {
	logs := make([]chainclient.RawLog, 10)
	chunks := chunkLogs(logs, 3)
	require.Len(t, chunks, 3)

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	require.Equal(t, 10, total)
}

func TestChunkLogsSingleWorkerReturnsOneChunk(t *testing.T) {
	logs := make([]chainclient.RawLog, 5)
	chunks := chunkLogs(logs, 1)
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0], 5)
}

func TestChunkLogsEmptyReturnsNil(t *testing.T) {
	require.Nil(t, chunkLogs(nil, 4))
}

func TestDecodeSubChunkCountCapsAtMaxWorkers(t *testing.T) {
	require.Equal(t, 8, decodeSubChunkCount(10_000, 8, 200))
}

func TestDecodeSubChunkCountScalesWithLogCount(t *testing.T) {
	require.Equal(t, 1, decodeSubChunkCount(50, 8, 200))
	require.Equal(t, 2, decodeSubChunkCount(250, 8, 200))
}

func TestDecodeSubChunkCountZeroLogsIsZero(t *testing.T) {
	require.Equal(t, 0, decodeSubChunkCount(0, 8, 200))
}

func TestScatterDecodeReturnsErrorFromAnyChunk(t *testing.T) {
	chunks := [][]chainclient.RawLog{
		{{TransactionHash: "0x1", Topics: []string{"unknown-topic"}}},
	}
	_, err := scatterDecode(context.Background(), "arbitrum", "unknown-dex", chunks, map[uint64]int64{}, 18, 6, false)
	require.Error(t, err)
}
