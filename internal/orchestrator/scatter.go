package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dexflow/dexingest/internal/chainclient"
	"github.com/dexflow/dexingest/internal/decoder"
	"github.com/dexflow/dexingest/internal/model"
)

// chunkLogs splits logs into at most n roughly-even contiguous slices,
// grounded on app/utils/log_utils.py's chunk_logs.
func chunkLogs(logs []chainclient.RawLog, n int) [][]chainclient.RawLog {
	if n <= 0 {
		n = 1
	}
	if n > len(logs) {
		n = len(logs)
	}
	if n <= 1 {
		if len(logs) == 0 {
			return nil
		}
		return [][]chainclient.RawLog{logs}
	}

	chunks := make([][]chainclient.RawLog, 0, n)
	base := len(logs) / n
	rem := len(logs) % n
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		if size == 0 {
			continue
		}
		chunks = append(chunks, logs[start:start+size])
		start += size
	}
	return chunks
}

// decodeSubChunkCount picks how many decode goroutines to fan out,
// capped at maxWorkers, targeting targetPerChunk logs each:
// min(maxWorkers, max(1, ceil(logCount/targetPerChunk))), or 0 for no logs.
func decodeSubChunkCount(logCount, maxWorkers, targetPerChunk int) int {
	if logCount == 0 {
		return 0
	}
	if targetPerChunk <= 0 {
		targetPerChunk = 1
	}
	n := (logCount + targetPerChunk - 1) / targetPerChunk
	if n < 1 {
		n = 1
	}
	if n > maxWorkers {
		n = maxWorkers
	}
	return n
}

// scatterDecode runs DecodeChunk over each log chunk concurrently and
// joins the results — the literal "run N tasks, block, then run one
// consumer task on the concatenated results" scatter-gather barrier.
func scatterDecode(ctx context.Context, chain, dex string, chunks [][]chainclient.RawLog, blockTimestamps map[uint64]int64, dec0, dec1 int32, baseIsToken1 bool) ([]model.SwapRecord, error) {
	results := make([][]model.SwapRecord, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			swaps, err := decoder.DecodeChunk(chain, dex, chunk, blockTimestamps, dec0, dec1, baseIsToken1)
			if err != nil {
				return err
			}
			results[i] = swaps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]model.SwapRecord, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
