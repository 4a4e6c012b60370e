// Package blockindex resolves timestamps to blocks (binary search) and
// blocks to timestamps (piecewise-linear interpolation over batched
// checkpoint headers), and computes the block ranges missing from a
// pool's destination table.
package blockindex

import (
	"context"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dexflow/dexingest/internal/apperr"
	"github.com/dexflow/dexingest/internal/chainclient"
)

// maxSegments bounds the piecewise-linear segment list so long-running
// workers don't accumulate it without bound (spec.md §9, "Timestamp
// resolver rebuild policy").
const maxSegments = 1024

// checkpointCount is K in spec.md §4.2.2: the number of evenly spaced
// checkpoint blocks sampled per batch, including both endpoints.
const checkpointCount = 5

type segment struct {
	start, end   uint64
	startTS      int64
	slope        float64 // seconds per block
}

func (s segment) covers(b uint64) bool { return s.start <= b && b <= s.end }

func (s segment) estimate(b uint64) int64 {
	return s.startTS + int64(float64(b-s.start)*s.slope)
}

// SegmentResolver is the block→timestamp piecewise-linear resolver.
// Not safe for concurrent use without external synchronization (mirrors
// the teacher's single-goroutine-per-pool pipeline model).
type SegmentResolver struct {
	client   *chainclient.Client
	segments *lru.Cache[int, segment] // insertion-ordered, capped at maxSegments
	nextID   int
}

// NewSegmentResolver builds a resolver bound to client.
func NewSegmentResolver(client *chainclient.Client) *SegmentResolver {
	cache, _ := lru.New[int, segment](maxSegments)
	return &SegmentResolver{client: client, segments: cache}
}

// BuildFromBlocks ensures the resolver has interpolation segments
// covering [minBlock, maxBlock], fetching checkpoint headers in a
// single batched RPC call if no existing segment already dominates the
// span.
func (r *SegmentResolver) BuildFromBlocks(ctx context.Context, minBlock, maxBlock uint64) error {
	for _, key := range r.segments.Keys() {
		s, ok := r.segments.Peek(key)
		if ok && s.start <= minBlock && maxBlock <= s.end {
			return nil // already covered
		}
	}

	checkpoints := evenlySpaced(minBlock, maxBlock, checkpointCount)
	probed := make([]uint64, 0, len(checkpoints)*3)
	for _, cp := range checkpoints {
		probed = append(probed, cp)
		if cp > minBlock {
			probed = append(probed, cp-1)
		}
		probed = append(probed, cp+1)
	}

	resolved, err := r.client.BatchBlockTimestamps(ctx, probed)
	if err != nil {
		return apperr.Wrap(apperr.KindTransientRPC, "blockindex.BuildFromBlocks", err)
	}

	// Each checkpoint (including the min/max edges) falls back to its
	// already-probed cp-1/cp+1 neighbor when the exact block didn't
	// resolve, so every edge still gets a usable anchor without an
	// extra round-trip (spec.md §4.2.2 step 3).
	avail := pickResolved(checkpoints, resolved)

	if len(avail) < 2 {
		return apperr.Wrap(apperr.KindTimestampFatal, "blockindex.BuildFromBlocks",
			fmt.Errorf("only %d timestamp(s) resolved for blocks %d..%d", len(avail), minBlock, maxBlock))
	}

	for i := 0; i < len(avail)-1; i++ {
		b0, b1 := avail[i], avail[i+1]
		t0, t1 := resolved[b0], resolved[b1]
		slope := 0.0
		if b1 != b0 {
			slope = float64(t1-t0) / float64(b1-b0)
		}
		r.addSegment(segment{start: b0, end: b1, startTS: t0, slope: slope})
	}
	return nil
}

func (r *SegmentResolver) addSegment(s segment) {
	idx := r.nextID
	r.nextID++
	// golang-lru evicts the oldest entry automatically once Len() would
	// exceed maxSegments, bounding memory for long-running workers.
	r.segments.Add(idx, s)
}

// Estimate returns the interpolated timestamp for block b. Fails with
// an error if no cached segment covers it.
func (r *SegmentResolver) Estimate(b uint64) (int64, error) {
	for _, key := range r.segments.Keys() {
		s, ok := r.segments.Peek(key)
		if ok && s.covers(b) {
			return s.estimate(b), nil
		}
	}
	return 0, fmt.Errorf("block %d not in any cached range", b)
}

// AssignTimestamps builds segments covering the batch (if needed) and
// returns block→timestamp for every log's block number.
func (r *SegmentResolver) AssignTimestamps(ctx context.Context, blockNumbers []uint64) (map[uint64]int64, error) {
	if len(blockNumbers) == 0 {
		return map[uint64]int64{}, nil
	}
	minB, maxB := blockNumbers[0], blockNumbers[0]
	for _, b := range blockNumbers {
		if b < minB {
			minB = b
		}
		if b > maxB {
			maxB = b
		}
	}
	if err := r.BuildFromBlocks(ctx, minB, maxB); err != nil {
		return nil, err
	}
	out := make(map[uint64]int64, len(blockNumbers))
	for _, b := range blockNumbers {
		ts, err := r.Estimate(b)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindTimestampFatal, "blockindex.AssignTimestamps", err)
		}
		out[b] = ts
	}
	return out, nil
}

func evenlySpaced(min, max uint64, n int) []uint64 {
	if max <= min {
		return []uint64{min}
	}
	step := (max - min) / uint64(n)
	if step == 0 {
		step = 1
	}
	var out []uint64
	for b := min; b < max; b += step {
		out = append(out, b)
	}
	if len(out) == 0 || out[len(out)-1] != max {
		out = append(out, max)
	}
	return out
}

// pickResolved picks one usable anchor per checkpoint: the checkpoint
// itself if its timestamp resolved, else its nearest already-probed
// neighbor (cp-1 preferred, then cp+1).
func pickResolved(checkpoints []uint64, resolved map[uint64]int64) []uint64 {
	var avail []uint64
	for _, cp := range checkpoints {
		if _, ok := resolved[cp]; ok {
			avail = append(avail, cp)
			continue
		}
		if cp > 0 {
			if _, ok := resolved[cp-1]; ok {
				avail = append(avail, cp-1)
				continue
			}
		}
		if _, ok := resolved[cp+1]; ok {
			avail = append(avail, cp+1)
		}
	}
	return dedupSorted(avail)
}

func dedupSorted(s []uint64) []uint64 {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	out := s[:0]
	var last uint64
	first := true
	for _, v := range s {
		if first || v != last {
			out = append(out, v)
			last = v
			first = false
		}
	}
	return out
}

// ResolveBlock performs a binary search over [0, latest] for the first
// block whose timestamp is >= target. Used only to turn a "days back"
// window into a starting block number; tolerates coarse outcomes.
func ResolveBlock(ctx context.Context, client *chainclient.Client, target time.Time) (uint64, error) {
	latest, err := client.LatestBlock(ctx)
	if err != nil {
		return 0, err
	}
	targetTS := target.Unix()

	start, end := uint64(0), latest
	result := start
	for start <= end {
		mid := start + (end-start)/2
		midTS, err := client.BlockTimestamp(ctx, mid)
		if err != nil {
			return 0, apperr.Wrap(apperr.KindTransientRPC, "blockindex.ResolveBlock", err)
		}
		switch {
		case midTS < targetTS:
			result = mid + 1
			start = mid + 1
		case midTS > targetTS:
			if mid == 0 {
				return 0, nil
			}
			end = mid - 1
		default:
			return mid, nil
		}
	}
	return result, nil
}
