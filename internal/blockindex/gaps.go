package blockindex

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/dexflow/dexingest/internal/apperr"
	"github.com/dexflow/dexingest/internal/chainclient"
	"github.com/dexflow/dexingest/internal/model"
)

// safeIdentifier is the table/column identifier allowlist from spec.md
// §4.2.3: only letters, digits, underscore. Any table name computed
// from pool data MUST pass this check before it is interpolated into
// SQL.
var safeIdentifier = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateTableName fails fast on anything that isn't a safe SQL
// identifier, preventing injection via chain/dex/pair-derived names.
func ValidateTableName(name string) error {
	if !safeIdentifier.MatchString(name) {
		return apperr.Wrap(apperr.KindSQLFatal, "blockindex.ValidateTableName",
			fmt.Errorf("unsafe table name: %q", name))
	}
	return nil
}

// safetyOverlap is the one-minute buffer subtracted/added at gap edges
// so idempotent upsert absorbs any double-covered minute (spec.md I5).
const safetyOverlap = 60 * time.Second

// ExistingRange is the (min, max) minute_start already present in a
// pool's destination table, or nil/nil if the table is empty.
type ExistingRange struct {
	MinTS *int64
	MaxTS *int64
}

// ComputeGaps returns up to two block ranges not yet reflected in the
// destination table, per spec.md §4.2.3: one gap when the table is
// empty, or an early gap (if history is incomplete) and/or a late gap
// (if new data is available).
func ComputeGaps(ctx context.Context, client *chainclient.Client, tableName string, existing ExistingRange, daysBack int, now time.Time) ([]model.BlockRange, error) {
	if err := ValidateTableName(tableName); err != nil {
		return nil, err
	}

	latest, err := client.LatestBlock(ctx)
	if err != nil {
		return nil, err
	}

	wantStart := now.Add(-time.Duration(daysBack) * 24 * time.Hour)

	if existing.MinTS == nil {
		startBlock, err := ResolveBlock(ctx, client, wantStart)
		if err != nil {
			return nil, err
		}
		return []model.BlockRange{{From: startBlock, To: latest}}, nil
	}

	var gaps []model.BlockRange

	haveMin := time.Unix(*existing.MinTS, 0).UTC()
	if wantStart.Before(haveMin) {
		startBlock, err := ResolveBlock(ctx, client, wantStart)
		if err != nil {
			return nil, err
		}
		endBlock, err := ResolveBlock(ctx, client, haveMin.Add(-safetyOverlap))
		if err != nil {
			return nil, err
		}
		if startBlock <= endBlock {
			gaps = append(gaps, model.BlockRange{From: startBlock, To: endBlock})
		}
	}

	haveMax := int64(0)
	if existing.MaxTS != nil {
		haveMax = *existing.MaxTS
	}
	if haveMax < now.Add(-safetyOverlap).Unix() {
		startTime := time.Unix(haveMax, 0).UTC().Add(safetyOverlap)
		startBlock, err := ResolveBlock(ctx, client, startTime)
		if err != nil {
			return nil, err
		}
		gaps = append(gaps, model.BlockRange{From: startBlock, To: latest})
	}

	return gaps, nil
}

// WalkBlockRanges splits [start, end] into fixed-size, inclusive
// [from, to] chunks of at most step blocks each.
func WalkBlockRanges(start, end, step uint64) []model.BlockRange {
	if step == 0 {
		step = 1
	}
	var out []model.BlockRange
	for from := start; from <= end; from += step {
		to := from + step - 1
		if to > end {
			to = end
		}
		out = append(out, model.BlockRange{From: from, To: to})
		if to == end {
			break
		}
	}
	return out
}
