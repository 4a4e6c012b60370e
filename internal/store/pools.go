package store

import (
	"context"

	"github.com/dexflow/dexingest/internal/model"
)

// ActivePools returns every pool with active = true, ordered by
// last_started ascending with NULLs first, so pools that have never
// run (or ran longest ago) are dispatched first — spec.md §4.5.1's
// fairness rule.
func (s *Store) ActivePools(ctx context.Context) ([]model.Pool, error) {
	const sql = `
		SELECT id, chain, dex, pair, address, active, last_started
		FROM pools
		WHERE active = true
		ORDER BY last_started ASC NULLS FIRST
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, wrapSQLErr("store.ActivePools", err)
	}
	defer rows.Close()

	var pools []model.Pool
	for rows.Next() {
		var p model.Pool
		if err := rows.Scan(&p.ID, &p.Chain, &p.Dex, &p.Pair, &p.Address, &p.Active, &p.LastStarted); err != nil {
			return nil, wrapSQLErr("store.ActivePools", err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLErr("store.ActivePools", err)
	}
	return pools, nil
}

// MarkStarted stamps pool's last_started to now, so the next scheduler
// pass doesn't re-prioritize it ahead of pools it hasn't dispatched yet.
func (s *Store) MarkStarted(ctx context.Context, poolID int64) error {
	const sql = `UPDATE pools SET last_started = now() WHERE id = $1`
	if _, err := s.pool.Exec(ctx, sql, poolID); err != nil {
		return wrapSQLErr("store.MarkStarted", err)
	}
	return nil
}
