// Package scheduler is the cron-driven dispatcher: it wakes on a
// schedule, takes a global distributed lock so only one scheduler
// instance ever dispatches at a time, lists active pools fairly, and
// enqueues one orchestrate task per pool with a stagger delay between
// them — the Go analogue of the Python project's Celery-beat dispatch
// loop (spec.md §4.5.1; no direct original_source file, since the
// Python scheduler lived in Celery beat config rather than application
// code).
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	applog "github.com/dexflow/dexingest/internal/log"
	"github.com/dexflow/dexingest/internal/model"
	"github.com/dexflow/dexingest/internal/store"
)

const (
	// GlobalLockName is the distributed mutex guarding one dispatch pass
	// at a time (spec.md I3).
	GlobalLockName = "global_ingest_lock"

	// QueueDispatch through QueueEnrich are the five logical queues from
	// spec.md §5.
	QueueDispatch    = "dispatch"
	QueueOrchestrate = "orchestrate"
	QueueDecode      = "decode"
	QueueAggregate   = "aggregate"
	QueueEnrich      = "enrich"

	// TaskTypeOrchestrate is the asynq task type handled by one worker
	// invocation of orchestrator.Pipeline.Run.
	TaskTypeOrchestrate = "pool:orchestrate"
)

// OrchestrateTaskPayload is the asynq task body for TaskTypeOrchestrate.
type OrchestrateTaskPayload struct {
	PoolID    int64  `json:"pool_id"`
	Chain     string `json:"chain"`
	Dex       string `json:"dex"`
	Pair      string `json:"pair"`
	Address   string `json:"address"`
	SwapTopic string `json:"swap_topic"`
}

// Scheduler owns the cron trigger, the global lock, and the asynq
// client used to enqueue per-pool work.
type Scheduler struct {
	cron        *cron.Cron
	rs          *redsync.Redsync
	asynqClient *asynq.Client
	store       *store.Store

	cronSpec    string
	globalTTL   time.Duration
	staggerSecs int
	swapTopicOf func(model.Pool) string
}

// New builds a Scheduler. swapTopicOf resolves the swap-event topic to
// filter for a given pool (varies by dex family).
func New(redisAddr string, st *store.Store, cronSpec string, globalTTL time.Duration, staggerSecs int, swapTopicOf func(model.Pool) string) *Scheduler {
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	pool := goredis.NewPool(rdb)

	return &Scheduler{
		cron:        cron.New(),
		rs:          redsync.New(pool),
		asynqClient: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
		store:       st,
		cronSpec:    cronSpec,
		globalTTL:   globalTTL,
		staggerSecs: staggerSecs,
		swapTopicOf: swapTopicOf,
	}
}

// Start registers the dispatch job on the configured cron schedule and
// starts the cron loop. Call Stop to shut it down cleanly.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cronSpec, func() {
		if err := s.dispatch(ctx); err != nil {
			applog.Error("dispatch pass failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: register cron job: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and closes the asynq client.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	_ = s.asynqClient.Close()
}

// dispatch acquires the global lock, lists active pools ordered
// fairly, and enqueues one orchestrate task per pool with
// staggerSecs between each — unchanged control flow from spec.md §4.5.1.
func (s *Scheduler) dispatch(ctx context.Context) error {
	mutex := s.rs.NewMutex(GlobalLockName, redsync.WithExpiry(s.globalTTL))
	if err := mutex.LockContext(ctx); err != nil {
		applog.Info("scheduler: another instance holds the global lock, skipping pass")
		return nil
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			applog.Warn("scheduler: failed to release global lock", "err", err)
		}
	}()

	pools, err := s.store.ActivePools(ctx)
	if err != nil {
		return err
	}

	for i, p := range pools {
		payload := OrchestrateTaskPayload{
			PoolID:    p.ID,
			Chain:     p.Chain,
			Dex:       p.Dex,
			Pair:      p.Pair,
			Address:   p.Address,
			SwapTopic: s.swapTopicOf(p),
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("scheduler: marshal payload for pool %d: %w", p.ID, err)
		}

		delay := time.Duration(i*s.staggerSecs) * time.Second
		task := asynq.NewTask(TaskTypeOrchestrate, body)
		if _, err := s.asynqClient.EnqueueContext(ctx, task,
			asynq.Queue(QueueOrchestrate),
			asynq.ProcessIn(delay),
		); err != nil {
			return fmt.Errorf("scheduler: enqueue pool %d: %w", p.ID, err)
		}

		if err := s.store.MarkStarted(ctx, p.ID); err != nil {
			return err
		}
	}

	applog.Info("dispatch pass complete", "pool_count", len(pools))
	return nil
}
