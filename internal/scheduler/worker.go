package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	applog "github.com/dexflow/dexingest/internal/log"
	"github.com/dexflow/dexingest/internal/model"
	"github.com/dexflow/dexingest/internal/orchestrator"
)

// PoolLockTTL is the per-pool re-entrancy guard's lease length — long
// enough to cover one full pipeline pass without expiring mid-run under
// normal RPC latency, added per the open question in spec.md §9
// ("Per-pool re-entrancy risk").
const PoolLockTTL = 30 * time.Minute

func poolLockName(poolAddress string) string {
	return fmt.Sprintf("ingest_lock:%s", poolAddress)
}

// Worker runs orchestrate tasks off the asynq queues, holding a
// per-pool redsync lock for the duration of each pipeline run so a
// pool can never be processed by two workers concurrently.
type Worker struct {
	rs       *redsync.Redsync
	server   *asynq.Server
	pipeline *orchestrator.Pipeline

	maxTasks  int64 // 0 means unbounded
	taskCount int64
}

// NewWorker builds a Worker bound to one Pipeline. concurrency caps
// how many tasks run at once; maxTasks, if positive, matches spec.md
// §5's worker recycle policy — the worker stops accepting new tasks
// once it has processed maxTasks of them, so the process entrypoint
// can exit and let its supervisor start a fresh one.
func NewWorker(redisAddr string, pipeline *orchestrator.Pipeline, concurrency, maxTasks int) *Worker {
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	rs := redsync.New(goredis.NewPool(rdb))

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueOrchestrate: 6,
				QueueDecode:      3,
				QueueAggregate:   2,
				QueueEnrich:      1,
				QueueDispatch:    1,
			},
		},
	)
	return &Worker{rs: rs, server: server, pipeline: pipeline, maxTasks: int64(maxTasks)}
}

// Run blocks serving tasks until the process is signalled to stop or
// the task-recycle limit is hit.
func (w *Worker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeOrchestrate, w.handleOrchestrate)
	return w.server.Run(mux)
}

// Shutdown stops accepting new tasks and waits for in-flight ones.
func (w *Worker) Shutdown() { w.server.Shutdown() }

func (w *Worker) handleOrchestrate(ctx context.Context, task *asynq.Task) error {
	defer w.recycleIfExhausted()

	var payload OrchestrateTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("worker: unmarshal orchestrate payload: %w", err)
	}

	mutex := w.rs.NewMutex(poolLockName(payload.Address), redsync.WithExpiry(PoolLockTTL))
	if err := mutex.LockContext(ctx); err != nil {
		applog.Info("worker: pool already being ingested, skipping", "pool", payload.Address)
		return nil
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			applog.Warn("worker: failed to release pool lock", "pool", payload.Address, "err", err)
		}
	}()

	pool := model.Pool{
		ID:      payload.PoolID,
		Chain:   payload.Chain,
		Dex:     payload.Dex,
		Pair:    payload.Pair,
		Address: payload.Address,
		Active:  true,
	}
	return w.pipeline.Run(ctx, pool, payload.SwapTopic)
}

// recycleIfExhausted shuts the asynq server down, matched at task
// boundaries only, once taskCount reaches maxTasks.
func (w *Worker) recycleIfExhausted() {
	if w.maxTasks <= 0 {
		return
	}
	if atomic.AddInt64(&w.taskCount, 1) >= w.maxTasks {
		applog.Info("worker: recycle limit reached, shutting down")
		go w.Shutdown()
	}
}
