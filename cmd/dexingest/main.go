// dexingest is the long-running daemon: it runs the scheduler's cron
// dispatch loop and an asynq worker pool in one process, matching the
// teacher's single-binary daemon shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dexflow/dexingest/internal/chainclient"
	"github.com/dexflow/dexingest/internal/config"
	"github.com/dexflow/dexingest/internal/decoder"
	"github.com/dexflow/dexingest/internal/enrich"
	applog "github.com/dexflow/dexingest/internal/log"
	"github.com/dexflow/dexingest/internal/metrics"
	"github.com/dexflow/dexingest/internal/model"
	"github.com/dexflow/dexingest/internal/orchestrator"
	"github.com/dexflow/dexingest/internal/scheduler"
	"github.com/dexflow/dexingest/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

var app = &cli.App{
	Name:  "dexingest",
	Usage: "DEX swap-event ingestion daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "database-url", EnvVars: []string{"DATABASE_URL"}, Required: true},
		&cli.StringFlag{Name: "redis-url", EnvVars: []string{"REDIS_URL"}, Required: true},
		&cli.StringFlag{Name: "arbitrum-rpc-url", EnvVars: []string{"ARBITRUM_RPC_URL"}},
		&cli.StringFlag{Name: "base-rpc-url", EnvVars: []string{"BASE_RPC_URL"}},
		&cli.BoolFlag{Name: "json-logs", Value: true},
		&cli.StringFlag{Name: "log-file"},
		&cli.IntFlag{Name: "concurrency", Value: 10},
		&cli.IntFlag{Name: "max-tasks", Value: 20, Usage: "worker recycle limit (spec.md §5)"},
	},
	Action: run,
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	applog.Init(c.Bool("json-logs"), applog.FileConfig{Path: c.String("log-file")})
	log := applog.Root()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	cfg.DatabaseURL = c.String("database-url")
	cfg.RedisURL = c.String("redis-url")
	if url := c.String("arbitrum-rpc-url"); url != "" {
		t := cfg.Chains["arbitrum"]
		t.RPCURL = url
		cfg.Chains["arbitrum"] = t
	}
	if url := c.String("base-rpc-url"); url != "" {
		t := cfg.Chains["base"]
		t.RPCURL = url
		cfg.Chains["base"] = t
	}

	st, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	metrics.New(reg)

	pipelines := map[string]*orchestrator.Pipeline{}
	for chain, tuning := range cfg.Chains {
		if tuning.RPCURL == "" {
			continue
		}
		client, err := chainclient.Get(ctx, tuning.RPCURL)
		if err != nil {
			return fmt.Errorf("connect chain client for %s: %w", chain, err)
		}
		pipelines[chain] = orchestrator.New(client, st, orchestrator.Config{
			DaysBack:             1,
			BlockChunkSize:       tuning.BlockChunkSize,
			PriceDeviationPct:    cfg.PriceDeviationPct,
			VolumeFloor:          cfg.VolumeFloor,
			DerivedMetricsWindow: cfg.DerivedMetricsWindow,
			RouterMap:            enrich.RouterMap{},
		})
	}

	sched := scheduler.New(cfg.RedisURL, st, cfg.SchedulerCron, cfg.GlobalLockTTL, cfg.StaggerSecs, swapTopicFor)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	// One worker per configured chain pipeline; a production deployment
	// would split these into separate processes per spec.md §5's
	// per-queue worker pools.
	var workers []*scheduler.Worker
	for _, pipeline := range pipelines {
		w := scheduler.NewWorker(cfg.RedisURL, pipeline, c.Int("concurrency"), c.Int("max-tasks"))
		workers = append(workers, w)
	}

	errCh := make(chan error, len(workers))
	for _, w := range workers {
		w := w
		go func() { errCh <- w.Run() }()
	}

	log.Info("dexingest daemon started", "chains", len(pipelines))

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		for _, w := range workers {
			w.Shutdown()
		}
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker stopped: %w", err)
		}
	}
	return nil
}

// swapTopicFor resolves the swap-event topic hash to filter for, keyed
// by dex family — v3-style pools emit a different event signature than
// v2-style ones.
func swapTopicFor(p model.Pool) string {
	switch p.Dex {
	case "uniswap_v2", "camelot_v2", "sushiswap":
		return decoder.TopicUniswapV2Swap
	default:
		return decoder.TopicUniswapV3Swap
	}
}
