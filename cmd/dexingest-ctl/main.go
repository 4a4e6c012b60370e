// dexingest-ctl is a one-off trigger: it runs a single pool's
// ingestion pipeline synchronously, bypassing the scheduler/queue —
// useful for manual backfills and local debugging.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dexflow/dexingest/internal/chainclient"
	"github.com/dexflow/dexingest/internal/config"
	"github.com/dexflow/dexingest/internal/decoder"
	"github.com/dexflow/dexingest/internal/enrich"
	applog "github.com/dexflow/dexingest/internal/log"
	"github.com/dexflow/dexingest/internal/model"
	"github.com/dexflow/dexingest/internal/orchestrator"
	"github.com/dexflow/dexingest/internal/store"
)

var app = &cli.App{
	Name:  "dexingest-ctl",
	Usage: "trigger a single pool ingestion run",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "database-url", EnvVars: []string{"DATABASE_URL"}, Required: true},
		&cli.StringFlag{Name: "rpc-url", Required: true},
		&cli.StringFlag{Name: "chain", Required: true},
		&cli.StringFlag{Name: "dex", Required: true},
		&cli.StringFlag{Name: "pair", Required: true, Usage: "e.g. ARB/USDC"},
		&cli.StringFlag{Name: "address", Required: true, Usage: "pool contract address"},
		&cli.IntFlag{Name: "days-back", Value: 1},
		&cli.Uint64Flag{Name: "block-chunk-size", Value: 10_000},
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
	applog.Init(false, applog.FileConfig{})
	ctx := context.Background()

	st, err := store.Connect(ctx, c.String("database-url"))
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer st.Close()

	client, err := chainclient.Get(ctx, c.String("rpc-url"))
	if err != nil {
		return fmt.Errorf("connect chain client: %w", err)
	}

	cfg := config.Default()
	pipeline := orchestrator.New(client, st, orchestrator.Config{
		DaysBack:             c.Int("days-back"),
		BlockChunkSize:       c.Uint64("block-chunk-size"),
		PriceDeviationPct:    cfg.PriceDeviationPct,
		VolumeFloor:          cfg.VolumeFloor,
		DerivedMetricsWindow: cfg.DerivedMetricsWindow,
		RouterMap:            enrich.RouterMap{},
	})

	pool := model.Pool{
		Chain:   c.String("chain"),
		Dex:     c.String("dex"),
		Pair:    c.String("pair"),
		Address: c.String("address"),
		Active:  true,
	}

	swapTopic := decoder.TopicUniswapV3Swap
	switch pool.Dex {
	case "uniswap_v2", "camelot_v2", "sushiswap":
		swapTopic = decoder.TopicUniswapV2Swap
	}

	applog.Info("triggering ingestion", "chain", pool.Chain, "dex", pool.Dex, "pair", pool.Pair)
	return pipeline.Run(ctx, pool, swapTopic)
}
