// Package config binds the engine's environment variables and tunables
// to a typed Config struct, following the teacher's viper/pflag/cast
// configuration idiom.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ChainTuning holds the per-chain block-chunking knobs from spec.md §6.
type ChainTuning struct {
	RPCURL         string
	BlockChunkSize uint64
}

// Config is the fully-resolved runtime configuration for the engine.
type Config struct {
	DatabaseURL       string
	RedisURL          string
	AlchemyAPIKey     string

	Chains map[string]ChainTuning // keyed by lower-case chain name

	StaggerSecs            int
	SchedulerCron          string
	GlobalLockTTL          time.Duration
	PerPoolLockTTL         time.Duration
	DecodeSubChunkCap      int
	DecodeLogsPerSubChunk  int
	PriceDeviationPct      float64
	VolumeFloor            *float64
	DerivedMetricsWindow   int
	WorkerRecycleLimit     int
	EnrichRateLimitPerSec  float64
	EnrichBatchSize        int
}

// Default returns the configuration with every tunable from spec.md §6
// set to its documented default.
func Default() Config {
	return Config{
		Chains: map[string]ChainTuning{
			"arbitrum": {BlockChunkSize: 10_000},
			"base":     {BlockChunkSize: 1_500},
		},
		StaggerSecs:           180,
		SchedulerCron:         "*/5 * * * *",
		GlobalLockTTL:         5 * time.Minute,
		PerPoolLockTTL:        30 * time.Minute,
		DecodeSubChunkCap:     8,
		DecodeLogsPerSubChunk: 200,
		PriceDeviationPct:     0.05,
		DerivedMetricsWindow:  60,
		WorkerRecycleLimit:    20,
		EnrichRateLimitPerSec: 900,
		EnrichBatchSize:       100,
	}
}

// Load reads environment variables (via viper's automatic env binding)
// and CLI flags (via pflag, already parsed into flags) into a Config,
// starting from Default().
func Load(flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return cfg, fmt.Errorf("bind flags: %w", err)
		}
	}

	v.SetDefault("stagger_secs", cfg.StaggerSecs)
	v.SetDefault("scheduler_cron", cfg.SchedulerCron)

	cfg.DatabaseURL = v.GetString("database_url")
	cfg.RedisURL = v.GetString("redis_url")
	cfg.AlchemyAPIKey = v.GetString("alchemy_api_key")

	arb := cfg.Chains["arbitrum"]
	arb.RPCURL = v.GetString("arbitrum_rpc_url")
	cfg.Chains["arbitrum"] = arb

	base := cfg.Chains["base"]
	base.RPCURL = v.GetString("base_rpc_url")
	cfg.Chains["base"] = base

	if s := v.GetString("stagger_secs"); s != "" {
		secs, err := cast.ToIntE(s)
		if err == nil {
			cfg.StaggerSecs = secs
		}
	}
	if cron := v.GetString("scheduler_cron"); cron != "" {
		cfg.SchedulerCron = cron
	}

	return cfg, nil
}

// TuningFor returns the ChainTuning for a chain name, case-insensitive.
func (c Config) TuningFor(chain string) (ChainTuning, bool) {
	t, ok := c.Chains[strings.ToLower(chain)]
	return t, ok
}
