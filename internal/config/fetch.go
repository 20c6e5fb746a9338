package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// FetchConfig holds configuration for the fetch command.
type FetchConfig struct {
	RPCURL            string
	Pool              string
	PoolID            string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Out               string
	InitOut           string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	Kinds             []string
	LogLevel          string
}

// LoadFetch merges config file, environment variables, and flags into FetchConfig.
func LoadFetch(cfgFile string, flags *pflag.FlagSet) (FetchConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(2000),
		"out":                "./data/replay.jsonl",
		"checkpoint":         "./data/fetch_checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"log-level":          "info",
	})
	if err != nil {
		return FetchConfig{}, err
	}

	cfg := FetchConfig{
		RPCURL:            v.GetString("rpc"),
		Pool:              v.GetString("pool"),
		PoolID:            v.GetString("pool-id"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		InitOut:           v.GetString("init-out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Kinds:             getStringSlice(v, "kinds"),
		LogLevel:          v.GetString("log-level"),
	}
	if cfg.RPCURL == "" {
		return FetchConfig{}, fmt.Errorf("rpc is required")
	}
	if cfg.Pool == "" {
		return FetchConfig{}, fmt.Errorf("pool address is required")
	}
	if cfg.PoolID == "" {
		cfg.PoolID = cfg.Pool
	}
	return cfg, nil
}
