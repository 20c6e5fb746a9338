package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SIMULATOR_END.
const EnvPrefix = "SIMULATOR"

// PoolConfig describes one simulated pool. InitialPrice is whole token1 per
// whole token0; InitialTick takes precedence when set.
type PoolConfig struct {
	ID           string `mapstructure:"id"`
	Protocol     string `mapstructure:"protocol"`
	Token0       string `mapstructure:"token0"`
	Token1       string `mapstructure:"token1"`
	Decimals0    uint8  `mapstructure:"decimals0"`
	Decimals1    uint8  `mapstructure:"decimals1"`
	FeePips      uint32 `mapstructure:"fee-pips"`
	TickSpacing  int32  `mapstructure:"tick-spacing"`
	InitialPrice string `mapstructure:"initial-price"`
	InitialTick  *int32 `mapstructure:"initial-tick"`
}

// Holding is an opening wallet balance in raw token units.
type Holding struct {
	Token  string `mapstructure:"token"`
	Amount string `mapstructure:"amount"`
}

type AgentConfig struct {
	Name   string    `mapstructure:"name"`
	Wallet []Holding `mapstructure:"wallet"`
}

// SourceConfig selects a transaction source kind. Params are decoded by the
// kind's constructor.
type SourceConfig struct {
	Kind   string                 `mapstructure:"kind"`
	ID     string                 `mapstructure:"id"`
	Agent  string                 `mapstructure:"agent"`
	Pool   string                 `mapstructure:"pool"`
	Path   string                 `mapstructure:"path"`
	Params map[string]interface{} `mapstructure:"params"`
}

type PriceConfig struct {
	Pair  string `mapstructure:"pair"`
	Price string `mapstructure:"price"`
}

type GBMConfig struct {
	Base       string  `mapstructure:"base"`
	Quote      string  `mapstructure:"quote"`
	StartBlock uint64  `mapstructure:"start-block"`
	Initial    string  `mapstructure:"initial"`
	Drift      float64 `mapstructure:"drift"`
	Volatility float64 `mapstructure:"volatility"`
	Seed       int64   `mapstructure:"seed"`
}

// SpotConfig lists reference price sources, consulted in the order static,
// historical file, gbm, then the simulated pools themselves.
type SpotConfig struct {
	Prices []PriceConfig `mapstructure:"prices"`
	Path   string        `mapstructure:"path"`
	GBM    []GBMConfig   `mapstructure:"gbm"`
}

// Config holds the run command configuration.
type Config struct {
	Start            uint64
	End              uint64
	Step             uint64
	Numeraire        string
	GasFee           string
	GasToken         string
	AbortOnTxFailure bool
	CheckInvariants  bool
	ParallelSources  bool
	MaxParallel      int
	Out              string
	PGDSN            string
	RunID            string
	MetricsAddr      string
	Timeout          time.Duration
	LogLevel         string

	Pools   []PoolConfig
	Agents  []AgentConfig
	Sources []SourceConfig
	Spot    SpotConfig
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"step":             uint64(1),
		"gas-fee":          "0",
		"check-invariants": true,
		"max-parallel":     4,
		"out":              "./data/run",
		"log-level":        "info",
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Start:            v.GetUint64("start"),
		End:              v.GetUint64("end"),
		Step:             v.GetUint64("step"),
		Numeraire:        v.GetString("numeraire"),
		GasFee:           v.GetString("gas-fee"),
		GasToken:         v.GetString("gas-token"),
		AbortOnTxFailure: v.GetBool("abort-on-tx-failure"),
		CheckInvariants:  v.GetBool("check-invariants"),
		ParallelSources:  v.GetBool("parallel-sources"),
		MaxParallel:      v.GetInt("max-parallel"),
		Out:              v.GetString("out"),
		PGDSN:            v.GetString("pg-dsn"),
		RunID:            v.GetString("run-id"),
		MetricsAddr:      v.GetString("metrics-addr"),
		Timeout:          v.GetDuration("timeout"),
		LogLevel:         v.GetString("log-level"),
	}
	for key, target := range map[string]interface{}{
		"pools":   &cfg.Pools,
		"agents":  &cfg.Agents,
		"sources": &cfg.Sources,
		"spot":    &cfg.Spot,
	} {
		if err := v.UnmarshalKey(key, target); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", key, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.End < c.Start {
		return fmt.Errorf("end block %d is before start block %d", c.End, c.Start)
	}
	if c.Step == 0 {
		return fmt.Errorf("step must be positive")
	}
	if len(c.Pools) == 0 {
		return fmt.Errorf("at least one pool is required")
	}
	seen := make(map[string]bool, len(c.Pools))
	for _, p := range c.Pools {
		if p.ID == "" {
			return fmt.Errorf("pool id is required")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate pool id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
