// Package registry resolves configured protocol and source identifiers to
// their constructors. The set of identifiers is closed: unknown names fail
// at startup.
package registry

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"

	"liquiditySim/internal/config"
	"liquiditySim/internal/pool"
	"liquiditySim/internal/simerr"
	"liquiditySim/internal/source"
)

// PoolFactory builds a pool for one protocol.
type PoolFactory func(cfg config.PoolConfig) (*pool.Pool, error)

// SourceFactory builds one transaction source kind.
type SourceFactory func(cfg config.SourceConfig) (source.Source, error)

const (
	KindHistoricalReplay = "historical_replay"
	KindScheduled        = "scheduled"
	KindSpotTracker      = "spot_tracker"
	KindThresholdSwapper = "threshold_swapper"
	KindArbitrageur      = "arbitrageur"
)

var protocols = map[string]PoolFactory{
	pool.Protocol: newUniswapV3,
}

var sourceKinds = map[string]SourceFactory{
	KindHistoricalReplay: newHistoricalReplay,
	KindScheduled:        newScheduled,
	KindSpotTracker:      newSpotTracker,
	KindThresholdSwapper: newThresholdSwapper,
	KindArbitrageur:      newArbitrageur,
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Protocols lists the known pool protocols.
func Protocols() []string { return sortedKeys(protocols) }

// SourceKinds lists the known transaction source kinds.
func SourceKinds() []string { return sortedKeys(sourceKinds) }

// NewPool builds a pool. An empty protocol means uniswap_v3.
func NewPool(cfg config.PoolConfig) (*pool.Pool, error) {
	name := cfg.Protocol
	if name == "" {
		name = pool.Protocol
	}
	factory, ok := protocols[name]
	if !ok {
		return nil, simerr.Validation("registry", "pool %s: unknown protocol %q (known: %s)", cfg.ID, name, strings.Join(Protocols(), ", "))
	}
	return factory(cfg)
}

// NewSource builds a transaction source. The id defaults to the kind.
func NewSource(cfg config.SourceConfig) (source.Source, error) {
	factory, ok := sourceKinds[cfg.Kind]
	if !ok {
		return nil, simerr.Validation("registry", "source %s: unknown kind %q (known: %s)", cfg.ID, cfg.Kind, strings.Join(SourceKinds(), ", "))
	}
	if cfg.ID == "" {
		cfg.ID = cfg.Kind
	}
	src, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", cfg.ID, err)
	}
	return src, nil
}

func decodeParams(params map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}

// ParseAmount parses a raw integer amount. Empty means unset.
func ParseAmount(field, value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", field, value)
	}
	return v, nil
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return d, nil
}
