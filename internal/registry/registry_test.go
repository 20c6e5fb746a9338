package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquiditySim/internal/config"
	"liquiditySim/internal/model"
	"liquiditySim/internal/simerr"
	"liquiditySim/internal/source"
)

func int32p(v int32) *int32 { return &v }

func TestNewPoolFromPriceAndTick(t *testing.T) {
	p, err := NewPool(config.PoolConfig{
		ID: "eth-usdc", Token0: "ETH", Token1: "USDC", Decimals0: 18, Decimals1: 6,
		FeePips: 3000, InitialPrice: "2000",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(60), p.Config().TickSpacing)
	diff := p.DexSpot().Sub(decimal.NewFromInt(2000)).Abs()
	assert.True(t, diff.LessThan(decimal.RequireFromString("0.000001")), p.DexSpot().String())

	p, err = NewPool(config.PoolConfig{
		ID: "t", Protocol: "uniswap_v3", Token0: "A", Token1: "B", FeePips: 500, InitialTick: int32p(-120),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(-120), p.Tick())
	assert.Equal(t, int32(10), p.Config().TickSpacing)
}

func TestNewPoolFailsFast(t *testing.T) {
	_, err := NewPool(config.PoolConfig{ID: "x", Protocol: "balancer", Token0: "A", Token1: "B", InitialPrice: "1"})
	require.Error(t, err)
	assert.Equal(t, simerr.ClassValidation, simerr.ClassOf(err))

	_, err = NewPool(config.PoolConfig{ID: "x", Token0: "A", Token1: "B", FeePips: 1234, InitialPrice: "1"})
	assert.Error(t, err)

	_, err = NewPool(config.PoolConfig{ID: "x", Token0: "A", Token1: "B", FeePips: 3000})
	assert.Error(t, err)
}

func TestNewSourceKinds(t *testing.T) {
	assert.Equal(t, []string{"arbitrageur", "historical_replay", "scheduled", "spot_tracker", "threshold_swapper"}, SourceKinds())
	assert.Equal(t, []string{"uniswap_v3"}, Protocols())

	_, err := NewSource(config.SourceConfig{Kind: "martingale"})
	require.Error(t, err)

	src, err := NewSource(config.SourceConfig{
		Kind: KindScheduled, Agent: "alice", Pool: "p",
		Params: map[string]interface{}{
			"actions": []interface{}{
				map[string]interface{}{"block": 3, "kind": "mint", "tick-lower": -60, "tick-upper": 60, "amount0": "1000", "amount1": 1000},
				map[string]interface{}{"block": 4, "kind": "burn", "position-id": "-60:60", "fraction": "0.5"},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, KindScheduled, src.ID())
	reqs, err := src.ForBlock(context.Background(), 3, nil)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, int64(1000), reqs[0].Mint.Amount1Desired.Int64())

	_, err = NewSource(config.SourceConfig{
		Kind: KindScheduled, Agent: "alice", Pool: "p",
		Params: map[string]interface{}{"actions": []interface{}{map[string]interface{}{"block": 1, "kind": "mint", "colour": "red"}}},
	})
	assert.Error(t, err, "unknown params are rejected")

	src, err = NewSource(config.SourceConfig{
		Kind: KindSpotTracker, ID: "trk", Agent: "alice", Pool: "p",
		Params: map[string]interface{}{"width": "0.1", "amount0": "100"},
	})
	require.NoError(t, err)
	assert.IsType(t, &source.SpotTracker{}, src)

	src, err = NewSource(config.SourceConfig{
		Kind: KindThresholdSwapper, ID: "thr", Agent: "bob", Pool: "p",
		Params: map[string]interface{}{"threshold": "1.5", "above": true, "amount": "10"},
	})
	require.NoError(t, err)
	assert.IsType(t, &source.ThresholdSwapper{}, src)

	src, err = NewSource(config.SourceConfig{Kind: KindArbitrageur, Pool: "p", Params: map[string]interface{}{"tolerance": 0.01}})
	require.NoError(t, err)
	assert.IsType(t, &source.Arbitrageur{}, src)

	_, err = NewSource(config.SourceConfig{Kind: KindHistoricalReplay})
	assert.Error(t, err)
}

func TestNewHistoricalReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"block":7,"agent":"a","kind":"swap","pool":"x","params":{"zero_for_one":false,"amount":"5"}}`+"\n"), 0o644))
	src, err := NewSource(config.SourceConfig{Kind: KindHistoricalReplay, ID: "hist", Path: path, Pool: "p"})
	require.NoError(t, err)
	reqs, err := src.ForBlock(context.Background(), 7, nil)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, model.KindSwap, reqs[0].Kind)
	assert.Equal(t, "p", reqs[0].Pool)
}
