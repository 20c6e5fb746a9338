package spot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquiditySim/internal/fixedpoint"
	"liquiditySim/internal/pool"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStaticAndChainInverse(t *testing.T) {
	s, err := NewStatic(map[string]decimal.Decimal{"ETH/USDC": d("2000")})
	require.NoError(t, err)

	p, ok := s.Price(1, "ETH", "USDC")
	require.True(t, ok)
	assert.True(t, p.Equal(d("2000")))
	_, ok = s.Price(1, "USDC", "ETH")
	assert.False(t, ok)

	c := Chain{s}
	inv, ok := c.Price(1, "USDC", "ETH")
	require.True(t, ok)
	assert.True(t, inv.Equal(d("0.0005")), inv.String())

	one, ok := c.Price(1, "DAI", "DAI")
	require.True(t, ok)
	assert.True(t, one.Equal(decimal.NewFromInt(1)))

	_, err = NewStatic(map[string]decimal.Decimal{"ETH": d("1")})
	assert.Error(t, err)
	_, err = NewStatic(map[string]decimal.Decimal{"ETH/USDC": d("0")})
	assert.Error(t, err)
}

func TestHistoricalCarriesForward(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.jsonl")
	content := `{"block":10,"base":"ETH","quote":"USDC","price":"2000"}
{"block":5,"base":"ETH","quote":"USDC","price":"1900"}

{"block":20,"base":"ETH","quote":"USDC","price":"2100"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	h, err := LoadHistorical(path)
	require.NoError(t, err)

	_, ok := h.Price(4, "ETH", "USDC")
	assert.False(t, ok)
	for block, want := range map[uint64]string{5: "1900", 9: "1900", 10: "2000", 19: "2000", 25: "2100"} {
		p, ok := h.Price(block, "ETH", "USDC")
		require.True(t, ok, "block %d", block)
		assert.True(t, p.Equal(d(want)), "block %d: %s", block, p)
	}

	require.NoError(t, os.WriteFile(path, []byte(`{"block":1,"base":"ETH","quote":"USDC","price":"-1"}`), 0o644))
	_, err = LoadHistorical(path)
	assert.Error(t, err)
}

func TestGBMDeterministic(t *testing.T) {
	params := GBMParams{Base: "ETH", Quote: "USDC", StartBlock: 100, Initial: d("2000"), Drift: 0, Volatility: 0.01, Seed: 42}
	a, err := NewGBM(params)
	require.NoError(t, err)
	b, err := NewGBM(params)
	require.NoError(t, err)

	first, ok := a.Price(100, "ETH", "USDC")
	require.True(t, ok)
	assert.True(t, first.Equal(d("2000")))

	// query out of order on one path, in order on the other
	late, _ := a.Price(150, "ETH", "USDC")
	for block := uint64(100); block <= 150; block++ {
		p, ok := b.Price(block, "ETH", "USDC")
		require.True(t, ok)
		assert.True(t, p.IsPositive())
	}
	same, _ := b.Price(150, "ETH", "USDC")
	assert.True(t, late.Equal(same))

	_, ok = a.Price(99, "ETH", "USDC")
	assert.False(t, ok)
	_, ok = a.Price(120, "USDC", "ETH")
	assert.False(t, ok)

	_, err = NewGBM(GBMParams{Base: "ETH", Quote: "USDC", Initial: d("0")})
	assert.Error(t, err)
}

func TestPoolsImpliedPrice(t *testing.T) {
	p, err := pool.New(pool.Config{
		ID: "p", Token0: "ETH", Token1: "USDC", Decimals0: 18, Decimals1: 18,
		FeePips: 3000, TickSpacing: 60, InitialSqrtPrice: fixedpoint.Q96,
	})
	require.NoError(t, err)
	src := Pools{p}

	fwd, ok := src.Price(0, "ETH", "USDC")
	require.True(t, ok)
	assert.True(t, fwd.Equal(decimal.NewFromInt(1)))
	inv, ok := src.Price(0, "USDC", "ETH")
	require.True(t, ok)
	assert.True(t, inv.Equal(decimal.NewFromInt(1)))
	_, ok = src.Price(0, "ETH", "DAI")
	assert.False(t, ok)
}
