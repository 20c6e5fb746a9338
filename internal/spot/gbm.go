package spot

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"
)

// GBMParams describe a geometric Brownian motion price path for one pair.
// Drift and Volatility are per block.
type GBMParams struct {
	Base       string
	Quote      string
	StartBlock uint64
	Initial    decimal.Decimal
	Drift      float64
	Volatility float64
	Seed       int64
}

// GBM is a deterministic synthetic price path. The same seed always yields
// the same prices for the same blocks.
type GBM struct {
	params GBMParams

	mu   sync.Mutex
	rng  *rand.Rand
	path []float64
}

func NewGBM(params GBMParams) (*GBM, error) {
	if params.Base == "" || params.Quote == "" {
		return nil, fmt.Errorf("gbm: base and quote are required")
	}
	if !params.Initial.IsPositive() {
		return nil, fmt.Errorf("gbm %s: initial price must be positive", PairKey(params.Base, params.Quote))
	}
	if params.Volatility < 0 {
		return nil, fmt.Errorf("gbm %s: volatility must not be negative", PairKey(params.Base, params.Quote))
	}
	initial, _ := params.Initial.Float64()
	return &GBM{
		params: params,
		rng:    rand.New(rand.NewSource(params.Seed)),
		path:   []float64{initial},
	}, nil
}

func (g *GBM) Price(block uint64, base, quote string) (decimal.Decimal, bool) {
	if base != g.params.Base || quote != g.params.Quote || block < g.params.StartBlock {
		return decimal.Zero, false
	}
	step := block - g.params.StartBlock

	g.mu.Lock()
	defer g.mu.Unlock()
	drift := g.params.Drift - g.params.Volatility*g.params.Volatility/2
	for uint64(len(g.path)) <= step {
		last := g.path[len(g.path)-1]
		g.path = append(g.path, last*math.Exp(drift+g.params.Volatility*g.rng.NormFloat64()))
	}
	if step == 0 {
		return g.params.Initial, true
	}
	return decimal.NewFromFloat(g.path[step]), true
}
