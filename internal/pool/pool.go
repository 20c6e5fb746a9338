package pool

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"liquiditySim/internal/fixedpoint"
	"liquiditySim/internal/simerr"
	"liquiditySim/internal/tickmap"
)

// Protocol is the registry identifier of this pool implementation.
const Protocol = "uniswap_v3"

var defaultSpacing = map[uint32]int32{
	100:   1,
	500:   10,
	3000:  60,
	10000: 200,
}

// DefaultTickSpacing returns the tick spacing conventionally paired with a fee tier.
func DefaultTickSpacing(feePips uint32) (int32, bool) {
	s, ok := defaultSpacing[feePips]
	return s, ok
}

// Config describes a pool at creation time.
type Config struct {
	ID               string
	Token0           string
	Token1           string
	Decimals0        uint8
	Decimals1        uint8
	FeePips          uint32
	TickSpacing      int32
	InitialSqrtPrice *uint256.Int
}

func (c Config) validate() error {
	const op = "new pool"
	switch {
	case c.ID == "":
		return simerr.Validation(op, "pool id is required")
	case c.Token0 == "" || c.Token1 == "":
		return simerr.Validation(op, "pool %s: both tokens are required", c.ID)
	case c.Token0 == c.Token1:
		return simerr.Validation(op, "pool %s: token0 and token1 are both %s", c.ID, c.Token0)
	case c.FeePips >= fixedpoint.FeeDenominator:
		return simerr.Validation(op, "pool %s: fee %d pips is not below %d", c.ID, c.FeePips, fixedpoint.FeeDenominator)
	case c.TickSpacing <= 0:
		return simerr.Validation(op, "pool %s: tick spacing must be positive", c.ID)
	case c.InitialSqrtPrice == nil:
		return simerr.Validation(op, "pool %s: initial price is required", c.ID)
	}
	return nil
}

// Stats are cumulative trading counters, in raw token units.
type Stats struct {
	Volume0 *big.Int
	Volume1 *big.Int
	Fees0   *big.Int
	Fees1   *big.Int
	Swaps   uint64
}

func (s Stats) clone() Stats {
	return Stats{
		Volume0: new(big.Int).Set(s.Volume0),
		Volume1: new(big.Int).Set(s.Volume1),
		Fees0:   new(big.Int).Set(s.Fees0),
		Fees1:   new(big.Int).Set(s.Fees1),
		Swaps:   s.Swaps,
	}
}

// Pool is a concentrated-liquidity AMM. It is not safe for concurrent
// mutation; concurrent reads are fine while no commit is running.
type Pool struct {
	cfg Config

	sqrtPrice        *uint256.Int
	tick             int32
	liquidity        *uint256.Int
	feeGrowthGlobal0 *uint256.Int
	feeGrowthGlobal1 *uint256.Int
	maxLiquidity     *uint256.Int

	ticks     *tickmap.Map
	positions map[PositionKey]*Position
	stats     Stats

	// version is bumped by every commit so that plans built against an
	// older state are refused.
	version uint64
}

// New creates and initializes a pool at cfg.InitialSqrtPrice.
func New(cfg Config) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	tick, err := fixedpoint.SqrtPriceToTick(cfg.InitialSqrtPrice)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", cfg.ID, err)
	}
	return &Pool{
		cfg:              cfg,
		sqrtPrice:        new(uint256.Int).Set(cfg.InitialSqrtPrice),
		tick:             tick,
		liquidity:        new(uint256.Int),
		feeGrowthGlobal0: new(uint256.Int),
		feeGrowthGlobal1: new(uint256.Int),
		maxLiquidity:     maxLiquidityPerTick(cfg.TickSpacing),
		ticks:            tickmap.New(),
		positions:        make(map[PositionKey]*Position),
		stats: Stats{
			Volume0: new(big.Int),
			Volume1: new(big.Int),
			Fees0:   new(big.Int),
			Fees1:   new(big.Int),
		},
	}, nil
}

func maxLiquidityPerTick(spacing int32) *uint256.Int {
	minTick := (fixedpoint.MinTick / spacing) * spacing
	maxTick := (fixedpoint.MaxTick / spacing) * spacing
	numTicks := uint64((maxTick-minTick)/spacing) + 1
	return new(uint256.Int).Div(fixedpoint.MaxUint128, uint256.NewInt(numTicks))
}

func (p *Pool) ID() string     { return p.cfg.ID }
func (p *Pool) Config() Config { return p.cfg }
func (p *Pool) Token0() string { return p.cfg.Token0 }
func (p *Pool) Token1() string { return p.cfg.Token1 }
func (p *Pool) Tick() int32    { return p.tick }

func (p *Pool) SqrtPrice() *uint256.Int {
	return new(uint256.Int).Set(p.sqrtPrice)
}

func (p *Pool) Liquidity() *uint256.Int {
	return new(uint256.Int).Set(p.liquidity)
}

// FeeGrowthGlobal returns the X128 fee growth accumulators.
func (p *Pool) FeeGrowthGlobal() (*uint256.Int, *uint256.Int) {
	return new(uint256.Int).Set(p.feeGrowthGlobal0), new(uint256.Int).Set(p.feeGrowthGlobal1)
}

func (p *Pool) Stats() Stats {
	return p.stats.clone()
}

// Ticks exposes the tick map read-only through Ascend/Get.
func (p *Pool) Ticks() TickReader {
	return p.ticks
}

// TickReader is the read-only subset of the tick map.
type TickReader interface {
	Get(tick int32) (tickmap.Info, bool)
	Len() int
	Ascend(fn func(tick int32, info tickmap.Info) bool)
}

// RawPrice is token1 per token0 in raw units.
func (p *Pool) RawPrice() decimal.Decimal {
	return fixedpoint.SqrtPriceToPrice(p.sqrtPrice)
}

// DexSpot is the price of one whole token0 in whole token1.
func (p *Pool) DexSpot() decimal.Decimal {
	shift := int32(p.cfg.Decimals0) - int32(p.cfg.Decimals1)
	return p.RawPrice().Shift(shift)
}

// Token returns the token symbol on a side, 0 or 1.
func (p *Pool) Token(side int) string {
	if side == 0 {
		return p.cfg.Token0
	}
	return p.cfg.Token1
}

// Decimals returns the decimals of a token symbol of this pool.
func (p *Pool) Decimals(token string) (uint8, bool) {
	switch token {
	case p.cfg.Token0:
		return p.cfg.Decimals0, true
	case p.cfg.Token1:
		return p.cfg.Decimals1, true
	}
	return 0, false
}

func (p *Pool) checkVersion(op string, version uint64) error {
	if version != p.version {
		return simerr.Invariant(op, "pool %s: plan built at version %d, pool is at %d", p.cfg.ID, version, p.version)
	}
	return nil
}

// Positions returns copies of every position, ordered by owner then id.
func (p *Pool) Positions() []Position {
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Reader is the read-only pool view given to transaction sources and metrics.
type Reader interface {
	ID() string
	Config() Config
	Token(side int) string
	Decimals(token string) (uint8, bool)
	SqrtPrice() *uint256.Int
	Tick() int32
	Liquidity() *uint256.Int
	FeeGrowthGlobal() (*uint256.Int, *uint256.Int)
	Stats() Stats
	DexSpot() decimal.Decimal
	Position(owner, id string) (Position, bool)
	Positions() []Position
	PositionStatus(owner, id string) (PositionStatus, error)
	PlanSwap(params SwapParams) (*SwapPlan, error)
}

var _ Reader = (*Pool)(nil)
