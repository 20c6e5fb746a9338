package pool

import (
	"math/big"

	"github.com/holiman/uint256"

	"liquiditySim/internal/fixedpoint"
	"liquiditySim/internal/simerr"
	"liquiditySim/internal/tickmap"
)

// CheckInvariants verifies that the tick map, positions and active state
// agree with each other.
func (p *Pool) CheckInvariants() error {
	const op = "check invariants"

	active := new(big.Int)
	total := new(big.Int)
	var bad error
	p.ticks.Ascend(func(tick int32, info tickmap.Info) bool {
		if info.LiquidityGross.IsZero() {
			bad = simerr.Invariant(op, "pool %s tick %d is initialized with zero gross liquidity", p.cfg.ID, tick)
			return false
		}
		if new(big.Int).Abs(info.LiquidityNet).Cmp(info.LiquidityGross.ToBig()) > 0 {
			bad = simerr.Invariant(op, "pool %s tick %d |net| %s exceeds gross %s", p.cfg.ID, tick, info.LiquidityNet, info.LiquidityGross.ToBig())
			return false
		}
		if tick%p.cfg.TickSpacing != 0 {
			bad = simerr.Invariant(op, "pool %s tick %d not aligned to spacing %d", p.cfg.ID, tick, p.cfg.TickSpacing)
			return false
		}
		total.Add(total, info.LiquidityNet)
		if tick <= p.tick {
			active.Add(active, info.LiquidityNet)
		}
		return true
	})
	if bad != nil {
		return bad
	}
	if total.Sign() != 0 {
		return simerr.Invariant(op, "pool %s liquidity net sums to %s", p.cfg.ID, total)
	}
	if active.Cmp(p.liquidity.ToBig()) != 0 {
		return simerr.Invariant(op, "pool %s active liquidity %s != tick net sum %s at tick %d", p.cfg.ID, p.liquidity.ToBig(), active, p.tick)
	}

	gross := make(map[int32]*big.Int)
	for _, pos := range p.positions {
		if pos.Liquidity.IsZero() {
			continue
		}
		for _, t := range []int32{pos.TickLower, pos.TickUpper} {
			if gross[t] == nil {
				gross[t] = new(big.Int)
			}
			gross[t].Add(gross[t], pos.Liquidity.ToBig())
		}
	}
	if len(gross) != p.ticks.Len() {
		return simerr.Invariant(op, "pool %s has %d initialized ticks but positions reference %d", p.cfg.ID, p.ticks.Len(), len(gross))
	}
	for t, want := range gross {
		info, ok := p.ticks.Get(t)
		if !ok || info.LiquidityGross.ToBig().Cmp(want) != 0 {
			return simerr.Invariant(op, "pool %s tick %d gross %s, positions sum to %s", p.cfg.ID, t, info.LiquidityGross.ToBig(), want)
		}
	}

	lower, err := fixedpoint.TickToSqrtPrice(p.tick)
	if err != nil {
		return simerr.Invariant(op, "pool %s tick %d: %v", p.cfg.ID, p.tick, err)
	}
	if p.sqrtPrice.Lt(lower) {
		return simerr.Invariant(op, "pool %s sqrt price %s below tick %d boundary", p.cfg.ID, p.sqrtPrice.ToBig(), p.tick)
	}
	if p.tick < fixedpoint.MaxTick {
		upper, err := fixedpoint.TickToSqrtPrice(p.tick + 1)
		if err != nil {
			return simerr.Invariant(op, "pool %s tick %d: %v", p.cfg.ID, p.tick+1, err)
		}
		if p.sqrtPrice.Gt(upper) {
			return simerr.Invariant(op, "pool %s sqrt price %s above tick %d boundary", p.cfg.ID, p.sqrtPrice.ToBig(), p.tick+1)
		}
	}
	return nil
}

// State is a serializable snapshot of a pool for diagnostics.
type State struct {
	ID               string          `json:"id"`
	SqrtPrice        string          `json:"sqrt_price"`
	Tick             int32           `json:"tick"`
	Liquidity        string          `json:"liquidity"`
	FeeGrowthGlobal0 string          `json:"fee_growth_global0"`
	FeeGrowthGlobal1 string          `json:"fee_growth_global1"`
	Ticks            []TickState     `json:"ticks"`
	Positions        []PositionState `json:"positions"`
}

type TickState struct {
	Tick              int32  `json:"tick"`
	LiquidityGross    string `json:"liquidity_gross"`
	LiquidityNet      string `json:"liquidity_net"`
	FeeGrowthOutside0 string `json:"fee_growth_outside0"`
	FeeGrowthOutside1 string `json:"fee_growth_outside1"`
}

type PositionState struct {
	Owner       string `json:"owner"`
	ID          string `json:"id"`
	TickLower   int32  `json:"tick_lower"`
	TickUpper   int32  `json:"tick_upper"`
	Liquidity   string `json:"liquidity"`
	TokensOwed0 string `json:"tokens_owed0"`
	TokensOwed1 string `json:"tokens_owed1"`
}

func dec(v *uint256.Int) string {
	return v.ToBig().String()
}

// Dump captures the full pool state.
func (p *Pool) Dump() State {
	s := State{
		ID:               p.cfg.ID,
		SqrtPrice:        dec(p.sqrtPrice),
		Tick:             p.tick,
		Liquidity:        dec(p.liquidity),
		FeeGrowthGlobal0: dec(p.feeGrowthGlobal0),
		FeeGrowthGlobal1: dec(p.feeGrowthGlobal1),
	}
	p.ticks.Ascend(func(tick int32, info tickmap.Info) bool {
		s.Ticks = append(s.Ticks, TickState{
			Tick:              tick,
			LiquidityGross:    dec(info.LiquidityGross),
			LiquidityNet:      info.LiquidityNet.String(),
			FeeGrowthOutside0: dec(info.FeeGrowthOutside0),
			FeeGrowthOutside1: dec(info.FeeGrowthOutside1),
		})
		return true
	})
	for _, pos := range p.Positions() {
		s.Positions = append(s.Positions, PositionState{
			Owner:       pos.Owner,
			ID:          pos.ID,
			TickLower:   pos.TickLower,
			TickUpper:   pos.TickUpper,
			Liquidity:   dec(pos.Liquidity),
			TokensOwed0: dec(pos.TokensOwed0),
			TokensOwed1: dec(pos.TokensOwed1),
		})
	}
	return s
}
