package pool

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"liquiditySim/internal/fixedpoint"
	"liquiditySim/internal/simerr"
)

// MintParams adds liquidity to a position. Either Liquidity is set, or it is
// derived as the most the desired amounts can fund.
type MintParams struct {
	Owner          string
	PositionID     string
	TickLower      int32
	TickUpper      int32
	Amount0Desired *uint256.Int
	Amount1Desired *uint256.Int
	Liquidity      *uint256.Int
}

// MintPlan is a validated mint. Amounts are owed to the pool, rounded up.
type MintPlan struct {
	Params    MintParams
	Liquidity *uint256.Int
	Amount0   *uint256.Int
	Amount1   *uint256.Int
	version   uint64
}

// BurnParams removes liquidity. Liquidity takes precedence over Fraction,
// which must be in (0, 1].
type BurnParams struct {
	Owner      string
	PositionID string
	Fraction   decimal.Decimal
	Liquidity  *uint256.Int
}

// BurnPlan is a validated burn. Amounts are principal owed to the owner,
// rounded down; FeesOwed are the position's total uncollected fees after
// settlement.
type BurnPlan struct {
	Params    BurnParams
	Liquidity *uint256.Int
	Amount0   *uint256.Int
	Amount1   *uint256.Int
	FeesOwed0 *uint256.Int
	FeesOwed1 *uint256.Int
	version   uint64
}

type CollectParams struct {
	Owner      string
	PositionID string
}

type CollectPlan struct {
	Params  CollectParams
	Amount0 *uint256.Int
	Amount1 *uint256.Int
	version uint64
}

func (p *Pool) checkTicks(op string, lower, upper int32) error {
	switch {
	case lower >= upper:
		return simerr.Newf(simerr.ClassValidation, op, "%w: lower %d >= upper %d", simerr.ErrInvalidRange, lower, upper)
	case lower < fixedpoint.MinTick || upper > fixedpoint.MaxTick:
		return simerr.Newf(simerr.ClassValidation, op, "%w: [%d, %d] outside tick domain", simerr.ErrInvalidRange, lower, upper)
	case lower%p.cfg.TickSpacing != 0 || upper%p.cfg.TickSpacing != 0:
		return simerr.Newf(simerr.ClassValidation, op, "%w: [%d, %d] not aligned to spacing %d", simerr.ErrInvalidRange, lower, upper, p.cfg.TickSpacing)
	}
	return nil
}

func (p *Pool) inRange(lower, upper int32) bool {
	return p.tick >= lower && p.tick < upper
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// PlanMint validates a mint and computes the amounts it will pull.
func (p *Pool) PlanMint(params MintParams) (*MintPlan, error) {
	const op = "mint"
	if err := p.checkTicks(op, params.TickLower, params.TickUpper); err != nil {
		return nil, err
	}
	existing, exists := p.positions[PositionKey{Owner: params.Owner, ID: params.PositionID}]
	if exists && (existing.TickLower != params.TickLower || existing.TickUpper != params.TickUpper) {
		return nil, simerr.Validation(op, "position %s/%s already spans [%d, %d]", params.Owner, params.PositionID, existing.TickLower, existing.TickUpper)
	}

	sqrtLower, sqrtUpper, err := p.rangePrices(params.TickLower, params.TickUpper)
	if err != nil {
		return nil, err
	}

	liquidity := orZero(params.Liquidity)
	if liquidity.IsZero() {
		liquidity, err = fixedpoint.LiquidityFromAmounts(p.sqrtPrice, sqrtLower, sqrtUpper, orZero(params.Amount0Desired), orZero(params.Amount1Desired))
		if err != nil {
			return nil, err
		}
	}
	if liquidity.IsZero() {
		return nil, simerr.Newf(simerr.ClassValidation, op, "%w: pool %s range [%d, %d]", simerr.ErrZeroLiquidity, p.cfg.ID, params.TickLower, params.TickUpper)
	}
	if _, err := fixedpoint.ToUint128(op, liquidity); err != nil {
		return nil, err
	}

	delta := liquidity.ToBig()
	if err := p.ticks.CheckUpdate(params.TickLower, delta, p.maxLiquidity); err != nil {
		return nil, err
	}
	if err := p.ticks.CheckUpdate(params.TickUpper, delta, p.maxLiquidity); err != nil {
		return nil, err
	}
	if exists {
		if _, err := fixedpoint.AddDelta(existing.Liquidity, delta); err != nil {
			return nil, err
		}
	}
	if p.inRange(params.TickLower, params.TickUpper) {
		if _, err := fixedpoint.AddDelta(p.liquidity, delta); err != nil {
			return nil, err
		}
	}

	amount0, amount1, err := fixedpoint.AmountsFromLiquidity(p.sqrtPrice, sqrtLower, sqrtUpper, liquidity, true)
	if err != nil {
		return nil, err
	}
	return &MintPlan{
		Params:    params,
		Liquidity: new(uint256.Int).Set(liquidity),
		Amount0:   amount0,
		Amount1:   amount1,
		version:   p.version,
	}, nil
}

// CommitMint applies a plan produced by PlanMint against the same state.
func (p *Pool) CommitMint(plan *MintPlan) error {
	if err := p.checkVersion("commit mint", plan.version); err != nil {
		return err
	}
	key := PositionKey{Owner: plan.Params.Owner, ID: plan.Params.PositionID}
	pos, ok := p.positions[key]
	if !ok {
		pos = newPosition(plan.Params.Owner, plan.Params.PositionID, plan.Params.TickLower, plan.Params.TickUpper)
	}
	if err := p.modifyPosition(pos, plan.Liquidity.ToBig()); err != nil {
		return err
	}
	p.positions[key] = pos
	p.version++
	return nil
}

// Mint plans and commits in one call.
func (p *Pool) Mint(params MintParams) (*MintPlan, error) {
	plan, err := p.PlanMint(params)
	if err != nil {
		return nil, err
	}
	return plan, p.CommitMint(plan)
}

func (p *Pool) PlanBurn(params BurnParams) (*BurnPlan, error) {
	const op = "burn"
	pos, err := p.lookup(op, params.Owner, params.PositionID)
	if err != nil {
		return nil, err
	}

	liquidity := orZero(params.Liquidity)
	if liquidity.IsZero() {
		if !params.Fraction.IsPositive() || params.Fraction.GreaterThan(decimal.NewFromInt(1)) {
			return nil, simerr.Validation(op, "burn fraction %s outside (0, 1]", params.Fraction)
		}
		if pos.Liquidity.IsZero() {
			return nil, simerr.Newf(simerr.ClassValidation, op, "%w: position %s/%s is empty", simerr.ErrZeroLiquidity, params.Owner, params.PositionID)
		}
		scaled := decimal.NewFromBigInt(pos.Liquidity.ToBig(), 0).Mul(params.Fraction).Floor().BigInt()
		liquidity, err = fixedpoint.FromBig(op, scaled)
		if err != nil {
			return nil, err
		}
	}
	if liquidity.Gt(pos.Liquidity) {
		return nil, simerr.Newf(simerr.ClassInsufficientLiquidity, op, "%w: burn %s exceeds position liquidity %s", simerr.ErrInsufficientLiquidity, liquidity.ToBig(), pos.Liquidity.ToBig())
	}

	sqrtLower, sqrtUpper, err := p.rangePrices(pos.TickLower, pos.TickUpper)
	if err != nil {
		return nil, err
	}
	amount0, amount1, err := fixedpoint.AmountsFromLiquidity(p.sqrtPrice, sqrtLower, sqrtUpper, liquidity, false)
	if err != nil {
		return nil, err
	}
	fees0, fees1, _, _, err := p.pendingFees(pos)
	if err != nil {
		return nil, err
	}
	return &BurnPlan{
		Params:    params,
		Liquidity: new(uint256.Int).Set(liquidity),
		Amount0:   amount0,
		Amount1:   amount1,
		FeesOwed0: fees0.Add(fees0, pos.TokensOwed0),
		FeesOwed1: fees1.Add(fees1, pos.TokensOwed1),
		version:   p.version,
	}, nil
}

func (p *Pool) CommitBurn(plan *BurnPlan) error {
	if err := p.checkVersion("commit burn", plan.version); err != nil {
		return err
	}
	pos, err := p.lookup("commit burn", plan.Params.Owner, plan.Params.PositionID)
	if err != nil {
		return err
	}
	if err := p.modifyPosition(pos, new(big.Int).Neg(plan.Liquidity.ToBig())); err != nil {
		return err
	}
	p.version++
	return nil
}

func (p *Pool) Burn(params BurnParams) (*BurnPlan, error) {
	plan, err := p.PlanBurn(params)
	if err != nil {
		return nil, err
	}
	return plan, p.CommitBurn(plan)
}

// PlanCollect computes everything a collect pays out: settled fees plus
// those accrued since the last touch.
func (p *Pool) PlanCollect(params CollectParams) (*CollectPlan, error) {
	pos, err := p.lookup("collect", params.Owner, params.PositionID)
	if err != nil {
		return nil, err
	}
	fees0, fees1, _, _, err := p.pendingFees(pos)
	if err != nil {
		return nil, err
	}
	return &CollectPlan{
		Params:  params,
		Amount0: fees0.Add(fees0, pos.TokensOwed0),
		Amount1: fees1.Add(fees1, pos.TokensOwed1),
		version: p.version,
	}, nil
}

func (p *Pool) CommitCollect(plan *CollectPlan) error {
	if err := p.checkVersion("commit collect", plan.version); err != nil {
		return err
	}
	pos, err := p.lookup("commit collect", plan.Params.Owner, plan.Params.PositionID)
	if err != nil {
		return err
	}
	if err := p.settle(pos); err != nil {
		return err
	}
	if !pos.TokensOwed0.Eq(plan.Amount0) || !pos.TokensOwed1.Eq(plan.Amount1) {
		return simerr.Invariant("commit collect", "owed %s/%s differs from plan %s/%s",
			pos.TokensOwed0.ToBig(), pos.TokensOwed1.ToBig(), plan.Amount0.ToBig(), plan.Amount1.ToBig())
	}
	pos.Collected0 = new(uint256.Int).Add(pos.Collected0, pos.TokensOwed0)
	pos.Collected1 = new(uint256.Int).Add(pos.Collected1, pos.TokensOwed1)
	pos.TokensOwed0 = new(uint256.Int)
	pos.TokensOwed1 = new(uint256.Int)
	p.version++
	return nil
}

func (p *Pool) Collect(params CollectParams) (*CollectPlan, error) {
	plan, err := p.PlanCollect(params)
	if err != nil {
		return nil, err
	}
	return plan, p.CommitCollect(plan)
}

// modifyPosition applies a liquidity delta to a position: boundary ticks,
// fee settlement, the position itself and, when in range, the active
// liquidity. Boundary ticks that drop to zero gross are cleared.
func (p *Pool) modifyPosition(pos *Position, delta *big.Int) error {
	var flippedLower, flippedUpper bool
	if delta.Sign() != 0 {
		var err error
		flippedLower, err = p.ticks.Update(pos.TickLower, p.tick, delta, p.feeGrowthGlobal0, p.feeGrowthGlobal1, false, p.maxLiquidity)
		if err != nil {
			return err
		}
		flippedUpper, err = p.ticks.Update(pos.TickUpper, p.tick, delta, p.feeGrowthGlobal0, p.feeGrowthGlobal1, true, p.maxLiquidity)
		if err != nil {
			return err
		}
	}

	if err := p.settle(pos); err != nil {
		return err
	}
	liquidity, err := fixedpoint.AddDelta(pos.Liquidity, delta)
	if err != nil {
		return err
	}
	pos.Liquidity = liquidity

	if delta.Sign() < 0 {
		if flippedLower {
			p.ticks.Clear(pos.TickLower)
		}
		if flippedUpper {
			p.ticks.Clear(pos.TickUpper)
		}
	}

	if p.inRange(pos.TickLower, pos.TickUpper) {
		active, err := fixedpoint.AddDelta(p.liquidity, delta)
		if err != nil {
			return err
		}
		p.liquidity = active
	}
	return nil
}
