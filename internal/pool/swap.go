package pool

import (
	"math/big"

	"github.com/holiman/uint256"

	"liquiditySim/internal/fixedpoint"
	"liquiditySim/internal/simerr"
)

// SwapParams follows the V3 convention: a positive AmountSpecified is an
// exact input, a negative one an exact output. A nil SqrtPriceLimit means
// no limit short of the price domain bounds.
type SwapParams struct {
	ZeroForOne      bool
	AmountSpecified *big.Int
	SqrtPriceLimit  *uint256.Int
}

type crossing struct {
	tick             int32
	feeGrowthGlobal0 *uint256.Int
	feeGrowthGlobal1 *uint256.Int
}

// SwapPlan is the full outcome of a swap computed against a pool state.
// AmountIn includes FeeAmount and is in the input token.
type SwapPlan struct {
	Params    SwapParams
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	FeeAmount *uint256.Int
	// Partial is set when liquidity ran out or the limit was hit before the
	// specified amount was consumed.
	Partial bool

	SqrtPriceAfter *uint256.Int
	TickAfter      int32
	LiquidityAfter *uint256.Int
	Crossed        int

	feeGrowthGlobal0 *uint256.Int
	feeGrowthGlobal1 *uint256.Int
	crossings        []crossing
	version          uint64
}

// TokenIn returns the side of the input token.
func (s *SwapPlan) TokenIn() int {
	if s.Params.ZeroForOne {
		return 0
	}
	return 1
}

// IsNoop reports a zero-amount swap.
func (s *SwapPlan) IsNoop() bool {
	return s.AmountIn.IsZero() && s.AmountOut.IsZero()
}

// PlanSwap runs the swap loop without mutating the pool. Tick crossings are
// recorded and replayed on commit.
func (p *Pool) PlanSwap(params SwapParams) (*SwapPlan, error) {
	const op = "swap"
	plan := &SwapPlan{
		Params:           params,
		AmountIn:         new(uint256.Int),
		AmountOut:        new(uint256.Int),
		FeeAmount:        new(uint256.Int),
		SqrtPriceAfter:   new(uint256.Int).Set(p.sqrtPrice),
		TickAfter:        p.tick,
		LiquidityAfter:   new(uint256.Int).Set(p.liquidity),
		feeGrowthGlobal0: new(uint256.Int).Set(p.feeGrowthGlobal0),
		feeGrowthGlobal1: new(uint256.Int).Set(p.feeGrowthGlobal1),
		version:          p.version,
	}
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return plan, nil
	}
	exactIn := params.AmountSpecified.Sign() > 0
	zeroForOne := params.ZeroForOne

	limit, defaultLimit, err := p.swapLimit(op, params)
	if err != nil {
		return nil, err
	}

	remaining, err := fixedpoint.FromBig(op, new(big.Int).Abs(params.AmountSpecified))
	if err != nil {
		return nil, err
	}

	sqrtPrice := plan.SqrtPriceAfter
	tick := plan.TickAfter
	liquidity := plan.LiquidityAfter
	feeGrowth := plan.feeGrowthGlobal1
	if zeroForOne {
		feeGrowth = plan.feeGrowthGlobal0
	}
	exhausted := false

	for !remaining.IsZero() && !sqrtPrice.Eq(limit) {
		start := new(uint256.Int).Set(sqrtPrice)
		remainingBefore := new(uint256.Int).Set(remaining)

		tickNext, initialized := p.ticks.NextInitialized(tick, zeroForOne)
		if !initialized {
			if liquidity.IsZero() {
				exhausted = true
				break
			}
			tickNext = fixedpoint.MaxTick
			if zeroForOne {
				tickNext = fixedpoint.MinTick
			}
		}
		sqrtNext, err := fixedpoint.TickToSqrtPrice(tickNext)
		if err != nil {
			return nil, err
		}
		target := sqrtNext
		if (zeroForOne && sqrtNext.Lt(limit)) || (!zeroForOne && sqrtNext.Gt(limit)) {
			target = limit
		}

		step, err := fixedpoint.ComputeSwapStep(sqrtPrice, target, liquidity, remaining, exactIn, p.cfg.FeePips)
		if err != nil {
			return nil, err
		}
		sqrtPrice.Set(step.SqrtPriceNext)

		spent := new(uint256.Int).Add(step.AmountIn, step.FeeAmount)
		if exactIn {
			remaining.Sub(remaining, spent)
		} else {
			remaining.Sub(remaining, step.AmountOut)
		}
		plan.AmountIn.Add(plan.AmountIn, spent)
		plan.AmountOut.Add(plan.AmountOut, step.AmountOut)
		plan.FeeAmount.Add(plan.FeeAmount, step.FeeAmount)

		if !liquidity.IsZero() && !step.FeeAmount.IsZero() {
			growth, err := fixedpoint.MulDiv(step.FeeAmount, fixedpoint.Q128, liquidity)
			if err != nil {
				return nil, err
			}
			// Fee growth accumulators wrap modulo 2^256.
			feeGrowth.Add(feeGrowth, growth)
		}

		crossed := false
		if sqrtPrice.Eq(sqrtNext) {
			if initialized {
				info, _ := p.ticks.Get(tickNext)
				net := new(big.Int).Set(info.LiquidityNet)
				if zeroForOne {
					net.Neg(net)
				}
				next, err := fixedpoint.AddDelta(liquidity, net)
				if err != nil {
					return nil, err
				}
				liquidity.Set(next)
				plan.crossings = append(plan.crossings, crossing{
					tick:             tickNext,
					feeGrowthGlobal0: new(uint256.Int).Set(plan.feeGrowthGlobal0),
					feeGrowthGlobal1: new(uint256.Int).Set(plan.feeGrowthGlobal1),
				})
				crossed = true
			}
			if zeroForOne {
				tick = tickNext - 1
			} else {
				tick = tickNext
			}
		} else if !sqrtPrice.Eq(start) {
			tick, err = fixedpoint.SqrtPriceToTick(sqrtPrice)
			if err != nil {
				return nil, err
			}
		}

		if !crossed && sqrtPrice.Eq(start) && remaining.Eq(remainingBefore) {
			break
		}
	}

	if !remaining.IsZero() {
		switch {
		case exhausted && plan.AmountIn.IsZero() && plan.AmountOut.IsZero():
			return nil, simerr.Newf(simerr.ClassInsufficientLiquidity, op, "%w: pool %s has no liquidity in the swap direction", simerr.ErrInsufficientLiquidity, p.cfg.ID)
		case defaultLimit && sqrtPrice.Eq(limit):
			return nil, simerr.Newf(simerr.ClassPriceOutOfBounds, op, "%w: pool %s swap reached the price domain bound with %s unfilled", simerr.ErrPriceOutOfBounds, p.cfg.ID, remaining.ToBig())
		}
		plan.Partial = true
	}

	plan.TickAfter = tick
	plan.Crossed = len(plan.crossings)
	return plan, nil
}

func (p *Pool) swapLimit(op string, params SwapParams) (*uint256.Int, bool, error) {
	if params.SqrtPriceLimit == nil {
		if params.ZeroForOne {
			return new(uint256.Int).AddUint64(fixedpoint.MinSqrtRatio, 1), true, nil
		}
		return new(uint256.Int).Sub(fixedpoint.MaxSqrtRatio, uint256.NewInt(1)), true, nil
	}
	limit := params.SqrtPriceLimit
	if !limit.Gt(fixedpoint.MinSqrtRatio) || !limit.Lt(fixedpoint.MaxSqrtRatio) {
		return nil, false, simerr.Newf(simerr.ClassPriceOutOfBounds, op, "%w: limit %s", simerr.ErrPriceOutOfBounds, limit.ToBig())
	}
	if params.ZeroForOne && !limit.Lt(p.sqrtPrice) {
		return nil, false, simerr.Validation(op, "pool %s: limit %s is not below price %s", p.cfg.ID, limit.ToBig(), p.sqrtPrice.ToBig())
	}
	if !params.ZeroForOne && !limit.Gt(p.sqrtPrice) {
		return nil, false, simerr.Validation(op, "pool %s: limit %s is not above price %s", p.cfg.ID, limit.ToBig(), p.sqrtPrice.ToBig())
	}
	return new(uint256.Int).Set(limit), false, nil
}

// CommitSwap applies a plan produced by PlanSwap against the same state.
func (p *Pool) CommitSwap(plan *SwapPlan) error {
	if err := p.checkVersion("commit swap", plan.version); err != nil {
		return err
	}
	if plan.IsNoop() && plan.SqrtPriceAfter.Eq(p.sqrtPrice) {
		return nil
	}
	for _, c := range plan.crossings {
		p.ticks.Cross(c.tick, c.feeGrowthGlobal0, c.feeGrowthGlobal1)
	}
	p.sqrtPrice = new(uint256.Int).Set(plan.SqrtPriceAfter)
	p.tick = plan.TickAfter
	p.liquidity = new(uint256.Int).Set(plan.LiquidityAfter)
	p.feeGrowthGlobal0 = new(uint256.Int).Set(plan.feeGrowthGlobal0)
	p.feeGrowthGlobal1 = new(uint256.Int).Set(plan.feeGrowthGlobal1)

	if !plan.IsNoop() {
		in, fee := plan.AmountIn.ToBig(), plan.FeeAmount.ToBig()
		if plan.Params.ZeroForOne {
			p.stats.Volume0.Add(p.stats.Volume0, in)
			p.stats.Fees0.Add(p.stats.Fees0, fee)
		} else {
			p.stats.Volume1.Add(p.stats.Volume1, in)
			p.stats.Fees1.Add(p.stats.Fees1, fee)
		}
		p.stats.Swaps++
	}
	p.version++
	return nil
}

func (p *Pool) Swap(params SwapParams) (*SwapPlan, error) {
	plan, err := p.PlanSwap(params)
	if err != nil {
		return nil, err
	}
	return plan, p.CommitSwap(plan)
}
