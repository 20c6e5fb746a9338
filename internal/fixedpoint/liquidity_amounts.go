package fixedpoint

import (
	"github.com/holiman/uint256"

	"liquiditySim/internal/simerr"
)

// LiquidityForAmount0 is the liquidity a token0 amount buys across [a, b].
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortPrices(sqrtA, sqrtB)
	if sqrtA.Eq(sqrtB) {
		return nil, simerr.Newf(simerr.ClassValidation, "liquidity for amount0", "%w: empty price range", simerr.ErrInvalidRange)
	}
	intermediate, err := MulDiv(sqrtA, sqrtB, Q96)
	if err != nil {
		return nil, err
	}
	l, err := MulDiv(amount0, intermediate, new(uint256.Int).Sub(sqrtB, sqrtA))
	if err != nil {
		return nil, err
	}
	return ToUint128("liquidity for amount0", l)
}

// LiquidityForAmount1 is the liquidity a token1 amount buys across [a, b].
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortPrices(sqrtA, sqrtB)
	if sqrtA.Eq(sqrtB) {
		return nil, simerr.Newf(simerr.ClassValidation, "liquidity for amount1", "%w: empty price range", simerr.ErrInvalidRange)
	}
	l, err := MulDiv(amount1, Q96, new(uint256.Int).Sub(sqrtB, sqrtA))
	if err != nil {
		return nil, err
	}
	return ToUint128("liquidity for amount1", l)
}

// LiquidityFromAmounts returns the largest liquidity that the desired
// amounts can fund for a position over [sqrtLower, sqrtUpper] at the
// current price.
func LiquidityFromAmounts(sqrtCurrent, sqrtLower, sqrtUpper, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtLower, sqrtUpper = sortPrices(sqrtLower, sqrtUpper)
	switch {
	case !sqrtCurrent.Gt(sqrtLower):
		return LiquidityForAmount0(sqrtLower, sqrtUpper, amount0)
	case sqrtCurrent.Lt(sqrtUpper):
		l0, err := LiquidityForAmount0(sqrtCurrent, sqrtUpper, amount0)
		if err != nil {
			return nil, err
		}
		l1, err := LiquidityForAmount1(sqrtLower, sqrtCurrent, amount1)
		if err != nil {
			return nil, err
		}
		if l0.Lt(l1) {
			return l0, nil
		}
		return l1, nil
	default:
		return LiquidityForAmount1(sqrtLower, sqrtUpper, amount1)
	}
}

// AmountsFromLiquidity returns the token amounts backing a liquidity over
// [sqrtLower, sqrtUpper] at the current price. Mints round up; burns and
// valuations round down.
func AmountsFromLiquidity(sqrtCurrent, sqrtLower, sqrtUpper, liquidity *uint256.Int, roundUp bool) (amount0, amount1 *uint256.Int, err error) {
	sqrtLower, sqrtUpper = sortPrices(sqrtLower, sqrtUpper)
	amount0, amount1 = new(uint256.Int), new(uint256.Int)
	switch {
	case !sqrtCurrent.Gt(sqrtLower):
		amount0, err = Amount0Delta(sqrtLower, sqrtUpper, liquidity, roundUp)
	case sqrtCurrent.Lt(sqrtUpper):
		amount0, err = Amount0Delta(sqrtCurrent, sqrtUpper, liquidity, roundUp)
		if err == nil {
			amount1, err = Amount1Delta(sqrtLower, sqrtCurrent, liquidity, roundUp)
		}
	default:
		amount1, err = Amount1Delta(sqrtLower, sqrtUpper, liquidity, roundUp)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}
