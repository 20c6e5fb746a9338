package fixedpoint

import (
	"github.com/holiman/uint256"

	"liquiditySim/internal/simerr"
)

func sortPrices(a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if a.Gt(b) {
		return b, a
	}
	return a, b
}

// Amount0Delta returns the token0 amount between two sqrt prices for a
// liquidity: L * (sqrtB - sqrtA) / (sqrtA * sqrtB).
func Amount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortPrices(sqrtA, sqrtB)
	if sqrtA.IsZero() {
		return nil, simerr.Newf(simerr.ClassPriceOutOfBounds, "amount0 delta", "%w: zero sqrt price", simerr.ErrPriceOutOfBounds)
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtB, sqrtA)

	if roundUp {
		inner, err := MulDivRoundingUp(numerator1, numerator2, sqrtB)
		if err != nil {
			return nil, err
		}
		return DivRoundingUp(inner, sqrtA)
	}
	inner, err := MulDiv(numerator1, numerator2, sqrtB)
	if err != nil {
		return nil, err
	}
	return inner.Div(inner, sqrtA), nil
}

// Amount1Delta returns the token1 amount between two sqrt prices for a
// liquidity: L * (sqrtB - sqrtA).
func Amount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortPrices(sqrtA, sqrtB)
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, Q96)
	}
	return MulDiv(liquidity, diff, Q96)
}

// nextSqrtPriceFromAmount0 always rounds up so the pool never gives away
// more token1 than it received in token0 terms.
func nextSqrtPriceFromAmount0(sqrtP, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	const op = "next sqrt price from amount0"
	if amount.IsZero() {
		return new(uint256.Int).Set(sqrtP), nil
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)

	if add {
		product, overflow := new(uint256.Int).MulOverflow(amount, sqrtP)
		if !overflow {
			denominator, overflow := new(uint256.Int).AddOverflow(numerator1, product)
			if !overflow {
				return MulDivRoundingUp(numerator1, sqrtP, denominator)
			}
		}
		// Lower precision path when the product does not fit.
		denominator := new(uint256.Int).Div(numerator1, sqrtP)
		if _, overflow := denominator.AddOverflow(denominator, amount); overflow {
			return nil, simerr.Overflow(op)
		}
		return DivRoundingUp(numerator1, denominator)
	}

	product, overflow := new(uint256.Int).MulOverflow(amount, sqrtP)
	if overflow || !numerator1.Gt(product) {
		return nil, simerr.Newf(simerr.ClassInsufficientLiquidity, op, "%w: output %s exceeds token0 reserves", simerr.ErrInsufficientLiquidity, amount.ToBig())
	}
	denominator := new(uint256.Int).Sub(numerator1, product)
	next, err := MulDivRoundingUp(numerator1, sqrtP, denominator)
	if err != nil {
		return nil, err
	}
	if next.Gt(MaxUint160) {
		return nil, simerr.Overflow(op)
	}
	return next, nil
}

// nextSqrtPriceFromAmount1 always rounds down.
func nextSqrtPriceFromAmount1(sqrtP, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	const op = "next sqrt price from amount1"
	if add {
		var quotient *uint256.Int
		if !amount.Gt(MaxUint160) {
			quotient = new(uint256.Int).Lsh(amount, 96)
			quotient.Div(quotient, liquidity)
		} else {
			q, err := MulDiv(amount, Q96, liquidity)
			if err != nil {
				return nil, err
			}
			quotient = q
		}
		next, overflow := new(uint256.Int).AddOverflow(sqrtP, quotient)
		if overflow || next.Gt(MaxUint160) {
			return nil, simerr.Overflow(op)
		}
		return next, nil
	}

	var (
		quotient *uint256.Int
		err      error
	)
	if !amount.Gt(MaxUint160) {
		quotient, err = DivRoundingUp(new(uint256.Int).Lsh(amount, 96), liquidity)
	} else {
		quotient, err = MulDivRoundingUp(amount, Q96, liquidity)
	}
	if err != nil {
		return nil, err
	}
	if !sqrtP.Gt(quotient) {
		return nil, simerr.Newf(simerr.ClassInsufficientLiquidity, op, "%w: output %s exceeds token1 reserves", simerr.ErrInsufficientLiquidity, amount.ToBig())
	}
	return new(uint256.Int).Sub(sqrtP, quotient), nil
}

// NextSqrtPriceFromInput returns the sqrt price after adding amountIn of
// the input token.
func NextSqrtPriceFromInput(sqrtP, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtP.IsZero() || liquidity.IsZero() {
		return nil, simerr.Newf(simerr.ClassInsufficientLiquidity, "next sqrt price from input", "%w: zero price or liquidity", simerr.ErrInsufficientLiquidity)
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount0(sqrtP, liquidity, amountIn, true)
	}
	return nextSqrtPriceFromAmount1(sqrtP, liquidity, amountIn, true)
}

// NextSqrtPriceFromOutput returns the sqrt price after removing amountOut
// of the output token.
func NextSqrtPriceFromOutput(sqrtP, liquidity, amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtP.IsZero() || liquidity.IsZero() {
		return nil, simerr.Newf(simerr.ClassInsufficientLiquidity, "next sqrt price from output", "%w: zero price or liquidity", simerr.ErrInsufficientLiquidity)
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount1(sqrtP, liquidity, amountOut, false)
	}
	return nextSqrtPriceFromAmount0(sqrtP, liquidity, amountOut, false)
}
