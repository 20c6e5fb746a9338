package fixedpoint

import (
	"github.com/holiman/uint256"
)

// SwapStep is the outcome of swapping within a single initialized-tick range.
type SwapStep struct {
	SqrtPriceNext *uint256.Int
	AmountIn      *uint256.Int
	AmountOut     *uint256.Int
	FeeAmount     *uint256.Int
}

// ComputeSwapStep moves the price from current toward target using at most
// amountRemaining. For exact input, amountRemaining includes the fee; for
// exact output it is the output still owed. Direction is implied by the
// order of current and target.
func ComputeSwapStep(current, target, liquidity, amountRemaining *uint256.Int, exactIn bool, feePips uint32) (SwapStep, error) {
	zeroForOne := !current.Lt(target)
	feeDen := uint256.NewInt(uint64(FeeDenominator))
	fee := uint256.NewInt(uint64(feePips))
	feeComplement := new(uint256.Int).Sub(feeDen, fee)

	var (
		next      *uint256.Int
		amountIn  *uint256.Int
		amountOut *uint256.Int
		err       error
	)

	if exactIn {
		lessFee, err := MulDiv(amountRemaining, feeComplement, feeDen)
		if err != nil {
			return SwapStep{}, err
		}
		if zeroForOne {
			amountIn, err = Amount0Delta(target, current, liquidity, true)
		} else {
			amountIn, err = Amount1Delta(current, target, liquidity, true)
		}
		if err != nil {
			return SwapStep{}, err
		}
		if !lessFee.Lt(amountIn) {
			next = new(uint256.Int).Set(target)
		} else {
			next, err = NextSqrtPriceFromInput(current, liquidity, lessFee, zeroForOne)
			if err != nil {
				return SwapStep{}, err
			}
		}
	} else {
		if zeroForOne {
			amountOut, err = Amount1Delta(target, current, liquidity, false)
		} else {
			amountOut, err = Amount0Delta(current, target, liquidity, false)
		}
		if err != nil {
			return SwapStep{}, err
		}
		if !amountRemaining.Lt(amountOut) {
			next = new(uint256.Int).Set(target)
		} else {
			next, err = NextSqrtPriceFromOutput(current, liquidity, amountRemaining, zeroForOne)
			if err != nil {
				return SwapStep{}, err
			}
		}
	}

	reachedTarget := next.Eq(target)

	if zeroForOne {
		if !(reachedTarget && exactIn) {
			if amountIn, err = Amount0Delta(next, current, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		if !(reachedTarget && !exactIn) {
			if amountOut, err = Amount1Delta(next, current, liquidity, false); err != nil {
				return SwapStep{}, err
			}
		}
	} else {
		if !(reachedTarget && exactIn) {
			if amountIn, err = Amount1Delta(current, next, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		if !(reachedTarget && !exactIn) {
			if amountOut, err = Amount0Delta(current, next, liquidity, false); err != nil {
				return SwapStep{}, err
			}
		}
	}

	if !exactIn && amountOut.Gt(amountRemaining) {
		amountOut = new(uint256.Int).Set(amountRemaining)
	}

	var feeAmount *uint256.Int
	if exactIn && !reachedTarget {
		// The whole remainder is consumed; whatever did not move the price is fee.
		feeAmount = new(uint256.Int).Sub(amountRemaining, amountIn)
	} else {
		feeAmount, err = MulDivRoundingUp(amountIn, fee, feeComplement)
		if err != nil {
			return SwapStep{}, err
		}
	}

	return SwapStep{
		SqrtPriceNext: next,
		AmountIn:      amountIn,
		AmountOut:     amountOut,
		FeeAmount:     feeAmount,
	}, nil
}
