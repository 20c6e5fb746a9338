package fixedpoint

import (
	"math/big"

	"github.com/holiman/uint256"

	"liquiditySim/internal/simerr"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272

	// FeeDenominator is the fee unit: a fee of 3000 pips is 0.3%.
	FeeDenominator uint32 = 1_000_000
)

var (
	Q96          = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	Q128         = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	MaxUint128   = new(uint256.Int).Sub(Q128, uint256.NewInt(1))
	MaxUint160   = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 160), uint256.NewInt(1))
	MaxUint256   = new(uint256.Int).SetAllOne()
	MinSqrtRatio = uint256.NewInt(4295128739)
	MaxSqrtRatio = mustFromDecimal("1461446703485210103287273052203988822378723970342")
)

func mustFromDecimal(s string) *uint256.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("fixedpoint: bad constant " + s)
	}
	return uint256.MustFromBig(v)
}

// MulDiv computes floor(a*b/d) with a 512-bit intermediate.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, simerr.Newf(simerr.ClassOverflow, "muldiv", "%w: division by zero", simerr.ErrOverflow)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, simerr.Overflow("muldiv")
	}
	return z, nil
}

// MulDivRoundingUp computes ceil(a*b/d) with a 512-bit intermediate.
func MulDivRoundingUp(a, b, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, d)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(a, b, d).IsZero() {
		return z, nil
	}
	if z.Eq(MaxUint256) {
		return nil, simerr.Overflow("muldiv round up")
	}
	return z.AddUint64(z, 1), nil
}

// DivRoundingUp computes ceil(a/d).
func DivRoundingUp(a, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, simerr.Newf(simerr.ClassOverflow, "div", "%w: division by zero", simerr.ErrOverflow)
	}
	q := new(uint256.Int).Div(a, d)
	if !new(uint256.Int).Mod(a, d).IsZero() {
		q.AddUint64(q, 1)
	}
	return q, nil
}

// AddDelta applies a signed liquidity delta. Dropping below zero is an
// accounting bug, not a user error; exceeding 128 bits is an overflow.
func AddDelta(liquidity *uint256.Int, delta *big.Int) (*uint256.Int, error) {
	abs, overflow := uint256.FromBig(new(big.Int).Abs(delta))
	if overflow {
		return nil, simerr.Overflow("add delta")
	}
	if delta.Sign() < 0 {
		if liquidity.Lt(abs) {
			return nil, simerr.Invariant("add delta", "liquidity %s below zero by %s", liquidity.ToBig(), new(big.Int).Sub(abs.ToBig(), liquidity.ToBig()))
		}
		return new(uint256.Int).Sub(liquidity, abs), nil
	}
	out := new(uint256.Int).Add(liquidity, abs)
	if out.Gt(MaxUint128) {
		return nil, simerr.Overflow("add delta")
	}
	return out, nil
}

// ToUint128 rejects values that do not fit the liquidity width.
func ToUint128(op string, v *uint256.Int) (*uint256.Int, error) {
	if v.Gt(MaxUint128) {
		return nil, simerr.Overflow(op)
	}
	return v, nil
}

// FromBig converts a non-negative big.Int, failing on sign or width.
func FromBig(op string, v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, simerr.Validation(op, "negative amount %s", v)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, simerr.Overflow(op)
	}
	return out, nil
}
