package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"liquiditySim/internal/simerr"
)

// sqrt(1.0001^-(2^i)) in Q128.128, for i = 0..19.
var tickRatios = [20]*uint256.Int{
	uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

// TickToSqrtPrice returns sqrt(1.0001^tick) as a Q64.96, rounded up.
func TickToSqrtPrice(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, simerr.Newf(simerr.ClassPriceOutOfBounds, "tick to sqrt price", "%w: tick %d", simerr.ErrPriceOutOfBounds, tick)
	}
	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(tickRatios[0])
	} else {
		ratio.Set(Q128)
	}
	for i := 1; i < len(tickRatios); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, tickRatios[i])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(MaxUint256, ratio)
	}

	out := new(uint256.Int).Rsh(ratio, 32)
	if ratio.Uint64()&0xffffffff != 0 {
		out.AddUint64(out, 1)
	}
	return out, nil
}

// SqrtPriceToTick returns the greatest tick whose sqrt price is <= sqrtPrice.
// The valid input range is [MinSqrtRatio, MaxSqrtRatio).
func SqrtPriceToTick(sqrtPrice *uint256.Int) (int32, error) {
	if sqrtPrice.Lt(MinSqrtRatio) || !sqrtPrice.Lt(MaxSqrtRatio) {
		return 0, simerr.Newf(simerr.ClassPriceOutOfBounds, "sqrt price to tick", "%w: sqrt price %s", simerr.ErrPriceOutOfBounds, sqrtPrice.ToBig())
	}
	// Binary search over the tick domain: TickToSqrtPrice is strictly
	// increasing, so this is the exact inverse with floor rounding.
	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		ratio, err := TickToSqrtPrice(mid)
		if err != nil {
			return 0, err
		}
		if ratio.Cmp(sqrtPrice) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

const floatPrec = 256

var q96Float = new(big.Float).SetPrec(floatPrec).SetInt(Q96.ToBig())

// PriceToSqrtPrice converts a raw token1/token0 price into a Q64.96 sqrt price.
func PriceToSqrtPrice(price decimal.Decimal) (*uint256.Int, error) {
	if !price.IsPositive() {
		return nil, simerr.Validation("price to sqrt price", "price must be positive, got %s", price)
	}
	f, ok := new(big.Float).SetPrec(floatPrec).SetString(price.String())
	if !ok {
		return nil, simerr.Validation("price to sqrt price", "unparseable price %s", price)
	}
	f.Sqrt(f)
	f.Mul(f, q96Float)
	raw, _ := f.Int(nil)
	out, overflow := uint256.FromBig(raw)
	if overflow || out.Lt(MinSqrtRatio) || !out.Lt(MaxSqrtRatio) {
		return nil, simerr.Newf(simerr.ClassPriceOutOfBounds, "price to sqrt price", "%w: price %s", simerr.ErrPriceOutOfBounds, price)
	}
	return out, nil
}

// SqrtPriceToPrice converts a Q64.96 sqrt price into a raw token1/token0 price.
func SqrtPriceToPrice(sqrtPrice *uint256.Int) decimal.Decimal {
	f := new(big.Float).SetPrec(floatPrec).SetInt(sqrtPrice.ToBig())
	f.Quo(f, q96Float)
	f.Mul(f, f)
	d, err := decimal.NewFromString(f.Text('f', 36))
	if err != nil {
		panic(fmt.Sprintf("fixedpoint: format price: %v", err))
	}
	return d
}

// PriceToTick converts a raw token1/token0 price into the tick at or below it.
func PriceToTick(price decimal.Decimal) (int32, error) {
	sqrtPrice, err := PriceToSqrtPrice(price)
	if err != nil {
		return 0, err
	}
	return SqrtPriceToTick(sqrtPrice)
}

// TickToPrice returns the raw token1/token0 price at a tick boundary.
func TickToPrice(tick int32) (decimal.Decimal, error) {
	sqrtPrice, err := TickToSqrtPrice(tick)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return SqrtPriceToPrice(sqrtPrice), nil
}
