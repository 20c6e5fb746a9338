package fixedpoint

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquiditySim/internal/simerr"
)

func mustSqrt(t *testing.T, tick int32) *uint256.Int {
	t.Helper()
	p, err := TickToSqrtPrice(tick)
	require.NoError(t, err)
	return p
}

func TestTickToSqrtPriceBounds(t *testing.T) {
	assert.Equal(t, Q96, mustSqrt(t, 0))
	assert.Equal(t, MinSqrtRatio, mustSqrt(t, MinTick))
	assert.Equal(t, MaxSqrtRatio, mustSqrt(t, MaxTick))

	_, err := TickToSqrtPrice(MaxTick + 1)
	require.Error(t, err)
	assert.Equal(t, simerr.ClassPriceOutOfBounds, simerr.ClassOf(err))
	_, err = TickToSqrtPrice(MinTick - 1)
	assert.ErrorIs(t, err, simerr.ErrPriceOutOfBounds)
}

func TestTickToSqrtPriceMonotonic(t *testing.T) {
	prev := mustSqrt(t, -1000)
	for tick := int32(-999); tick <= 1000; tick++ {
		cur := mustSqrt(t, tick)
		require.True(t, cur.Gt(prev), "tick %d", tick)
		prev = cur
	}
}

func TestSqrtPriceToTickRoundTrip(t *testing.T) {
	for _, tick := range []int32{MinTick, MinTick + 1, -200000, -60, -1, 0, 1, 60, 123456, MaxTick - 1} {
		got, err := SqrtPriceToTick(mustSqrt(t, tick))
		require.NoError(t, err)
		assert.Equal(t, tick, got)
	}

	// One unit below a tick boundary belongs to the tick below.
	below := new(uint256.Int).Sub(mustSqrt(t, 100), uint256.NewInt(1))
	got, err := SqrtPriceToTick(below)
	require.NoError(t, err)
	assert.Equal(t, int32(99), got)
}

func TestSqrtPriceToTickRange(t *testing.T) {
	_, err := SqrtPriceToTick(MaxSqrtRatio)
	assert.ErrorIs(t, err, simerr.ErrPriceOutOfBounds)

	_, err = SqrtPriceToTick(new(uint256.Int).Sub(MinSqrtRatio, uint256.NewInt(1)))
	assert.ErrorIs(t, err, simerr.ErrPriceOutOfBounds)

	got, err := SqrtPriceToTick(new(uint256.Int).Sub(MaxSqrtRatio, uint256.NewInt(1)))
	require.NoError(t, err)
	assert.Equal(t, MaxTick-1, got)
}

func TestPriceConversions(t *testing.T) {
	sqrtP, err := PriceToSqrtPrice(decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, Q96, sqrtP)
	assert.True(t, SqrtPriceToPrice(Q96).Equal(decimal.NewFromInt(1)))

	four := new(uint256.Int).Lsh(Q96, 1)
	assert.True(t, SqrtPriceToPrice(four).Equal(decimal.NewFromInt(4)))

	tick, err := PriceToTick(decimal.RequireFromString("1.0001"))
	require.NoError(t, err)
	assert.Contains(t, []int32{0, 1}, tick)

	_, err = PriceToSqrtPrice(decimal.Zero)
	assert.Equal(t, simerr.ClassValidation, simerr.ClassOf(err))
}

func TestMulDiv(t *testing.T) {
	z, err := MulDiv(MaxUint256, MaxUint256, MaxUint256)
	require.NoError(t, err)
	assert.Equal(t, MaxUint256, z)

	z, err = MulDiv(uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(3))
	require.NoError(t, err)
	assert.True(t, z.IsZero())

	z, err = MulDivRoundingUp(uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), z.Uint64())

	z, err = MulDivRoundingUp(uint256.NewInt(6), uint256.NewInt(1), uint256.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), z.Uint64())

	_, err = MulDiv(MaxUint256, uint256.NewInt(2), uint256.NewInt(1))
	assert.ErrorIs(t, err, simerr.ErrOverflow)

	_, err = MulDiv(uint256.NewInt(1), uint256.NewInt(1), new(uint256.Int))
	assert.Equal(t, simerr.ClassOverflow, simerr.ClassOf(err))
}

func TestAddDelta(t *testing.T) {
	out, err := AddDelta(uint256.NewInt(10), big.NewInt(-4))
	require.NoError(t, err)
	assert.Equal(t, uint64(6), out.Uint64())

	_, err = AddDelta(uint256.NewInt(1), big.NewInt(-2))
	assert.Equal(t, simerr.ClassInvariantViolation, simerr.ClassOf(err))

	_, err = AddDelta(MaxUint128, big.NewInt(1))
	assert.Equal(t, simerr.ClassOverflow, simerr.ClassOf(err))
}

func TestAmountDeltas(t *testing.T) {
	two := new(uint256.Int).Lsh(Q96, 1)
	l := uint256.NewInt(1_000_000_000_000_000_000)

	a0, err := Amount0Delta(Q96, two, l, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000_000_000_000), a0.Uint64())

	a1, err := Amount1Delta(two, Q96, l, true)
	require.NoError(t, err)
	assert.Equal(t, l.Uint64(), a1.Uint64())

	// A sub-unit amount rounds to zero going down and to one going up.
	next := new(uint256.Int).AddUint64(Q96, 1)
	down, err := Amount1Delta(Q96, next, uint256.NewInt(1), false)
	require.NoError(t, err)
	up, err := Amount1Delta(Q96, next, uint256.NewInt(1), true)
	require.NoError(t, err)
	assert.True(t, down.IsZero())
	assert.Equal(t, uint64(1), up.Uint64())
}

func TestNextSqrtPriceFromOutputExceedsReserves(t *testing.T) {
	l := uint256.NewInt(1_000)
	_, err := NextSqrtPriceFromOutput(Q96, l, uint256.NewInt(1_000_000), true)
	assert.ErrorIs(t, err, simerr.ErrInsufficientLiquidity)

	_, err = NextSqrtPriceFromOutput(Q96, l, uint256.NewInt(1_000_000), false)
	assert.ErrorIs(t, err, simerr.ErrInsufficientLiquidity)
}

func TestNextSqrtPriceFromInputDirection(t *testing.T) {
	l := uint256.NewInt(1_000_000_000_000_000_000)
	amount := uint256.NewInt(1_000_000_000_000_000)

	down, err := NextSqrtPriceFromInput(Q96, l, amount, true)
	require.NoError(t, err)
	assert.True(t, down.Lt(Q96))

	up, err := NextSqrtPriceFromInput(Q96, l, amount, false)
	require.NoError(t, err)
	assert.True(t, up.Gt(Q96))

	same, err := NextSqrtPriceFromInput(Q96, l, new(uint256.Int), true)
	require.NoError(t, err)
	assert.Equal(t, Q96, same)
}

func TestComputeSwapStepCappedAtTarget(t *testing.T) {
	target := mustSqrt(t, 100)
	l := uint256.NewInt(2_000_000_000_000_000_000)
	remaining := uint256.NewInt(1_000_000_000_000_000_000)

	step, err := ComputeSwapStep(Q96, target, l, remaining, true, 600)
	require.NoError(t, err)
	assert.Equal(t, target, step.SqrtPriceNext)
	spent := new(uint256.Int).Add(step.AmountIn, step.FeeAmount)
	assert.True(t, spent.Lt(remaining))
	assert.False(t, step.AmountOut.IsZero())
	assert.True(t, step.AmountOut.Lt(step.AmountIn))
}

func TestComputeSwapStepConsumesRemainder(t *testing.T) {
	target := mustSqrt(t, -10000)
	l := uint256.NewInt(2_000_000_000_000_000_000)
	remaining := uint256.NewInt(1_000_000_000)

	step, err := ComputeSwapStep(Q96, target, l, remaining, true, 3000)
	require.NoError(t, err)
	assert.True(t, step.SqrtPriceNext.Lt(Q96))
	assert.True(t, step.SqrtPriceNext.Gt(target))
	assert.Equal(t, remaining, new(uint256.Int).Add(step.AmountIn, step.FeeAmount))
	assert.False(t, step.FeeAmount.IsZero())
}

func TestComputeSwapStepExactOut(t *testing.T) {
	target := mustSqrt(t, 10000)
	l := uint256.NewInt(2_000_000_000_000_000_000)
	want := uint256.NewInt(1_000_000_000)

	step, err := ComputeSwapStep(Q96, target, l, want, false, 3000)
	require.NoError(t, err)
	assert.Equal(t, want, step.AmountOut)
	assert.True(t, step.SqrtPriceNext.Gt(Q96))
	assert.True(t, step.AmountIn.Gt(step.AmountOut))
}

func TestLiquidityAmountsRoundTrip(t *testing.T) {
	lower, upper := mustSqrt(t, -600), mustSqrt(t, 600)
	a0 := uint256.NewInt(5_000_000_000_000_000_000)
	a1 := uint256.NewInt(3_000_000_000_000_000_000)

	l, err := LiquidityFromAmounts(Q96, lower, upper, a0, a1)
	require.NoError(t, err)
	require.False(t, l.IsZero())

	got0, got1, err := AmountsFromLiquidity(Q96, lower, upper, l, true)
	require.NoError(t, err)
	assert.False(t, got0.Gt(a0))
	assert.False(t, got1.Gt(a1))
	// token1 is the binding side at price 1 with these amounts.
	assert.True(t, new(uint256.Int).Sub(a1, got1).Lt(uint256.NewInt(1_000)))

	below, err := LiquidityFromAmounts(mustSqrt(t, -1200), lower, upper, a0, new(uint256.Int))
	require.NoError(t, err)
	only0, only1, err := AmountsFromLiquidity(mustSqrt(t, -1200), lower, upper, below, false)
	require.NoError(t, err)
	assert.True(t, only1.IsZero())
	assert.False(t, only0.IsZero())
}

func TestLiquidityForAmountOverflow(t *testing.T) {
	lower, upper := mustSqrt(t, 0), mustSqrt(t, 1)
	_, err := LiquidityForAmount1(lower, upper, MaxUint128)
	assert.Equal(t, simerr.ClassOverflow, simerr.ClassOf(err))
}
