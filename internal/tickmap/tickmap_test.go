package tickmap

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquiditySim/internal/simerr"
)

func zero() *uint256.Int { return new(uint256.Int) }

func TestUpdateFlipsAndClears(t *testing.T) {
	m := New()
	flipped, err := m.Update(-60, 0, big.NewInt(100), zero(), zero(), false, nil)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = m.Update(-60, 0, big.NewInt(50), zero(), zero(), false, nil)
	require.NoError(t, err)
	assert.False(t, flipped)

	info, ok := m.Get(-60)
	require.True(t, ok)
	assert.Equal(t, uint64(150), info.LiquidityGross.Uint64())
	assert.Equal(t, int64(150), info.LiquidityNet.Int64())

	flipped, err = m.Update(-60, 0, big.NewInt(-150), zero(), zero(), false, nil)
	require.NoError(t, err)
	assert.True(t, flipped)
	m.Clear(-60)
	assert.Equal(t, 0, m.Len())
	_, ok = m.Get(-60)
	assert.False(t, ok)
}

func TestUpdateUpperNegatesNet(t *testing.T) {
	m := New()
	_, err := m.Update(60, 0, big.NewInt(10), zero(), zero(), true, nil)
	require.NoError(t, err)
	info, _ := m.Get(60)
	assert.Equal(t, int64(-10), info.LiquidityNet.Int64())
}

func TestUpdateInitialisesOutsideBelowCurrent(t *testing.T) {
	m := New()
	g0, g1 := uint256.NewInt(7), uint256.NewInt(9)

	_, err := m.Update(-60, 0, big.NewInt(1), g0, g1, false, nil)
	require.NoError(t, err)
	_, err = m.Update(60, 0, big.NewInt(1), g0, g1, true, nil)
	require.NoError(t, err)

	below, _ := m.Get(-60)
	above, _ := m.Get(60)
	assert.Equal(t, g0, below.FeeGrowthOutside0)
	assert.Equal(t, g1, below.FeeGrowthOutside1)
	assert.True(t, above.FeeGrowthOutside0.IsZero())
}

func TestUpdateRejectsUnderflowAndMax(t *testing.T) {
	m := New()
	_, err := m.Update(0, 0, big.NewInt(-1), zero(), zero(), false, nil)
	assert.Equal(t, simerr.ClassInvariantViolation, simerr.ClassOf(err))

	err = m.CheckUpdate(0, big.NewInt(11), uint256.NewInt(10))
	assert.Equal(t, simerr.ClassValidation, simerr.ClassOf(err))
	assert.Equal(t, 0, m.Len())
}

func TestNextInitialized(t *testing.T) {
	m := New()
	for _, tick := range []int32{120, -60, 0, 600} {
		_, err := m.Update(tick, 0, big.NewInt(1), zero(), zero(), false, nil)
		require.NoError(t, err)
	}

	next, ok := m.NextInitialized(0, true)
	require.True(t, ok)
	assert.Equal(t, int32(0), next)

	next, ok = m.NextInitialized(-1, true)
	require.True(t, ok)
	assert.Equal(t, int32(-60), next)

	next, ok = m.NextInitialized(0, false)
	require.True(t, ok)
	assert.Equal(t, int32(120), next)

	_, ok = m.NextInitialized(-61, true)
	assert.False(t, ok)
	_, ok = m.NextInitialized(600, false)
	assert.False(t, ok)

	var seen []int32
	m.Ascend(func(tick int32, _ Info) bool {
		seen = append(seen, tick)
		return true
	})
	assert.Equal(t, []int32{-60, 0, 120, 600}, seen)
}

func TestCrossAndFeeGrowthInside(t *testing.T) {
	m := New()
	_, err := m.Update(-60, 0, big.NewInt(1), zero(), zero(), false, nil)
	require.NoError(t, err)
	_, err = m.Update(60, 0, big.NewInt(1), zero(), zero(), true, nil)
	require.NoError(t, err)

	g0, g1 := uint256.NewInt(100), uint256.NewInt(40)
	in0, in1 := m.FeeGrowthInside(-60, 60, 0, g0, g1)
	assert.Equal(t, uint64(100), in0.Uint64())
	assert.Equal(t, uint64(40), in1.Uint64())

	// Price moves above the range: growth stops accruing inside.
	net := m.Cross(60, g0, g1)
	assert.Equal(t, int64(-1), net.Int64())
	g0 = uint256.NewInt(250)
	in0, _ = m.FeeGrowthInside(-60, 60, 60, g0, g1)
	assert.Equal(t, uint64(100), in0.Uint64())
}

func TestFeeGrowthInsideWraps(t *testing.T) {
	m := New()
	_, err := m.Update(-60, 0, big.NewInt(1), uint256.NewInt(5), zero(), false, nil)
	require.NoError(t, err)
	// Outside above the global value is legal; the result wraps modulo 2^256.
	in0, _ := m.FeeGrowthInside(-60, 60, 0, uint256.NewInt(3), zero())
	expected := new(uint256.Int).Sub(uint256.NewInt(3), uint256.NewInt(5))
	assert.Equal(t, expected, in0)
}

func TestCloneIsDeep(t *testing.T) {
	m := New()
	_, err := m.Update(0, 0, big.NewInt(5), zero(), zero(), false, nil)
	require.NoError(t, err)
	c := m.Clone()
	_, err = m.Update(0, 0, big.NewInt(5), zero(), zero(), false, nil)
	require.NoError(t, err)

	orig, _ := c.Get(0)
	assert.Equal(t, uint64(5), orig.LiquidityGross.Uint64())
}
