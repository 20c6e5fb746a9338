package tickmap

import (
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"liquiditySim/internal/fixedpoint"
	"liquiditySim/internal/simerr"
)

var maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

// Info is the per-tick state. FeeGrowthOutside values are X128 fixed point
// and wrap modulo 2^256 like the accumulators they are derived from.
type Info struct {
	LiquidityGross    *uint256.Int
	LiquidityNet      *big.Int
	FeeGrowthOutside0 *uint256.Int
	FeeGrowthOutside1 *uint256.Int
	Initialized       bool
}

func newInfo() *Info {
	return &Info{
		LiquidityGross:    new(uint256.Int),
		LiquidityNet:      new(big.Int),
		FeeGrowthOutside0: new(uint256.Int),
		FeeGrowthOutside1: new(uint256.Int),
	}
}

func (i *Info) clone() *Info {
	return &Info{
		LiquidityGross:    new(uint256.Int).Set(i.LiquidityGross),
		LiquidityNet:      new(big.Int).Set(i.LiquidityNet),
		FeeGrowthOutside0: new(uint256.Int).Set(i.FeeGrowthOutside0),
		FeeGrowthOutside1: new(uint256.Int).Set(i.FeeGrowthOutside1),
		Initialized:       i.Initialized,
	}
}

// Map holds the initialized ticks of one pool, ordered by index.
type Map struct {
	order []int32
	info  map[int32]*Info
}

func New() *Map {
	return &Map{info: make(map[int32]*Info)}
}

// Len returns the number of initialized ticks.
func (m *Map) Len() int {
	return len(m.order)
}

// Get returns a copy of the tick state. Uninitialized ticks report zeros.
func (m *Map) Get(tick int32) (Info, bool) {
	info, ok := m.info[tick]
	if !ok {
		return *newInfo(), false
	}
	return *info.clone(), true
}

func (m *Map) nextGross(tick int32, delta *big.Int, maxLiquidity *uint256.Int) (*uint256.Int, error) {
	before := new(uint256.Int)
	if info, ok := m.info[tick]; ok {
		before = info.LiquidityGross
	}
	after, err := fixedpoint.AddDelta(before, delta)
	if err != nil {
		return nil, err
	}
	if maxLiquidity != nil && after.Gt(maxLiquidity) {
		return nil, simerr.Newf(simerr.ClassValidation, "tick update", "liquidity %s at tick %d exceeds per-tick maximum %s", after.ToBig(), tick, maxLiquidity.ToBig())
	}
	return after, nil
}

// CheckUpdate reports whether Update would succeed, without mutating.
func (m *Map) CheckUpdate(tick int32, delta *big.Int, maxLiquidity *uint256.Int) error {
	_, err := m.nextGross(tick, delta, maxLiquidity)
	return err
}

// Update applies a liquidity delta at a position boundary and reports
// whether the tick flipped between initialized and uninitialized. A tick
// at or below the current tick assumes all fee growth so far happened
// below it.
func (m *Map) Update(tick, current int32, delta *big.Int, feeGrowthGlobal0, feeGrowthGlobal1 *uint256.Int, upper bool, maxLiquidity *uint256.Int) (bool, error) {
	after, err := m.nextGross(tick, delta, maxLiquidity)
	if err != nil {
		return false, err
	}

	info, ok := m.info[tick]
	if !ok {
		info = newInfo()
	}
	before := info.LiquidityGross
	flipped := after.IsZero() != before.IsZero()

	net := new(big.Int)
	if upper {
		net.Sub(info.LiquidityNet, delta)
	} else {
		net.Add(info.LiquidityNet, delta)
	}
	if new(big.Int).Abs(net).Cmp(maxInt128) > 0 {
		return false, simerr.Overflow("tick update")
	}

	if before.IsZero() {
		if tick <= current {
			info.FeeGrowthOutside0 = new(uint256.Int).Set(feeGrowthGlobal0)
			info.FeeGrowthOutside1 = new(uint256.Int).Set(feeGrowthGlobal1)
		}
		info.Initialized = true
	}
	info.LiquidityGross = after
	info.LiquidityNet = net

	if !ok {
		m.info[tick] = info
		m.insert(tick)
	}
	return flipped, nil
}

// Clear removes a tick whose gross liquidity dropped to zero.
func (m *Map) Clear(tick int32) {
	if _, ok := m.info[tick]; !ok {
		return
	}
	delete(m.info, tick)
	i := m.search(tick)
	if i < len(m.order) && m.order[i] == tick {
		m.order = append(m.order[:i], m.order[i+1:]...)
	}
}

// Cross flips the fee growth recorded outside the tick as the price moves
// across it and returns the liquidity net to apply.
func (m *Map) Cross(tick int32, feeGrowthGlobal0, feeGrowthGlobal1 *uint256.Int) *big.Int {
	info, ok := m.info[tick]
	if !ok {
		return new(big.Int)
	}
	info.FeeGrowthOutside0 = new(uint256.Int).Sub(feeGrowthGlobal0, info.FeeGrowthOutside0)
	info.FeeGrowthOutside1 = new(uint256.Int).Sub(feeGrowthGlobal1, info.FeeGrowthOutside1)
	return new(big.Int).Set(info.LiquidityNet)
}

// NextInitialized finds the nearest initialized tick. With lte it returns
// the greatest initialized tick <= from, otherwise the least tick > from.
func (m *Map) NextInitialized(from int32, lte bool) (int32, bool) {
	if lte {
		i := sort.Search(len(m.order), func(i int) bool { return m.order[i] > from })
		if i == 0 {
			return 0, false
		}
		return m.order[i-1], true
	}
	i := sort.Search(len(m.order), func(i int) bool { return m.order[i] > from })
	if i == len(m.order) {
		return 0, false
	}
	return m.order[i], true
}

// FeeGrowthInside returns the fee growth per unit of liquidity accrued
// inside [lower, upper). Subtractions wrap.
func (m *Map) FeeGrowthInside(lower, upper, current int32, feeGrowthGlobal0, feeGrowthGlobal1 *uint256.Int) (*uint256.Int, *uint256.Int) {
	lo, _ := m.Get(lower)
	hi, _ := m.Get(upper)

	var below0, below1 *uint256.Int
	if current >= lower {
		below0, below1 = lo.FeeGrowthOutside0, lo.FeeGrowthOutside1
	} else {
		below0 = new(uint256.Int).Sub(feeGrowthGlobal0, lo.FeeGrowthOutside0)
		below1 = new(uint256.Int).Sub(feeGrowthGlobal1, lo.FeeGrowthOutside1)
	}

	var above0, above1 *uint256.Int
	if current < upper {
		above0, above1 = hi.FeeGrowthOutside0, hi.FeeGrowthOutside1
	} else {
		above0 = new(uint256.Int).Sub(feeGrowthGlobal0, hi.FeeGrowthOutside0)
		above1 = new(uint256.Int).Sub(feeGrowthGlobal1, hi.FeeGrowthOutside1)
	}

	inside0 := new(uint256.Int).Sub(feeGrowthGlobal0, below0)
	inside0.Sub(inside0, above0)
	inside1 := new(uint256.Int).Sub(feeGrowthGlobal1, below1)
	inside1.Sub(inside1, above1)
	return inside0, inside1
}

// Ascend calls fn for each initialized tick in increasing order until fn
// returns false.
func (m *Map) Ascend(fn func(tick int32, info Info) bool) {
	for _, tick := range m.order {
		if !fn(tick, *m.info[tick].clone()) {
			return
		}
	}
}

// Clone returns a deep copy.
func (m *Map) Clone() *Map {
	out := &Map{
		order: append([]int32(nil), m.order...),
		info:  make(map[int32]*Info, len(m.info)),
	}
	for tick, info := range m.info {
		out.info[tick] = info.clone()
	}
	return out
}

func (m *Map) search(tick int32) int {
	return sort.Search(len(m.order), func(i int) bool { return m.order[i] >= tick })
}

func (m *Map) insert(tick int32) {
	i := m.search(tick)
	if i < len(m.order) && m.order[i] == tick {
		return
	}
	m.order = append(m.order, 0)
	copy(m.order[i+1:], m.order[i:])
	m.order[i] = tick
}
