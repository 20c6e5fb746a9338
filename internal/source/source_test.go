package source

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquiditySim/internal/fixedpoint"
	"liquiditySim/internal/model"
	"liquiditySim/internal/pool"
)

type fakeView struct {
	block uint64
	// from opens the step window; zero leaves each step covering its own block
	from  uint64
	pools map[string]*pool.Pool
	spots map[string]decimal.Decimal
}

func (v *fakeView) Block() uint64 { return v.block }

func (v *fakeView) From() uint64 {
	if v.from == 0 {
		return math.MaxUint64
	}
	return v.from
}

func (v *fakeView) Pool(id string) (pool.Reader, bool) {
	p, ok := v.pools[id]
	if !ok {
		return nil, false
	}
	return p, true
}

func (v *fakeView) Balance(string, string) *big.Int { return new(big.Int) }

func (v *fakeView) Spot(base, quote string) (decimal.Decimal, bool) {
	p, ok := v.spots[base+"/"+quote]
	return p, ok
}

func (v *fakeView) Metric(string) (decimal.Decimal, bool) { return decimal.Zero, false }

var e18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), e18)
}

func newView(t *testing.T) (*fakeView, *pool.Pool) {
	t.Helper()
	p, err := pool.New(pool.Config{
		ID: "p", Token0: "ETH", Token1: "USDC", Decimals0: 18, Decimals1: 18,
		FeePips: 3000, TickSpacing: 60, InitialSqrtPrice: fixedpoint.Q96,
	})
	require.NoError(t, err)
	return &fakeView{pools: map[string]*pool.Pool{"p": p}, spots: map[string]decimal.Decimal{}}, p
}

func TestReplayIndexesByBlockInFileOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.jsonl")
	content := `{"block":5,"agent":"a","kind":"mint","pool":"x","params":{"tick_lower":-60,"tick_upper":60,"liquidity":"1000"}}
{"block":3,"agent":"b","kind":"swap","pool":"x","params":{"zero_for_one":true,"amount":"10"}}
{"block":5,"agent":"a","kind":"collect","pool":"x","params":{"position_id":"-60:60"}}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r, err := LoadReplay("hist", path, "p")
	require.NoError(t, err)
	assert.Equal(t, "hist", r.ID())
	assert.Equal(t, []uint64{3, 5}, r.Blocks())
	assert.Equal(t, 3, r.Len())

	reqs, err := r.ForBlock(context.Background(), 5, nil)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, model.KindMint, reqs[0].Kind)
	assert.Equal(t, "p", reqs[0].Pool)
	assert.Equal(t, "-60:60", reqs[0].Mint.PositionID)
	assert.Equal(t, model.KindCollect, reqs[1].Kind)

	none, err := r.ForBlock(context.Background(), 4, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, os.WriteFile(path, []byte(`{"block":1,"kind":"swap","params":{"amount":"x"}}`), 0o644))
	_, err = LoadReplay("bad", path, "")
	assert.Error(t, err)
}

func TestReplayServesWholeStepWindow(t *testing.T) {
	records := []model.ReplayRecord{}
	for _, b := range []uint64{100, 117, 105, 110, 121} {
		rec, err := model.NewReplayRecord(b, "a", model.KindSwap, "p", model.ReplaySwap{ZeroForOne: true, Amount: fmt.Sprint(b)})
		require.NoError(t, err)
		records = append(records, rec)
	}
	r, err := NewReplay("hist", records, "")
	require.NoError(t, err)

	view := &fakeView{from: 101}
	reqs, err := r.ForBlock(context.Background(), 110, view)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "105", reqs[0].Swap.AmountSpecified.String())
	assert.Equal(t, "110", reqs[1].Swap.AmountSpecified.String())

	view.from = 111
	reqs, err = r.ForBlock(context.Background(), 120, view)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "117", reqs[0].Swap.AmountSpecified.String())
}

func TestPolicyWrapsDecisionFunc(t *testing.T) {
	view, _ := newView(t)
	calls := 0
	pol := NewPolicy("custom", func(_ context.Context, block uint64, v StateView) ([]model.TxRequest, error) {
		calls++
		p, _ := v.Pool("p")
		return []model.TxRequest{model.NewCollect(p.ID(), "alice", model.CollectParams{PositionID: "x"})}, nil
	})
	reqs, err := pol.ForBlock(context.Background(), 1, view)
	require.NoError(t, err)
	assert.Len(t, reqs, 1)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "custom", pol.ID())
}

func TestRangeTicksAlignsAndContainsPrices(t *testing.T) {
	_, p := newView(t)
	lower, upper, err := RangeTicks(p, decimal.RequireFromString("0.9"), decimal.RequireFromString("1.1"))
	require.NoError(t, err)
	assert.Zero(t, lower%60)
	assert.Zero(t, upper%60)
	assert.Less(t, lower, int32(0))
	assert.Greater(t, upper, int32(0))

	lp, _ := fixedpoint.TickToPrice(lower)
	up, _ := fixedpoint.TickToPrice(upper)
	assert.True(t, lp.LessThanOrEqual(decimal.RequireFromString("0.9")))
	assert.True(t, up.GreaterThanOrEqual(decimal.RequireFromString("1.1")))

	l2, u2, err := RangeTicks(p, decimal.RequireFromString("1"), decimal.RequireFromString("1.000001"))
	require.NoError(t, err)
	assert.Less(t, l2, u2)

	_, _, err = RangeTicks(p, decimal.RequireFromString("2"), decimal.RequireFromString("1"))
	assert.Error(t, err)

	assert.Equal(t, int32(-1), floorTick(-1, 1))
	assert.Equal(t, int32(-60), floorTick(-1, 60))
	assert.Equal(t, int32(60), ceilTick(1, 60))
	assert.Equal(t, int32(0), ceilTick(-59, 60))
}

func TestScheduledActions(t *testing.T) {
	view, _ := newView(t)
	s, err := NewScheduled("lp", "alice", "p", []Action{
		{Block: 1, Kind: model.KindMint, PriceLower: decimal.RequireFromString("0.5"), PriceUpper: decimal.RequireFromString("2"), Amount0: units(1), Amount1: units(1)},
		{Block: 1, Kind: model.KindSwap, ZeroForOne: true, Amount: big.NewInt(100)},
		{Block: 9, Kind: model.KindBurn, PositionID: "pos"},
	})
	require.NoError(t, err)

	reqs, err := s.ForBlock(context.Background(), 1, view)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.NoError(t, reqs[0].Validate())
	assert.Equal(t, model.PositionIDForRange(reqs[0].Mint.TickLower, reqs[0].Mint.TickUpper), reqs[0].Mint.PositionID)
	assert.Equal(t, "alice", reqs[1].Agent)

	reqs, err = s.ForBlock(context.Background(), 9, view)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Burn.Fraction.Equal(decimal.NewFromInt(1)))

	view.from = 1
	reqs, err = s.ForBlock(context.Background(), 10, view)
	require.NoError(t, err)
	require.Len(t, reqs, 3)
	assert.Equal(t, []model.TxKind{model.KindMint, model.KindSwap, model.KindBurn}, []model.TxKind{reqs[0].Kind, reqs[1].Kind, reqs[2].Kind})

	_, err = NewScheduled("lp", "alice", "p", []Action{{Kind: "flash"}})
	assert.Error(t, err)
	_, err = NewScheduled("lp", "alice", "p", []Action{{Block: 3, Kind: model.KindCollect}})
	assert.Error(t, err)
}

func TestSpotTrackerRecentres(t *testing.T) {
	view, p := newView(t)
	tracker, err := NewSpotTracker("trk", SpotTrackerParams{
		Agent: "alice", Pool: "p", Width: decimal.RequireFromString("0.05"),
		Amount0: units(10), Amount1: units(10),
	})
	require.NoError(t, err)

	reqs, err := tracker.ForBlock(context.Background(), 1, view)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	mintReq := reqs[0].Mint
	assert.Equal(t, "trk-0", mintReq.PositionID)

	_, err = p.Mint(pool.MintParams{
		Owner: "alice", PositionID: mintReq.PositionID, TickLower: mintReq.TickLower, TickUpper: mintReq.TickUpper,
		Amount0Desired: uint256.MustFromBig(mintReq.Amount0Desired), Amount1Desired: uint256.MustFromBig(mintReq.Amount1Desired),
	})
	require.NoError(t, err)

	reqs, err = tracker.ForBlock(context.Background(), 2, view)
	require.NoError(t, err)
	assert.Empty(t, reqs, "price still in range")

	// push the price far above the range
	_, err = p.Swap(pool.SwapParams{ZeroForOne: false, AmountSpecified: units(100)})
	require.NoError(t, err)
	require.GreaterOrEqual(t, p.Tick(), mintReq.TickUpper)

	reqs, err = tracker.ForBlock(context.Background(), 3, view)
	require.NoError(t, err)
	require.Len(t, reqs, 3)
	assert.Equal(t, model.KindBurn, reqs[0].Kind)
	assert.Equal(t, "trk-0", reqs[0].Burn.PositionID)
	assert.Equal(t, model.KindCollect, reqs[1].Kind)
	assert.Equal(t, model.KindMint, reqs[2].Kind)
	assert.Equal(t, "trk-1", reqs[2].Mint.PositionID)
	assert.LessOrEqual(t, reqs[2].Mint.TickLower, p.Tick())
	assert.Greater(t, reqs[2].Mint.TickUpper, p.Tick())
}

func mintFromRequest(t *testing.T, p *pool.Pool, req model.TxRequest) {
	t.Helper()
	_, err := p.Mint(pool.MintParams{
		Owner: req.Agent, PositionID: req.Mint.PositionID, TickLower: req.Mint.TickLower, TickUpper: req.Mint.TickUpper,
		Amount0Desired: uint256.MustFromBig(req.Mint.Amount0Desired), Amount1Desired: uint256.MustFromBig(req.Mint.Amount1Desired),
	})
	require.NoError(t, err)
}

func TestSpotTrackerCentresOnPoolPrice(t *testing.T) {
	view, p := newView(t)
	// the external reference disagrees with the pool by far more than the width
	view.spots["ETH/USDC"] = decimal.NewFromInt(2)
	tracker, err := NewSpotTracker("trk", SpotTrackerParams{
		Agent: "alice", Pool: "p", Width: decimal.RequireFromString("0.05"),
		Amount0: units(10), Amount1: units(10),
	})
	require.NoError(t, err)

	reqs, err := tracker.ForBlock(context.Background(), 1, view)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.LessOrEqual(t, reqs[0].Mint.TickLower, p.Tick())
	assert.Greater(t, reqs[0].Mint.TickUpper, p.Tick())
	mintFromRequest(t, p, reqs[0])

	for block := uint64(2); block <= 4; block++ {
		reqs, err = tracker.ForBlock(context.Background(), block, view)
		require.NoError(t, err)
		assert.Empty(t, reqs, "block %d", block)
	}
}

func TestSpotTrackerRetriesSkippedBurn(t *testing.T) {
	view, p := newView(t)
	tracker, err := NewSpotTracker("trk", SpotTrackerParams{
		Agent: "alice", Pool: "p", Width: decimal.RequireFromString("0.05"),
		Amount0: units(10), Amount1: units(10),
	})
	require.NoError(t, err)

	reqs, err := tracker.ForBlock(context.Background(), 1, view)
	require.NoError(t, err)
	mintFromRequest(t, p, reqs[0])

	_, err = p.Swap(pool.SwapParams{ZeroForOne: false, AmountSpecified: units(100)})
	require.NoError(t, err)

	reqs, err = tracker.ForBlock(context.Background(), 2, view)
	require.NoError(t, err)
	require.Len(t, reqs, 3)
	assert.Equal(t, "trk-0", reqs[0].Burn.PositionID)
	assert.Equal(t, "trk-1", reqs[2].Mint.PositionID)

	// nothing applied: the burn is asked for again and trk-0 is not orphaned
	reqs, err = tracker.ForBlock(context.Background(), 3, view)
	require.NoError(t, err)
	require.Len(t, reqs, 3)
	assert.Equal(t, model.KindBurn, reqs[0].Kind)
	assert.Equal(t, "trk-0", reqs[0].Burn.PositionID)
	assert.Equal(t, model.KindMint, reqs[2].Kind)
	assert.Equal(t, "trk-1", reqs[2].Mint.PositionID)

	_, err = p.Burn(pool.BurnParams{Owner: "alice", PositionID: "trk-0", Fraction: decimal.NewFromInt(1)})
	require.NoError(t, err)
	mintFromRequest(t, p, reqs[2])

	reqs, err = tracker.ForBlock(context.Background(), 4, view)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestThresholdSwapperFiresOncePerCrossing(t *testing.T) {
	view, _ := newView(t)
	s, err := NewThresholdSwapper("thr", ThresholdSwapperParams{
		Agent: "bob", Pool: "p", Threshold: decimal.RequireFromString("0.5"), Above: true, Amount: big.NewInt(1000),
	})
	require.NoError(t, err)

	reqs, err := s.ForBlock(context.Background(), 1, view)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Swap.ZeroForOne)
	assert.Equal(t, int64(1000), reqs[0].Swap.AmountSpecified.Int64())

	reqs, err = s.ForBlock(context.Background(), 2, view)
	require.NoError(t, err)
	assert.Empty(t, reqs)

	below, err := NewThresholdSwapper("thr2", ThresholdSwapperParams{
		Agent: "bob", Pool: "p", Threshold: decimal.RequireFromString("0.5"), Amount: big.NewInt(1),
	})
	require.NoError(t, err)
	reqs, err = below.ForBlock(context.Background(), 1, view)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestArbitrageurTargetsReference(t *testing.T) {
	view, p := newView(t)
	_, err := p.Mint(pool.MintParams{
		Owner: "lp", PositionID: "1", TickLower: -6000, TickUpper: 6000,
		Amount0Desired: uint256.MustFromBig(units(100)), Amount1Desired: uint256.MustFromBig(units(100)),
	})
	require.NoError(t, err)

	arb, err := NewArbitrageur("arb", ArbitrageurParams{Pool: "p", Tolerance: decimal.RequireFromString("0.001")})
	require.NoError(t, err)

	reqs, err := arb.ForBlock(context.Background(), 1, view)
	require.NoError(t, err)
	assert.Empty(t, reqs, "no reference price")

	view.spots["ETH/USDC"] = decimal.RequireFromString("1.2")
	reqs, err = arb.ForBlock(context.Background(), 1, view)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	swap := reqs[0].Swap
	assert.False(t, swap.ZeroForOne)
	assert.Equal(t, "arb", reqs[0].Agent)

	plan, err := p.Swap(pool.SwapParams{
		ZeroForOne: swap.ZeroForOne, AmountSpecified: swap.AmountSpecified,
		SqrtPriceLimit: uint256.MustFromBig(swap.SqrtPriceLimit),
	})
	require.NoError(t, err)
	assert.True(t, plan.Partial)
	assert.True(t, p.DexSpot().Sub(decimal.RequireFromString("1.2")).Abs().LessThan(decimal.RequireFromString("0.000001")))

	reqs, err = arb.ForBlock(context.Background(), 2, view)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}
