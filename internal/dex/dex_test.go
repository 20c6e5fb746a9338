package dex

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquiditySim/internal/model"
)

var (
	testPool  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testOwner = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func TestDecodeSwap(t *testing.T) {
	parsed, err := PoolABI()
	require.NoError(t, err)
	d, err := NewDecoder()
	require.NoError(t, err)

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")
	data, err := parsed.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	require.NoError(t, err)

	ev, err := d.Decode(buildLog(parsed.Events["Swap"].ID, data, topicFromAddress(sender), topicFromAddress(recipient)))
	require.NoError(t, err)
	assert.Equal(t, model.EventSwap, ev.Name)
	assert.Equal(t, testPool.Hex(), ev.Pool)
	assert.Equal(t, "-1000", ev.Amount0.String())
	assert.Equal(t, "2000", ev.Amount1.String())
	assert.Equal(t, int32(-15), ev.Tick)
	assert.Equal(t, sender.Hex(), ev.Sender)
	assert.Equal(t, recipient.Hex(), ev.Recipient)
	assert.Equal(t, uint64(12345), ev.BlockNumber)

	rec, ok, err := ToReplayRecord("weth-usdc", ev)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.KindSwap, rec.Kind)
	var p model.ReplaySwap
	require.NoError(t, json.Unmarshal(rec.Params, &p))
	assert.False(t, p.ZeroForOne)
	assert.Equal(t, "2000", p.Amount)
	assert.Equal(t, "123456789", p.SqrtPriceLimit)
}

func TestDecodeMintBurnCollect(t *testing.T) {
	parsed, err := PoolABI()
	require.NoError(t, err)
	d, err := NewDecoder()
	require.NoError(t, err)

	mintData, err := parsed.Events["Mint"].Inputs.NonIndexed().Pack(
		common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		big.NewInt(5000),
		big.NewInt(100),
		big.NewInt(200),
	)
	require.NoError(t, err)
	mint, err := d.Decode(buildLog(parsed.Events["Mint"].ID, mintData,
		topicFromAddress(testOwner), topicFromInt24(-120), topicFromInt24(120)))
	require.NoError(t, err)
	assert.Equal(t, int32(-120), mint.TickLower)
	assert.Equal(t, int32(120), mint.TickUpper)
	assert.Equal(t, "5000", mint.Amount.String())

	rec, ok, err := ToReplayRecord("p", mint)
	require.NoError(t, err)
	require.True(t, ok)
	req, err := rec.ToRequest()
	require.NoError(t, err)
	assert.Equal(t, testOwner.Hex(), req.Agent)
	require.NotNil(t, req.Mint)
	assert.Equal(t, "-120:120", req.Mint.PositionID)
	assert.Equal(t, "5000", req.Mint.Liquidity.String())

	burnData, err := parsed.Events["Burn"].Inputs.NonIndexed().Pack(big.NewInt(7000), big.NewInt(300), big.NewInt(400))
	require.NoError(t, err)
	burn, err := d.Decode(buildLog(parsed.Events["Burn"].ID, burnData,
		topicFromAddress(testOwner), topicFromInt24(-60), topicFromInt24(60)))
	require.NoError(t, err)
	assert.Equal(t, "7000", burn.Amount.String())

	collectData, err := parsed.Events["Collect"].Inputs.NonIndexed().Pack(
		common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc"), big.NewInt(900), big.NewInt(1000))
	require.NoError(t, err)
	collect, err := d.Decode(buildLog(parsed.Events["Collect"].ID, collectData,
		topicFromAddress(testOwner), topicFromInt24(-10), topicFromInt24(10)))
	require.NoError(t, err)
	assert.Equal(t, "900", collect.Amount0.String())
	rec, ok, err = ToReplayRecord("p", collect)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.KindCollect, rec.Kind)
}

func TestDecoderKindsFilter(t *testing.T) {
	d, err := NewDecoder("Swap")
	require.NoError(t, err)
	parsed, err := PoolABI()
	require.NoError(t, err)

	assert.Equal(t, []common.Hash{parsed.Events["Swap"].ID}, d.Topics())
	assert.False(t, d.CanDecode(parsed.Events["Mint"].ID))

	_, err = NewDecoder("flash")
	assert.Error(t, err)

	_, err = d.Decode(types.Log{Address: testPool})
	assert.Error(t, err)
	_, err = d.Decode(types.Log{Address: testPool, Topics: []common.Hash{parsed.Events["Swap"].ID}})
	assert.Error(t, err, "missing indexed topics")
}

func TestToReplayRecordSkips(t *testing.T) {
	_, ok, err := ToReplayRecord("p", model.PoolEvent{Name: model.EventSwap, Amount0: big.NewInt(0), Amount1: big.NewInt(0)})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ToReplayRecord("p", model.PoolEvent{Name: model.EventBurn, Amount: big.NewInt(0)})
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ToReplayRecord("p", model.PoolEvent{Name: "Flash"})
	assert.Error(t, err)
}

type fakeCaller struct {
	parsed  map[common.Address]abi.ABI
	results map[string][]interface{}
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed := f.parsed[*msg.To]
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	out, ok := f.results[msg.To.Hex()+"."+method.Name+"."+method.Outputs[0].Type.String()]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return method.Outputs.Pack(out...)
}

func TestFetchPoolMeta(t *testing.T) {
	poolParsed, err := PoolABI()
	require.NoError(t, err)
	ercParsed, err := erc20ABI.get()
	require.NoError(t, err)

	token0 := common.HexToAddress("0x4444444444444444444444444444444444444444")
	token1 := common.HexToAddress("0x5555555555555555555555555555555555555555")
	caller := &fakeCaller{
		parsed: map[common.Address]abi.ABI{testPool: poolParsed, token0: ercParsed, token1: ercParsed},
		results: map[string][]interface{}{
			testPool.Hex() + ".token0.address":    {token0},
			testPool.Hex() + ".token1.address":    {token1},
			testPool.Hex() + ".fee.uint24":        {big.NewInt(3000)},
			testPool.Hex() + ".tickSpacing.int24": {big.NewInt(60)},
			testPool.Hex() + ".liquidity.uint128": {big.NewInt(1_000_000)},
			testPool.Hex() + ".slot0.uint160":     {new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(0), uint16(0), uint16(1), uint16(1), uint8(0), true},
			token0.Hex() + ".decimals.uint8":      {uint8(18)},
			token0.Hex() + ".symbol.string":       {"WETH"},
			token1.Hex() + ".decimals.uint8":      {uint8(6)},
		},
	}

	meta, err := FetchPoolMeta(context.Background(), caller, testPool, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(3000), meta.Fee)
	assert.Equal(t, int32(60), meta.TickSpacing)
	assert.Equal(t, "1000000", meta.Liquidity)
	require.NotNil(t, meta.Slot0)
	assert.Equal(t, int32(0), meta.Slot0.Tick)
	assert.Equal(t, "WETH", meta.Token0.Symbol)
	assert.Equal(t, uint8(6), meta.Token1.Decimals)
	assert.Equal(t, "", meta.Token1.Symbol, "symbol failures leave it blank")
	assert.Equal(t, uint64(100), meta.Block)

	delete(caller.results, testPool.Hex()+".fee.uint24")
	_, err = FetchPoolMeta(context.Background(), caller, testPool, 0, nil)
	assert.Error(t, err)
}

func buildLog(topic0 common.Hash, data []byte, indexed ...common.Hash) types.Log {
	return types.Log{
		Address:     testPool,
		Topics:      append([]common.Hash{topic0}, indexed...),
		Data:        data,
		BlockNumber: 12345,
		TxHash:      common.HexToHash("0xdef"),
		Index:       1,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromInt24(value int32) common.Hash {
	v := big.NewInt(int64(value))
	if value < 0 {
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(v)
}
