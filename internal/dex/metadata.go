package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquiditySim/internal/model"
)

// Caller performs read-only contract calls. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FetchPoolMeta reads a pool's immutable fields, its tokens and, at block
// (0 for latest), slot0 and active liquidity. Token symbol failures are
// logged and left blank; everything else is an error.
func FetchPoolMeta(ctx context.Context, caller Caller, pool common.Address, block uint64, logger *zap.Logger) (model.PoolMeta, error) {
	if caller == nil {
		return model.PoolMeta{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := PoolABI()
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}
	var at *big.Int
	if block > 0 {
		at = new(big.Int).SetUint64(block)
	}
	call := func(method string) ([]interface{}, error) {
		return callMethod(ctx, caller, pool, parsed, method, at)
	}

	meta := model.PoolMeta{Address: pool.Hex(), Block: block}
	var token0, token1 common.Address
	if token0, err = callAddress(call, "token0"); err != nil {
		return model.PoolMeta{}, err
	}
	if token1, err = callAddress(call, "token1"); err != nil {
		return model.PoolMeta{}, err
	}

	values, err := call("fee")
	if err != nil {
		return model.PoolMeta{}, err
	}
	fee, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("fee: %w", err)
	}
	meta.Fee = uint32(fee.Uint64())

	if values, err = call("tickSpacing"); err != nil {
		return model.PoolMeta{}, err
	}
	spacing, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}
	if meta.TickSpacing, err = int24FromBig(spacing); err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}

	if values, err = call("liquidity"); err != nil {
		return model.PoolMeta{}, err
	}
	liq, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("liquidity: %w", err)
	}
	meta.Liquidity = liq.String()

	if values, err = call("slot0"); err != nil {
		return model.PoolMeta{}, err
	}
	if len(values) < 2 {
		return model.PoolMeta{}, fmt.Errorf("slot0: unexpected %d values", len(values))
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("slot0 price: %w", err)
	}
	tick, err := asBigInt(values[1])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("slot0 tick: %w", err)
	}
	slot0 := &model.PoolSlot0{SqrtPriceX96: sqrtPrice.String()}
	if slot0.Tick, err = int24FromBig(tick); err != nil {
		return model.PoolMeta{}, fmt.Errorf("slot0 tick: %w", err)
	}
	meta.Slot0 = slot0

	if meta.Token0, err = FetchTokenMeta(ctx, caller, token0, logger); err != nil {
		return model.PoolMeta{}, fmt.Errorf("token0: %w", err)
	}
	if meta.Token1, err = FetchTokenMeta(ctx, caller, token1, logger); err != nil {
		return model.PoolMeta{}, fmt.Errorf("token1: %w", err)
	}
	return meta, nil
}

// FetchTokenMeta reads decimals and symbol of an ERC20 token.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	parsed, err := erc20ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, parsed, "decimals", nil)
	if err != nil {
		return meta, err
	}
	decimals, err := asBigInt(values[0])
	if err != nil || !decimals.IsUint64() || decimals.Uint64() > 255 {
		return meta, fmt.Errorf("decimals: unexpected value %v", values[0])
	}
	meta.Decimals = uint8(decimals.Uint64())

	if values, err := callMethod(ctx, caller, token, parsed, "symbol", nil); err == nil {
		meta.Symbol, _ = values[0].(string)
		return meta, nil
	}
	fallback, err := erc20Bytes32ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err = callMethod(ctx, caller, token, fallback, "symbol", nil)
	if err != nil {
		if logger != nil {
			logger.Warn("token symbol unavailable", zap.String("token", token.Hex()), zap.Error(err))
		}
		return meta, nil
	}
	if raw, ok := values[0].([32]byte); ok {
		meta.Symbol = string(bytes.TrimRight(raw[:], "\x00"))
	}
	return meta, nil
}

func callMethod(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, method string, block *big.Int) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

func callAddress(call func(string) ([]interface{}, error), method string) (common.Address, error) {
	values, err := call(method)
	if err != nil {
		return common.Address{}, err
	}
	addr, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", method, err)
	}
	return addr, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	if value.Cmp(big.NewInt(-1<<23)) < 0 || value.Cmp(big.NewInt(1<<23-1)) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value)
	}
	return int32(value.Int64()), nil
}
