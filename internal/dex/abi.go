package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Only the events replayed by the simulator and the views read at fetch time.
const poolABIJSON = `[
  {"type": "event", "name": "Swap", "anonymous": false, "inputs": [
    {"indexed": true, "name": "sender", "type": "address"},
    {"indexed": true, "name": "recipient", "type": "address"},
    {"indexed": false, "name": "amount0", "type": "int256"},
    {"indexed": false, "name": "amount1", "type": "int256"},
    {"indexed": false, "name": "sqrtPriceX96", "type": "uint160"},
    {"indexed": false, "name": "liquidity", "type": "uint128"},
    {"indexed": false, "name": "tick", "type": "int24"}]},
  {"type": "event", "name": "Mint", "anonymous": false, "inputs": [
    {"indexed": false, "name": "sender", "type": "address"},
    {"indexed": true, "name": "owner", "type": "address"},
    {"indexed": true, "name": "tickLower", "type": "int24"},
    {"indexed": true, "name": "tickUpper", "type": "int24"},
    {"indexed": false, "name": "amount", "type": "uint128"},
    {"indexed": false, "name": "amount0", "type": "uint256"},
    {"indexed": false, "name": "amount1", "type": "uint256"}]},
  {"type": "event", "name": "Burn", "anonymous": false, "inputs": [
    {"indexed": true, "name": "owner", "type": "address"},
    {"indexed": true, "name": "tickLower", "type": "int24"},
    {"indexed": true, "name": "tickUpper", "type": "int24"},
    {"indexed": false, "name": "amount", "type": "uint128"},
    {"indexed": false, "name": "amount0", "type": "uint256"},
    {"indexed": false, "name": "amount1", "type": "uint256"}]},
  {"type": "event", "name": "Collect", "anonymous": false, "inputs": [
    {"indexed": true, "name": "owner", "type": "address"},
    {"indexed": false, "name": "recipient", "type": "address"},
    {"indexed": true, "name": "tickLower", "type": "int24"},
    {"indexed": true, "name": "tickUpper", "type": "int24"},
    {"indexed": false, "name": "amount0", "type": "uint128"},
    {"indexed": false, "name": "amount1", "type": "uint128"}]},
  {"type": "function", "name": "token0", "stateMutability": "view", "inputs": [], "outputs": [{"type": "address"}]},
  {"type": "function", "name": "token1", "stateMutability": "view", "inputs": [], "outputs": [{"type": "address"}]},
  {"type": "function", "name": "fee", "stateMutability": "view", "inputs": [], "outputs": [{"type": "uint24"}]},
  {"type": "function", "name": "tickSpacing", "stateMutability": "view", "inputs": [], "outputs": [{"type": "int24"}]},
  {"type": "function", "name": "liquidity", "stateMutability": "view", "inputs": [], "outputs": [{"type": "uint128"}]},
  {"type": "function", "name": "slot0", "stateMutability": "view", "inputs": [], "outputs": [
    {"name": "sqrtPriceX96", "type": "uint160"},
    {"name": "tick", "type": "int24"},
    {"name": "observationIndex", "type": "uint16"},
    {"name": "observationCardinality", "type": "uint16"},
    {"name": "observationCardinalityNext", "type": "uint16"},
    {"name": "feeProtocol", "type": "uint8"},
    {"name": "unlocked", "type": "bool"}]}
]`

// Some older tokens return bytes32 from symbol.
const erc20ABIJSON = `[
  {"type": "function", "name": "decimals", "stateMutability": "view", "inputs": [], "outputs": [{"type": "uint8"}]},
  {"type": "function", "name": "symbol", "stateMutability": "view", "inputs": [], "outputs": [{"type": "string"}]}
]`

const erc20Bytes32ABIJSON = `[
  {"type": "function", "name": "symbol", "stateMutability": "view", "inputs": [], "outputs": [{"type": "bytes32"}]}
]`

type lazyABI struct {
	src    string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.src))
	})
	return l.parsed, l.err
}

var (
	poolABI         = &lazyABI{src: poolABIJSON}
	erc20ABI        = &lazyABI{src: erc20ABIJSON}
	erc20Bytes32ABI = &lazyABI{src: erc20Bytes32ABIJSON}
)

// PoolABI returns the parsed concentrated-liquidity pool ABI.
func PoolABI() (abi.ABI, error) {
	return poolABI.get()
}
