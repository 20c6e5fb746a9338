package model

import "math/big"

// PoolEventName is a decoded V3 pool event type.
type PoolEventName string

const (
	EventSwap    PoolEventName = "Swap"
	EventMint    PoolEventName = "Mint"
	EventBurn    PoolEventName = "Burn"
	EventCollect PoolEventName = "Collect"
)

// PoolEvent is a decoded V3 pool log. Fields not carried by an event are
// left zero: Swap has no ticks, Collect has no liquidity amount.
type PoolEvent struct {
	Name        PoolEventName
	Pool        string
	BlockNumber uint64
	TxHash      string
	LogIndex    uint64

	Sender    string
	Owner     string
	Recipient string

	TickLower int32
	TickUpper int32
	// Amount is the liquidity delta of Mint and Burn.
	Amount  *big.Int
	Amount0 *big.Int
	Amount1 *big.Int

	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}
