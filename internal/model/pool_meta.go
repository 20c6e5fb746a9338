package model

// PoolMeta is the on-chain description of a pool, written by fetch so a
// run config can initialize the simulated pool from it.
type PoolMeta struct {
	Address     string     `json:"address"`
	Token0      TokenMeta  `json:"token0"`
	Token1      TokenMeta  `json:"token1"`
	Fee         uint32     `json:"fee"`
	TickSpacing int32      `json:"tick_spacing"`
	Liquidity   string     `json:"liquidity,omitempty"`
	Slot0       *PoolSlot0 `json:"slot0,omitempty"`
	Block       uint64     `json:"block,omitempty"`
}

// PoolSlot0 includes select slot0 fields.
type PoolSlot0 struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
}

type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}
