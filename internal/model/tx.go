package model

import (
	"math/big"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/simerr"
)

// TxKind enumerates the pool operations a transaction can request.
type TxKind string

const (
	KindMint    TxKind = "mint"
	KindBurn    TxKind = "burn"
	KindSwap    TxKind = "swap"
	KindCollect TxKind = "collect"
)

// MintParams: either Liquidity, or the desired amounts to derive it from.
type MintParams struct {
	PositionID     string
	TickLower      int32
	TickUpper      int32
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Liquidity      *big.Int
}

// BurnParams: Liquidity takes precedence over Fraction.
type BurnParams struct {
	PositionID string
	Fraction   decimal.Decimal
	Liquidity  *big.Int
}

// SwapParams: positive AmountSpecified is exact input, negative exact output.
type SwapParams struct {
	ZeroForOne      bool
	AmountSpecified *big.Int
	SqrtPriceLimit  *big.Int
}

type CollectParams struct {
	PositionID string
}

// TxRequest is one requested pool operation. Exactly one params field
// matching Kind is set. Requests are treated as immutable once built.
type TxRequest struct {
	Kind  TxKind
	Pool  string
	Agent string

	Mint    *MintParams
	Burn    *BurnParams
	Swap    *SwapParams
	Collect *CollectParams
}

func NewMint(pool, agent string, p MintParams) TxRequest {
	return TxRequest{Kind: KindMint, Pool: pool, Agent: agent, Mint: &p}
}

func NewBurn(pool, agent string, p BurnParams) TxRequest {
	return TxRequest{Kind: KindBurn, Pool: pool, Agent: agent, Burn: &p}
}

func NewSwap(pool, agent string, p SwapParams) TxRequest {
	return TxRequest{Kind: KindSwap, Pool: pool, Agent: agent, Swap: &p}
}

func NewCollect(pool, agent string, p CollectParams) TxRequest {
	return TxRequest{Kind: KindCollect, Pool: pool, Agent: agent, Collect: &p}
}

func negative(v *big.Int) bool {
	return v != nil && v.Sign() < 0
}

// Validate rejects malformed requests before they reach any pool.
func (r TxRequest) Validate() error {
	const op = "validate tx"
	if r.Pool == "" {
		return simerr.Newf(simerr.ClassValidation, op, "%w: empty pool id", simerr.ErrUnknownPool)
	}
	if r.Agent == "" {
		return simerr.Validation(op, "%s on %s: empty agent", r.Kind, r.Pool)
	}
	switch r.Kind {
	case KindMint:
		if r.Mint == nil {
			return simerr.Validation(op, "mint without params")
		}
		if r.Mint.TickLower >= r.Mint.TickUpper {
			return simerr.Newf(simerr.ClassValidation, op, "%w: lower %d >= upper %d", simerr.ErrInvalidRange, r.Mint.TickLower, r.Mint.TickUpper)
		}
		if negative(r.Mint.Amount0Desired) || negative(r.Mint.Amount1Desired) || negative(r.Mint.Liquidity) {
			return simerr.Validation(op, "mint with negative amount")
		}
	case KindBurn:
		if r.Burn == nil {
			return simerr.Validation(op, "burn without params")
		}
		if negative(r.Burn.Liquidity) {
			return simerr.Validation(op, "burn with negative liquidity")
		}
		if r.Burn.Liquidity == nil || r.Burn.Liquidity.Sign() == 0 {
			if !r.Burn.Fraction.IsPositive() || r.Burn.Fraction.GreaterThan(decimal.NewFromInt(1)) {
				return simerr.Validation(op, "burn fraction %s outside (0, 1]", r.Burn.Fraction)
			}
		}
	case KindSwap:
		if r.Swap == nil || r.Swap.AmountSpecified == nil {
			return simerr.Validation(op, "swap without amount")
		}
		if negative(r.Swap.SqrtPriceLimit) {
			return simerr.Validation(op, "swap with negative price limit")
		}
	case KindCollect:
		if r.Collect == nil {
			return simerr.Validation(op, "collect without params")
		}
	default:
		return simerr.Validation(op, "unknown tx kind %q", r.Kind)
	}
	return nil
}
