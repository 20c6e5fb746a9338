package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ReplayRecord is one line of a replay file. Amounts are decimal strings so
// 256-bit values survive JSON.
type ReplayRecord struct {
	Block    uint64          `json:"block"`
	Agent    string          `json:"agent"`
	Kind     TxKind          `json:"kind"`
	Pool     string          `json:"pool"`
	Params   json.RawMessage `json:"params"`
	TxHash   string          `json:"tx_hash,omitempty"`
	LogIndex uint64          `json:"log_index,omitempty"`
}

type ReplayMint struct {
	PositionID string `json:"position_id,omitempty"`
	TickLower  int32  `json:"tick_lower"`
	TickUpper  int32  `json:"tick_upper"`
	Amount0    string `json:"amount0,omitempty"`
	Amount1    string `json:"amount1,omitempty"`
	Liquidity  string `json:"liquidity,omitempty"`
}

// ReplayBurn and ReplayCollect name their position by id or, like a mint
// without an id, by its tick range.
type ReplayBurn struct {
	PositionID string `json:"position_id,omitempty"`
	TickLower  *int32 `json:"tick_lower,omitempty"`
	TickUpper  *int32 `json:"tick_upper,omitempty"`
	Fraction   string `json:"fraction,omitempty"`
	Liquidity  string `json:"liquidity,omitempty"`
}

type ReplaySwap struct {
	ZeroForOne     bool   `json:"zero_for_one"`
	Amount         string `json:"amount"`
	SqrtPriceLimit string `json:"sqrt_price_limit,omitempty"`
}

type ReplayCollect struct {
	PositionID string `json:"position_id,omitempty"`
	TickLower  *int32 `json:"tick_lower,omitempty"`
	TickUpper  *int32 `json:"tick_upper,omitempty"`
}

// NewReplayRecord marshals params into a record.
func NewReplayRecord(block uint64, agent string, kind TxKind, pool string, params interface{}) (ReplayRecord, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return ReplayRecord{}, fmt.Errorf("marshal %s params: %w", kind, err)
	}
	return ReplayRecord{Block: block, Agent: agent, Kind: kind, Pool: pool, Params: raw}, nil
}

// NormalizeAgent checksums hex addresses and leaves other names untouched.
func NormalizeAgent(agent string) string {
	agent = strings.TrimSpace(agent)
	if common.IsHexAddress(agent) {
		return common.HexToAddress(agent).Hex()
	}
	return agent
}

// PositionIDForRange is the id replayed positions use: on chain a position
// is identified by owner and range.
func PositionIDForRange(lower, upper int32) string {
	return fmt.Sprintf("%d:%d", lower, upper)
}

func positionRef(kind TxKind, id string, lower, upper *int32) (string, error) {
	if id != "" {
		return id, nil
	}
	if lower == nil || upper == nil {
		return "", fmt.Errorf("%s needs position_id or tick_lower and tick_upper", kind)
	}
	return PositionIDForRange(*lower, *upper), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	if value == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", field, value)
	}
	return v, nil
}

// ToRequest decodes the record into a transaction request.
func (r ReplayRecord) ToRequest() (TxRequest, error) {
	agent := NormalizeAgent(r.Agent)
	switch r.Kind {
	case KindMint:
		var p ReplayMint
		if err := json.Unmarshal(r.Params, &p); err != nil {
			return TxRequest{}, fmt.Errorf("decode mint params: %w", err)
		}
		a0, err := parseAmount("amount0", p.Amount0)
		if err != nil {
			return TxRequest{}, err
		}
		a1, err := parseAmount("amount1", p.Amount1)
		if err != nil {
			return TxRequest{}, err
		}
		l, err := parseAmount("liquidity", p.Liquidity)
		if err != nil {
			return TxRequest{}, err
		}
		id := p.PositionID
		if id == "" {
			id = PositionIDForRange(p.TickLower, p.TickUpper)
		}
		return NewMint(r.Pool, agent, MintParams{
			PositionID:     id,
			TickLower:      p.TickLower,
			TickUpper:      p.TickUpper,
			Amount0Desired: a0,
			Amount1Desired: a1,
			Liquidity:      l,
		}), nil
	case KindBurn:
		var p ReplayBurn
		if err := json.Unmarshal(r.Params, &p); err != nil {
			return TxRequest{}, fmt.Errorf("decode burn params: %w", err)
		}
		l, err := parseAmount("liquidity", p.Liquidity)
		if err != nil {
			return TxRequest{}, err
		}
		id, err := positionRef(r.Kind, p.PositionID, p.TickLower, p.TickUpper)
		if err != nil {
			return TxRequest{}, err
		}
		params := BurnParams{PositionID: id, Liquidity: l}
		if p.Fraction != "" {
			if params.Fraction, err = decimal.NewFromString(p.Fraction); err != nil {
				return TxRequest{}, fmt.Errorf("invalid fraction %q: %w", p.Fraction, err)
			}
		}
		return NewBurn(r.Pool, agent, params), nil
	case KindSwap:
		var p ReplaySwap
		if err := json.Unmarshal(r.Params, &p); err != nil {
			return TxRequest{}, fmt.Errorf("decode swap params: %w", err)
		}
		amount, err := parseAmount("amount", p.Amount)
		if err != nil {
			return TxRequest{}, err
		}
		if amount == nil {
			return TxRequest{}, fmt.Errorf("swap amount is required")
		}
		limit, err := parseAmount("sqrt_price_limit", p.SqrtPriceLimit)
		if err != nil {
			return TxRequest{}, err
		}
		return NewSwap(r.Pool, agent, SwapParams{ZeroForOne: p.ZeroForOne, AmountSpecified: amount, SqrtPriceLimit: limit}), nil
	case KindCollect:
		var p ReplayCollect
		if len(r.Params) > 0 {
			if err := json.Unmarshal(r.Params, &p); err != nil {
				return TxRequest{}, fmt.Errorf("decode collect params: %w", err)
			}
		}
		id, err := positionRef(r.Kind, p.PositionID, p.TickLower, p.TickUpper)
		if err != nil {
			return TxRequest{}, err
		}
		return NewCollect(r.Pool, agent, CollectParams{PositionID: id}), nil
	default:
		return TxRequest{}, fmt.Errorf("unsupported replay kind %q", r.Kind)
	}
}
