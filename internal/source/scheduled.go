package source

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
	"liquiditySim/internal/simerr"
)

// Action is one scheduled operation. Mint ranges may be given as ticks or,
// when PriceLower/PriceUpper are set, as whole-token prices.
type Action struct {
	Block      uint64
	Kind       model.TxKind
	PositionID string

	TickLower  int32
	TickUpper  int32
	PriceLower decimal.Decimal
	PriceUpper decimal.Decimal
	Amount0    *big.Int
	Amount1    *big.Int
	Liquidity  *big.Int

	Fraction decimal.Decimal

	ZeroForOne     bool
	Amount         *big.Int
	SqrtPriceLimit *big.Int
}

// Scheduled issues an agent's fixed list of actions on one pool.
type Scheduled struct {
	id      string
	agent   string
	pool    string
	byBlock map[uint64][]Action
	blocks  []uint64
}

func NewScheduled(id, agent, poolID string, actions []Action) (*Scheduled, error) {
	if agent == "" || poolID == "" {
		return nil, fmt.Errorf("scheduled source %s: agent and pool are required", id)
	}
	s := &Scheduled{id: id, agent: agent, pool: poolID, byBlock: make(map[uint64][]Action)}
	for _, a := range actions {
		switch a.Kind {
		case model.KindMint, model.KindSwap:
		case model.KindBurn, model.KindCollect:
			if a.PositionID == "" {
				return nil, fmt.Errorf("scheduled source %s: %s at block %d needs a position id", id, a.Kind, a.Block)
			}
		default:
			return nil, fmt.Errorf("scheduled source %s: unknown action kind %q at block %d", id, a.Kind, a.Block)
		}
		if _, ok := s.byBlock[a.Block]; !ok {
			s.blocks = append(s.blocks, a.Block)
		}
		s.byBlock[a.Block] = append(s.byBlock[a.Block], a)
	}
	sort.Slice(s.blocks, func(i, j int) bool { return s.blocks[i] < s.blocks[j] })
	return s, nil
}

func (s *Scheduled) ID() string { return s.id }

// ForBlock issues every action due in the step's block window, in block then
// list order.
func (s *Scheduled) ForBlock(_ context.Context, block uint64, view StateView) ([]model.TxRequest, error) {
	from := window(block, view)
	var out []model.TxRequest
	for i := sort.Search(len(s.blocks), func(i int) bool { return s.blocks[i] >= from }); i < len(s.blocks) && s.blocks[i] <= block; i++ {
		for _, a := range s.byBlock[s.blocks[i]] {
			req, err := s.request(a, view)
			if err != nil {
				return nil, err
			}
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *Scheduled) request(a Action, view StateView) (model.TxRequest, error) {
	switch a.Kind {
	case model.KindMint:
		lower, upper := a.TickLower, a.TickUpper
		if a.PriceLower.IsPositive() || a.PriceUpper.IsPositive() {
			p, ok := view.Pool(s.pool)
			if !ok {
				return model.TxRequest{}, simerr.Newf(simerr.ClassSource, "scheduled mint", "%w: %s", simerr.ErrUnknownPool, s.pool)
			}
			var err error
			if lower, upper, err = RangeTicks(p, a.PriceLower, a.PriceUpper); err != nil {
				return model.TxRequest{}, simerr.New(simerr.ClassSource, "scheduled mint", err)
			}
		}
		id := a.PositionID
		if id == "" {
			id = model.PositionIDForRange(lower, upper)
		}
		return model.NewMint(s.pool, s.agent, model.MintParams{
			PositionID:     id,
			TickLower:      lower,
			TickUpper:      upper,
			Amount0Desired: a.Amount0,
			Amount1Desired: a.Amount1,
			Liquidity:      a.Liquidity,
		}), nil
	case model.KindBurn:
		fraction := a.Fraction
		if fraction.IsZero() && a.Liquidity == nil {
			fraction = decimal.NewFromInt(1)
		}
		return model.NewBurn(s.pool, s.agent, model.BurnParams{
			PositionID: a.PositionID,
			Fraction:   fraction,
			Liquidity:  a.Liquidity,
		}), nil
	case model.KindSwap:
		return model.NewSwap(s.pool, s.agent, model.SwapParams{
			ZeroForOne:      a.ZeroForOne,
			AmountSpecified: a.Amount,
			SqrtPriceLimit:  a.SqrtPriceLimit,
		}), nil
	default:
		return model.NewCollect(s.pool, s.agent, model.CollectParams{PositionID: a.PositionID}), nil
	}
}
