package source

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
	"liquiditySim/internal/simerr"
)

// ThresholdSwapperParams: when Above is set the swapper sells token0 once
// dex spot rises above Threshold, otherwise it buys token0 once spot falls
// below it.
type ThresholdSwapperParams struct {
	Agent     string
	Pool      string
	Threshold decimal.Decimal
	Above     bool
	// Amount is the exact input of each swap in raw units.
	Amount *big.Int
}

// ThresholdSwapper fires one swap each time the condition becomes true.
type ThresholdSwapper struct {
	id     string
	params ThresholdSwapperParams
	armed  bool
}

func NewThresholdSwapper(id string, params ThresholdSwapperParams) (*ThresholdSwapper, error) {
	if params.Agent == "" || params.Pool == "" {
		return nil, fmt.Errorf("threshold swapper %s: agent and pool are required", id)
	}
	if !params.Threshold.IsPositive() {
		return nil, fmt.Errorf("threshold swapper %s: threshold must be positive", id)
	}
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("threshold swapper %s: amount must be positive", id)
	}
	return &ThresholdSwapper{id: id, params: params, armed: true}, nil
}

func (s *ThresholdSwapper) ID() string { return s.id }

func (s *ThresholdSwapper) ForBlock(_ context.Context, _ uint64, view StateView) ([]model.TxRequest, error) {
	p, ok := view.Pool(s.params.Pool)
	if !ok {
		return nil, simerr.Newf(simerr.ClassSource, "threshold swapper", "%w: %s", simerr.ErrUnknownPool, s.params.Pool)
	}
	spot := p.DexSpot()
	triggered := spot.LessThan(s.params.Threshold)
	if s.params.Above {
		triggered = spot.GreaterThan(s.params.Threshold)
	}
	if !triggered {
		s.armed = true
		return nil, nil
	}
	if !s.armed {
		return nil, nil
	}
	s.armed = false
	return []model.TxRequest{model.NewSwap(s.params.Pool, s.params.Agent, model.SwapParams{
		ZeroForOne:      s.params.Above,
		AmountSpecified: new(big.Int).Set(s.params.Amount),
	})}, nil
}
