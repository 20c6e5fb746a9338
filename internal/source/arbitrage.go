package source

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"liquiditySim/internal/fixedpoint"
	"liquiditySim/internal/model"
	"liquiditySim/internal/simerr"
)

// ArbitrageurParams configure the synthetic market. Tolerance is the
// relative deviation between dex spot and the reference price that is left
// alone.
type ArbitrageurParams struct {
	Agent     string
	Pool      string
	Tolerance decimal.Decimal
}

// Arbitrageur swaps the pool back to the reference price. Its agent is
// normally not a wallet holder, so it trades as an unfunded market actor.
type Arbitrageur struct {
	id     string
	params ArbitrageurParams
}

func NewArbitrageur(id string, params ArbitrageurParams) (*Arbitrageur, error) {
	if params.Pool == "" {
		return nil, fmt.Errorf("arbitrageur %s: pool is required", id)
	}
	if params.Agent == "" {
		params.Agent = id
	}
	if params.Tolerance.IsNegative() {
		return nil, fmt.Errorf("arbitrageur %s: tolerance must not be negative", id)
	}
	return &Arbitrageur{id: id, params: params}, nil
}

func (a *Arbitrageur) ID() string { return a.id }

func (a *Arbitrageur) ForBlock(_ context.Context, _ uint64, view StateView) ([]model.TxRequest, error) {
	const op = "arbitrageur"
	p, ok := view.Pool(a.params.Pool)
	if !ok {
		return nil, simerr.Newf(simerr.ClassSource, op, "%w: %s", simerr.ErrUnknownPool, a.params.Pool)
	}
	ref, ok := view.Spot(p.Token(0), p.Token(1))
	if !ok || !ref.IsPositive() {
		return nil, nil
	}
	spot := p.DexSpot()
	deviation := spot.Sub(ref).Abs().Div(ref)
	if deviation.LessThanOrEqual(a.params.Tolerance) {
		return nil, nil
	}

	cfg := p.Config()
	target, err := fixedpoint.PriceToSqrtPrice(ref.Shift(int32(cfg.Decimals1) - int32(cfg.Decimals0)))
	if err != nil {
		// the reference is outside what the pool can represent; push as far as possible
		if simerr.ClassOf(err) != simerr.ClassPriceOutOfBounds {
			return nil, simerr.New(simerr.ClassSource, op, err)
		}
		if ref.GreaterThan(spot) {
			target = new(uint256.Int).Sub(fixedpoint.MaxSqrtRatio, uint256.NewInt(1))
		} else {
			target = new(uint256.Int).AddUint64(fixedpoint.MinSqrtRatio, 1)
		}
	}
	if !target.Gt(fixedpoint.MinSqrtRatio) {
		target = new(uint256.Int).AddUint64(fixedpoint.MinSqrtRatio, 1)
	}
	current := p.SqrtPrice()
	if target.Eq(current) {
		return nil, nil
	}
	return []model.TxRequest{model.NewSwap(a.params.Pool, a.params.Agent, model.SwapParams{
		ZeroForOne:      target.Lt(current),
		AmountSpecified: fixedpoint.MaxUint128.ToBig(),
		SqrtPriceLimit:  target.ToBig(),
	})}, nil
}
