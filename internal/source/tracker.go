package source

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
	"liquiditySim/internal/simerr"
)

// SpotTrackerParams configure a liquidity provider that keeps one position
// centred on the pool price.
type SpotTrackerParams struct {
	Agent string
	Pool  string
	// Width is the half-width of the range as a fraction of the price.
	Width   decimal.Decimal
	Amount0 *big.Int
	Amount1 *big.Int
}

// SpotTracker mints a position around the pool price and re-centres it by
// burning, collecting and minting again once the pool price leaves it. The
// old position stays "retiring" until the pool shows it burned, so a skipped
// burn is retried instead of orphaned.
type SpotTracker struct {
	id       string
	params   SpotTrackerParams
	seq      int
	retiring string
}

func NewSpotTracker(id string, params SpotTrackerParams) (*SpotTracker, error) {
	if params.Agent == "" || params.Pool == "" {
		return nil, fmt.Errorf("spot tracker %s: agent and pool are required", id)
	}
	if !params.Width.IsPositive() || !params.Width.LessThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("spot tracker %s: width %s outside (0, 1)", id, params.Width)
	}
	if params.Amount0 == nil && params.Amount1 == nil {
		return nil, fmt.Errorf("spot tracker %s: amount0 or amount1 is required", id)
	}
	return &SpotTracker{id: id, params: params}, nil
}

func (s *SpotTracker) ID() string { return s.id }

func (s *SpotTracker) positionID() string {
	return fmt.Sprintf("%s-%d", s.id, s.seq)
}

func (s *SpotTracker) exit(id string) []model.TxRequest {
	return []model.TxRequest{
		model.NewBurn(s.params.Pool, s.params.Agent, model.BurnParams{PositionID: id, Fraction: decimal.NewFromInt(1)}),
		model.NewCollect(s.params.Pool, s.params.Agent, model.CollectParams{PositionID: id}),
	}
}

func (s *SpotTracker) ForBlock(_ context.Context, _ uint64, view StateView) ([]model.TxRequest, error) {
	const op = "spot tracker"
	p, ok := view.Pool(s.params.Pool)
	if !ok {
		return nil, simerr.Newf(simerr.ClassSource, op, "%w: %s", simerr.ErrUnknownPool, s.params.Pool)
	}

	var out []model.TxRequest
	if s.retiring != "" {
		if old, ok := p.Position(s.params.Agent, s.retiring); ok && !old.Liquidity.IsZero() {
			out = append(out, s.exit(s.retiring)...)
		} else {
			s.retiring = ""
		}
	}

	pos, found := p.Position(s.params.Agent, s.positionID())
	switch {
	case found && !pos.Liquidity.IsZero():
		if p.Tick() >= pos.TickLower && p.Tick() < pos.TickUpper {
			return out, nil
		}
		if s.retiring != "" {
			// one exit at a time
			return out, nil
		}
		out = append(out, s.exit(pos.ID)...)
		s.retiring = pos.ID
		s.seq++
	case found:
		// emptied elsewhere; ids are never reused
		s.seq++
	}

	price := p.DexSpot()
	one := decimal.NewFromInt(1)
	lower, upper, err := RangeTicks(p, price.Mul(one.Sub(s.params.Width)), price.Mul(one.Add(s.params.Width)))
	if err != nil {
		return nil, simerr.New(simerr.ClassSource, op, err)
	}
	out = append(out, model.NewMint(s.params.Pool, s.params.Agent, model.MintParams{
		PositionID:     s.positionID(),
		TickLower:      lower,
		TickUpper:      upper,
		Amount0Desired: s.params.Amount0,
		Amount1Desired: s.params.Amount1,
	}))
	return out, nil
}
