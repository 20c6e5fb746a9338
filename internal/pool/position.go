package pool

import (
	"github.com/holiman/uint256"

	"liquiditySim/internal/fixedpoint"
	"liquiditySim/internal/simerr"
)

// PositionKey identifies a position. The same agent may hold several
// positions in one pool under different ids.
type PositionKey struct {
	Owner string
	ID    string
}

type Position struct {
	Owner     string
	ID        string
	TickLower int32
	TickUpper int32
	Liquidity *uint256.Int

	FeeGrowthInside0Last *uint256.Int
	FeeGrowthInside1Last *uint256.Int

	// TokensOwed holds settled but uncollected fees.
	TokensOwed0 *uint256.Int
	TokensOwed1 *uint256.Int

	// Collected is the running total paid out by collect.
	Collected0 *uint256.Int
	Collected1 *uint256.Int
}

func newPosition(owner, id string, lower, upper int32) *Position {
	return &Position{
		Owner:                owner,
		ID:                   id,
		TickLower:            lower,
		TickUpper:            upper,
		Liquidity:            new(uint256.Int),
		FeeGrowthInside0Last: new(uint256.Int),
		FeeGrowthInside1Last: new(uint256.Int),
		TokensOwed0:          new(uint256.Int),
		TokensOwed1:          new(uint256.Int),
		Collected0:           new(uint256.Int),
		Collected1:           new(uint256.Int),
	}
}

func (pos *Position) clone() Position {
	return Position{
		Owner:                pos.Owner,
		ID:                   pos.ID,
		TickLower:            pos.TickLower,
		TickUpper:            pos.TickUpper,
		Liquidity:            new(uint256.Int).Set(pos.Liquidity),
		FeeGrowthInside0Last: new(uint256.Int).Set(pos.FeeGrowthInside0Last),
		FeeGrowthInside1Last: new(uint256.Int).Set(pos.FeeGrowthInside1Last),
		TokensOwed0:          new(uint256.Int).Set(pos.TokensOwed0),
		TokensOwed1:          new(uint256.Int).Set(pos.TokensOwed1),
		Collected0:           new(uint256.Int).Set(pos.Collected0),
		Collected1:           new(uint256.Int).Set(pos.Collected1),
	}
}

// Position returns a copy of a position.
func (p *Pool) Position(owner, id string) (Position, bool) {
	pos, ok := p.positions[PositionKey{Owner: owner, ID: id}]
	if !ok {
		return Position{}, false
	}
	return pos.clone(), true
}

func (p *Pool) lookup(op, owner, id string) (*Position, error) {
	pos, ok := p.positions[PositionKey{Owner: owner, ID: id}]
	if !ok {
		return nil, simerr.Newf(simerr.ClassValidation, op, "%w: pool %s owner %s id %q", simerr.ErrPositionNotFound, p.cfg.ID, owner, id)
	}
	return pos, nil
}

// pendingFees returns fees accrued since the position's last checkpoint
// together with the current fee growth inside its range.
func (p *Pool) pendingFees(pos *Position) (fees0, fees1, inside0, inside1 *uint256.Int, err error) {
	inside0, inside1 = p.ticks.FeeGrowthInside(pos.TickLower, pos.TickUpper, p.tick, p.feeGrowthGlobal0, p.feeGrowthGlobal1)
	fees0, err = fixedpoint.MulDiv(new(uint256.Int).Sub(inside0, pos.FeeGrowthInside0Last), pos.Liquidity, fixedpoint.Q128)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	fees1, err = fixedpoint.MulDiv(new(uint256.Int).Sub(inside1, pos.FeeGrowthInside1Last), pos.Liquidity, fixedpoint.Q128)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return fees0, fees1, inside0, inside1, nil
}

// settle moves accrued fees into TokensOwed and advances the checkpoints.
func (p *Pool) settle(pos *Position) error {
	fees0, fees1, inside0, inside1, err := p.pendingFees(pos)
	if err != nil {
		return err
	}
	pos.TokensOwed0 = new(uint256.Int).Add(pos.TokensOwed0, fees0)
	pos.TokensOwed1 = new(uint256.Int).Add(pos.TokensOwed1, fees1)
	pos.FeeGrowthInside0Last = inside0
	pos.FeeGrowthInside1Last = inside1
	return nil
}

// PositionStatus values a position at the current price.
type PositionStatus struct {
	Position
	Amount0 *uint256.Int
	Amount1 *uint256.Int
	// Uncollected includes settled TokensOwed and fees still pending.
	Uncollected0 *uint256.Int
	Uncollected1 *uint256.Int
}

func (p *Pool) PositionStatus(owner, id string) (PositionStatus, error) {
	pos, err := p.lookup("position status", owner, id)
	if err != nil {
		return PositionStatus{}, err
	}
	lower, upper, err := p.rangePrices(pos.TickLower, pos.TickUpper)
	if err != nil {
		return PositionStatus{}, err
	}
	a0, a1, err := fixedpoint.AmountsFromLiquidity(p.sqrtPrice, lower, upper, pos.Liquidity, false)
	if err != nil {
		return PositionStatus{}, err
	}
	fees0, fees1, _, _, err := p.pendingFees(pos)
	if err != nil {
		return PositionStatus{}, err
	}
	return PositionStatus{
		Position:     pos.clone(),
		Amount0:      a0,
		Amount1:      a1,
		Uncollected0: fees0.Add(fees0, pos.TokensOwed0),
		Uncollected1: fees1.Add(fees1, pos.TokensOwed1),
	}, nil
}

// RemovePosition drops a fully burned and collected position.
func (p *Pool) RemovePosition(owner, id string) error {
	pos, err := p.lookup("remove position", owner, id)
	if err != nil {
		return err
	}
	if !pos.Liquidity.IsZero() || !pos.TokensOwed0.IsZero() || !pos.TokensOwed1.IsZero() {
		return simerr.Validation("remove position", "pool %s position %s/%s still holds liquidity or owed tokens", p.cfg.ID, owner, id)
	}
	delete(p.positions, PositionKey{Owner: owner, ID: id})
	p.version++
	return nil
}

func (p *Pool) rangePrices(lower, upper int32) (*uint256.Int, *uint256.Int, error) {
	sqrtLower, err := fixedpoint.TickToSqrtPrice(lower)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := fixedpoint.TickToSqrtPrice(upper)
	if err != nil {
		return nil, nil, err
	}
	return sqrtLower, sqrtUpper, nil
}
