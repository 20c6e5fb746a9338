package sim

import (
	"math/big"

	"github.com/holiman/uint256"

	"liquiditySim/internal/fixedpoint"
	"liquiditySim/internal/model"
	"liquiditySim/internal/pool"
	"liquiditySim/internal/simerr"
	"liquiditySim/internal/wallet"
)

// settlement is what a planned operation does to the issuing agent's wallet
// once committed.
type settlement struct {
	amount0 *big.Int
	amount1 *big.Int
	commit  func() error
}

func neg(v *uint256.Int) *big.Int {
	return new(big.Int).Neg(v.ToBig())
}

func optional(op string, v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return nil, nil
	}
	return fixedpoint.FromBig(op, v)
}

// plan validates tx against the pool without mutating anything.
func plan(p *pool.Pool, tx model.TxRequest) (settlement, error) {
	op := string(tx.Kind)
	switch tx.Kind {
	case model.KindMint:
		a0, err := optional(op, tx.Mint.Amount0Desired)
		if err != nil {
			return settlement{}, err
		}
		a1, err := optional(op, tx.Mint.Amount1Desired)
		if err != nil {
			return settlement{}, err
		}
		liq, err := optional(op, tx.Mint.Liquidity)
		if err != nil {
			return settlement{}, err
		}
		mp, err := p.PlanMint(pool.MintParams{
			Owner:          tx.Agent,
			PositionID:     tx.Mint.PositionID,
			TickLower:      tx.Mint.TickLower,
			TickUpper:      tx.Mint.TickUpper,
			Amount0Desired: a0,
			Amount1Desired: a1,
			Liquidity:      liq,
		})
		if err != nil {
			return settlement{}, err
		}
		return settlement{
			amount0: neg(mp.Amount0),
			amount1: neg(mp.Amount1),
			commit:  func() error { return p.CommitMint(mp) },
		}, nil

	case model.KindBurn:
		liq, err := optional(op, tx.Burn.Liquidity)
		if err != nil {
			return settlement{}, err
		}
		bp, err := p.PlanBurn(pool.BurnParams{
			Owner:      tx.Agent,
			PositionID: tx.Burn.PositionID,
			Fraction:   tx.Burn.Fraction,
			Liquidity:  liq,
		})
		if err != nil {
			return settlement{}, err
		}
		return settlement{
			amount0: bp.Amount0.ToBig(),
			amount1: bp.Amount1.ToBig(),
			commit:  func() error { return p.CommitBurn(bp) },
		}, nil

	case model.KindCollect:
		cp, err := p.PlanCollect(pool.CollectParams{Owner: tx.Agent, PositionID: tx.Collect.PositionID})
		if err != nil {
			return settlement{}, err
		}
		return settlement{
			amount0: cp.Amount0.ToBig(),
			amount1: cp.Amount1.ToBig(),
			commit:  func() error { return p.CommitCollect(cp) },
		}, nil

	case model.KindSwap:
		limit, err := optional(op, tx.Swap.SqrtPriceLimit)
		if err != nil {
			return settlement{}, err
		}
		sp, err := p.PlanSwap(pool.SwapParams{
			ZeroForOne:      tx.Swap.ZeroForOne,
			AmountSpecified: tx.Swap.AmountSpecified,
			SqrtPriceLimit:  limit,
		})
		if err != nil {
			return settlement{}, err
		}
		in, out := neg(sp.AmountIn), sp.AmountOut.ToBig()
		s := settlement{amount0: out, amount1: in, commit: func() error { return p.CommitSwap(sp) }}
		if tx.Swap.ZeroForOne {
			s.amount0, s.amount1 = in, out
		}
		return s, nil
	}
	return settlement{}, simerr.Validation("apply", "unknown tx kind %q", tx.Kind)
}

// applyTx runs one transaction: validate, plan, settle the wallet, commit.
// Any error before commit leaves pools and wallets untouched.
func (c *Clock) applyTx(tx model.TxRequest, out *model.TxOutcome) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	p, ok := c.env.pools[tx.Pool]
	if !ok {
		return simerr.Newf(simerr.ClassValidation, "apply", "%w: %s", simerr.ErrUnknownPool, tx.Pool)
	}

	s, err := plan(p, tx)
	if err != nil {
		return err
	}

	funded := c.env.ledger.Has(tx.Agent)
	if funded {
		deltas := []wallet.Delta{
			{Token: p.Token0(), Amount: s.amount0},
			{Token: p.Token1(), Amount: s.amount1},
		}
		gas := c.env.cfg.GasFee
		if gas != nil && gas.Sign() > 0 {
			deltas = append(deltas, wallet.Delta{Token: c.env.cfg.GasToken, Amount: new(big.Int).Neg(gas)})
		}
		if err := c.env.ledger.Apply(tx.Agent, deltas); err != nil {
			return err
		}
	}

	if err := s.commit(); err != nil {
		// the wallet has already moved; only a corrupted plan gets here
		return simerr.New(simerr.ClassInvariantViolation, "commit "+string(tx.Kind), err)
	}

	out.Amount0 = s.amount0.String()
	out.Amount1 = s.amount1.String()
	if funded {
		c.env.chargeGas(tx.Agent)
		if gas := c.env.cfg.GasFee; gas != nil && gas.Sign() > 0 {
			out.Gas = gas.String()
		}
	}
	return nil
}
