package dex

import (
	"fmt"

	"liquiditySim/internal/model"
)

// ToReplayRecord maps a decoded pool event onto the transaction that
// reproduces it against a simulated pool named poolID. The boolean is false
// for events with nothing to replay: swaps without an input leg and
// zero-liquidity burns, which only poke fee accounting on chain.
//
// Swaps replay as exact input of the leg the pool received, limited at the
// event's post-swap price. Mints and burns carry the explicit liquidity so
// the simulated position matches the on-chain one regardless of price drift.
func ToReplayRecord(poolID string, ev model.PoolEvent) (model.ReplayRecord, bool, error) {
	var (
		kind   model.TxKind
		agent  string
		params interface{}
	)
	positionID := model.PositionIDForRange(ev.TickLower, ev.TickUpper)

	switch ev.Name {
	case model.EventSwap:
		p := model.ReplaySwap{}
		switch {
		case ev.Amount0 != nil && ev.Amount0.Sign() > 0:
			p.ZeroForOne = true
			p.Amount = ev.Amount0.String()
		case ev.Amount1 != nil && ev.Amount1.Sign() > 0:
			p.Amount = ev.Amount1.String()
		default:
			return model.ReplayRecord{}, false, nil
		}
		if ev.SqrtPriceX96 != nil {
			p.SqrtPriceLimit = ev.SqrtPriceX96.String()
		}
		kind, agent, params = model.KindSwap, ev.Sender, p
	case model.EventMint:
		if ev.Amount == nil || ev.Amount.Sign() == 0 {
			return model.ReplayRecord{}, false, nil
		}
		kind, agent = model.KindMint, ev.Owner
		params = model.ReplayMint{
			PositionID: positionID,
			TickLower:  ev.TickLower,
			TickUpper:  ev.TickUpper,
			Liquidity:  ev.Amount.String(),
		}
	case model.EventBurn:
		if ev.Amount == nil || ev.Amount.Sign() == 0 {
			return model.ReplayRecord{}, false, nil
		}
		kind, agent = model.KindBurn, ev.Owner
		params = model.ReplayBurn{PositionID: positionID, Liquidity: ev.Amount.String()}
	case model.EventCollect:
		kind, agent = model.KindCollect, ev.Owner
		params = model.ReplayCollect{PositionID: positionID}
	default:
		return model.ReplayRecord{}, false, fmt.Errorf("unsupported event %q", ev.Name)
	}

	rec, err := model.NewReplayRecord(ev.BlockNumber, agent, kind, poolID, params)
	if err != nil {
		return model.ReplayRecord{}, false, err
	}
	rec.TxHash = ev.TxHash
	rec.LogIndex = ev.LogIndex
	return rec, true, nil
}
