package sim

import (
	"math/big"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/metrics"
	"liquiditySim/internal/pool"
	"liquiditySim/internal/spot"
)

// blockView is the read-only state handed to sources for one block.
type blockView struct {
	from     uint64
	block    uint64
	env      *Env
	recorder *metrics.Recorder
}

func (v *blockView) Block() uint64 { return v.block }

func (v *blockView) From() uint64 { return v.from }

func (v *blockView) Pool(id string) (pool.Reader, bool) {
	p, ok := v.env.pools[id]
	if !ok {
		return nil, false
	}
	return p, true
}

func (v *blockView) Balance(agent, token string) *big.Int {
	return v.env.ledger.Balance(agent, token)
}

func (v *blockView) Spot(base, quote string) (decimal.Decimal, bool) {
	if v.env.spot == nil {
		return decimal.Zero, false
	}
	return spot.Chain{v.env.spot}.Price(v.block, base, quote)
}

func (v *blockView) Metric(key string) (decimal.Decimal, bool) {
	return v.recorder.Latest(key)
}
