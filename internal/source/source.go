package source

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/model"
	"liquiditySim/internal/pool"
)

// StateView is the read-only world a source sees while deciding.
type StateView interface {
	Block() uint64
	// From is the first block of the window the current step covers. With a
	// step of one it equals Block.
	From() uint64
	Pool(id string) (pool.Reader, bool)
	Balance(agent, token string) *big.Int
	// Spot is the external reference price of base in quote, whole units.
	Spot(base, quote string) (decimal.Decimal, bool)
	// Metric is the latest recorded value of a metric key.
	Metric(key string) (decimal.Decimal, bool)
}

// Source produces the transactions of one block. Sources must not mutate
// pools or wallets: everything they want done goes through the returned
// requests.
type Source interface {
	ID() string
	ForBlock(ctx context.Context, block uint64, view StateView) ([]model.TxRequest, error)
}

// window returns the first block a step ending at block covers. A nil view
// covers block alone.
func window(block uint64, view StateView) uint64 {
	if view == nil {
		return block
	}
	if from := view.From(); from <= block {
		return from
	}
	return block
}

// DecisionFunc is caller-supplied strategy logic.
type DecisionFunc func(ctx context.Context, block uint64, view StateView) ([]model.TxRequest, error)

// Policy adapts a DecisionFunc into a Source.
type Policy struct {
	id     string
	decide DecisionFunc
}

func NewPolicy(id string, decide DecisionFunc) *Policy {
	return &Policy{id: id, decide: decide}
}

func (p *Policy) ID() string { return p.id }

func (p *Policy) ForBlock(ctx context.Context, block uint64, view StateView) ([]model.TxRequest, error) {
	if p.decide == nil {
		return nil, nil
	}
	return p.decide(ctx, block, view)
}
