package spot

import (
	"github.com/shopspring/decimal"

	"liquiditySim/internal/pool"
)

// Pools derives prices from the simulated pools' own dex spot.
type Pools []pool.Reader

func (ps Pools) Price(_ uint64, base, quote string) (decimal.Decimal, bool) {
	for _, p := range ps {
		spot := p.DexSpot()
		switch {
		case p.Token(0) == base && p.Token(1) == quote:
			return spot, true
		case p.Token(0) == quote && p.Token(1) == base && !spot.IsZero():
			return decimal.NewFromInt(1).Div(spot), true
		}
	}
	return decimal.Zero, false
}
