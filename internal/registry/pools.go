package registry

import (
	"github.com/holiman/uint256"

	"liquiditySim/internal/config"
	"liquiditySim/internal/fixedpoint"
	"liquiditySim/internal/pool"
	"liquiditySim/internal/simerr"
)

func newUniswapV3(cfg config.PoolConfig) (*pool.Pool, error) {
	const op = "new pool"
	spacing := cfg.TickSpacing
	if spacing == 0 {
		s, ok := pool.DefaultTickSpacing(cfg.FeePips)
		if !ok {
			return nil, simerr.Validation(op, "pool %s: no default tick spacing for fee %d, set tick-spacing", cfg.ID, cfg.FeePips)
		}
		spacing = s
	}

	var (
		sqrtPrice *uint256.Int
		err       error
	)
	switch {
	case cfg.InitialTick != nil:
		sqrtPrice, err = fixedpoint.TickToSqrtPrice(*cfg.InitialTick)
	case cfg.InitialPrice != "":
		price, perr := parseDecimal("initial-price", cfg.InitialPrice)
		if perr != nil {
			return nil, simerr.Validation(op, "pool %s: %v", cfg.ID, perr)
		}
		sqrtPrice, err = fixedpoint.PriceToSqrtPrice(price.Shift(int32(cfg.Decimals1) - int32(cfg.Decimals0)))
	default:
		return nil, simerr.Validation(op, "pool %s: initial-price or initial-tick is required", cfg.ID)
	}
	if err != nil {
		return nil, err
	}

	return pool.New(pool.Config{
		ID:               cfg.ID,
		Token0:           cfg.Token0,
		Token1:           cfg.Token1,
		Decimals0:        cfg.Decimals0,
		Decimals1:        cfg.Decimals1,
		FeePips:          cfg.FeePips,
		TickSpacing:      spacing,
		InitialSqrtPrice: sqrtPrice,
	})
}
