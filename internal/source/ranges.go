package source

import (
	"github.com/shopspring/decimal"

	"liquiditySim/internal/fixedpoint"
	"liquiditySim/internal/pool"
	"liquiditySim/internal/simerr"
)

// UsableTicks are the outermost ticks aligned to spacing.
func UsableTicks(spacing int32) (int32, int32) {
	return fixedpoint.MinTick / spacing * spacing, fixedpoint.MaxTick / spacing * spacing
}

func floorTick(tick, spacing int32) int32 {
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

func ceilTick(tick, spacing int32) int32 {
	f := floorTick(tick, spacing)
	if f == tick {
		return f
	}
	return f + spacing
}

// RangeTicks turns a price range, in whole token1 per whole token0, into
// spacing-aligned ticks that contain it. The range is never empty.
func RangeTicks(p pool.Reader, lower, upper decimal.Decimal) (int32, int32, error) {
	const op = "price range"
	if !lower.IsPositive() || !upper.GreaterThan(lower) {
		return 0, 0, simerr.Newf(simerr.ClassValidation, op, "%w: prices %s..%s", simerr.ErrInvalidRange, lower, upper)
	}
	cfg := p.Config()
	shift := int32(cfg.Decimals1) - int32(cfg.Decimals0)
	minTick, maxTick := UsableTicks(cfg.TickSpacing)

	tickLower, err := fixedpoint.PriceToTick(lower.Shift(shift))
	if err != nil {
		return 0, 0, err
	}
	tickUpper, err := fixedpoint.PriceToTick(upper.Shift(shift))
	if err != nil {
		return 0, 0, err
	}
	tickLower = floorTick(tickLower, cfg.TickSpacing)
	tickUpper = ceilTick(tickUpper, cfg.TickSpacing)
	if tickLower < minTick {
		tickLower = minTick
	}
	if tickUpper > maxTick {
		tickUpper = maxTick
	}
	if tickUpper <= tickLower {
		tickUpper = tickLower + cfg.TickSpacing
		if tickUpper > maxTick {
			tickLower, tickUpper = maxTick-cfg.TickSpacing, maxTick
		}
	}
	return tickLower, tickUpper, nil
}
