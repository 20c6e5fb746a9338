package registry

import (
	"fmt"
	"math/big"

	"liquiditySim/internal/config"
	"liquiditySim/internal/model"
	"liquiditySim/internal/source"
)

func newHistoricalReplay(cfg config.SourceConfig) (source.Source, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path to a replay file is required")
	}
	return source.LoadReplay(cfg.ID, cfg.Path, cfg.Pool)
}

type actionParams struct {
	Block          uint64 `mapstructure:"block"`
	Kind           string `mapstructure:"kind"`
	PositionID     string `mapstructure:"position-id"`
	TickLower      int32  `mapstructure:"tick-lower"`
	TickUpper      int32  `mapstructure:"tick-upper"`
	PriceLower     string `mapstructure:"price-lower"`
	PriceUpper     string `mapstructure:"price-upper"`
	Amount0        string `mapstructure:"amount0"`
	Amount1        string `mapstructure:"amount1"`
	Liquidity      string `mapstructure:"liquidity"`
	Fraction       string `mapstructure:"fraction"`
	ZeroForOne     bool   `mapstructure:"zero-for-one"`
	Amount         string `mapstructure:"amount"`
	SqrtPriceLimit string `mapstructure:"sqrt-price-limit"`
}

func (p actionParams) action() (source.Action, error) {
	a := source.Action{
		Block:      p.Block,
		Kind:       model.TxKind(p.Kind),
		PositionID: p.PositionID,
		TickLower:  p.TickLower,
		TickUpper:  p.TickUpper,
		ZeroForOne: p.ZeroForOne,
	}
	var err error
	if a.PriceLower, err = parseDecimal("price-lower", p.PriceLower); err != nil {
		return a, err
	}
	if a.PriceUpper, err = parseDecimal("price-upper", p.PriceUpper); err != nil {
		return a, err
	}
	if a.Fraction, err = parseDecimal("fraction", p.Fraction); err != nil {
		return a, err
	}
	for _, f := range []struct {
		name  string
		value string
		dst   **big.Int
	}{
		{"amount0", p.Amount0, &a.Amount0},
		{"amount1", p.Amount1, &a.Amount1},
		{"liquidity", p.Liquidity, &a.Liquidity},
		{"amount", p.Amount, &a.Amount},
		{"sqrt-price-limit", p.SqrtPriceLimit, &a.SqrtPriceLimit},
	} {
		if *f.dst, err = ParseAmount(f.name, f.value); err != nil {
			return a, err
		}
	}
	return a, nil
}

func newScheduled(cfg config.SourceConfig) (source.Source, error) {
	var params struct {
		Actions []actionParams `mapstructure:"actions"`
	}
	if err := decodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	actions := make([]source.Action, 0, len(params.Actions))
	for i, p := range params.Actions {
		a, err := p.action()
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		actions = append(actions, a)
	}
	return source.NewScheduled(cfg.ID, cfg.Agent, cfg.Pool, actions)
}

func newSpotTracker(cfg config.SourceConfig) (source.Source, error) {
	var params struct {
		Width   string `mapstructure:"width"`
		Amount0 string `mapstructure:"amount0"`
		Amount1 string `mapstructure:"amount1"`
	}
	if err := decodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	width, err := parseDecimal("width", params.Width)
	if err != nil {
		return nil, err
	}
	a0, err := ParseAmount("amount0", params.Amount0)
	if err != nil {
		return nil, err
	}
	a1, err := ParseAmount("amount1", params.Amount1)
	if err != nil {
		return nil, err
	}
	return source.NewSpotTracker(cfg.ID, source.SpotTrackerParams{
		Agent: cfg.Agent, Pool: cfg.Pool, Width: width, Amount0: a0, Amount1: a1,
	})
}

func newThresholdSwapper(cfg config.SourceConfig) (source.Source, error) {
	var params struct {
		Threshold string `mapstructure:"threshold"`
		Above     bool   `mapstructure:"above"`
		Amount    string `mapstructure:"amount"`
	}
	if err := decodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	threshold, err := parseDecimal("threshold", params.Threshold)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	return source.NewThresholdSwapper(cfg.ID, source.ThresholdSwapperParams{
		Agent: cfg.Agent, Pool: cfg.Pool, Threshold: threshold, Above: params.Above, Amount: amount,
	})
}

func newArbitrageur(cfg config.SourceConfig) (source.Source, error) {
	var params struct {
		Tolerance string `mapstructure:"tolerance"`
	}
	if err := decodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	tolerance, err := parseDecimal("tolerance", params.Tolerance)
	if err != nil {
		return nil, err
	}
	return source.NewArbitrageur(cfg.ID, source.ArbitrageurParams{
		Agent: cfg.Agent, Pool: cfg.Pool, Tolerance: tolerance,
	})
}
