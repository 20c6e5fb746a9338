package sim

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquiditySim/internal/config"
	"liquiditySim/internal/registry"
	"liquiditySim/internal/spot"
)

// FromConfig builds an Env from a loaded run configuration, resolving pool
// protocols and source kinds through the registry.
func FromConfig(cfg config.Config, logger *zap.Logger) (*Env, error) {
	gasFee, err := registry.ParseAmount("gas-fee", cfg.GasFee)
	if err != nil {
		return nil, err
	}
	env, err := NewEnv(Config{
		RunID:            cfg.RunID,
		Start:            cfg.Start,
		End:              cfg.End,
		Step:             cfg.Step,
		Numeraire:        cfg.Numeraire,
		GasFee:           gasFee,
		GasToken:         cfg.GasToken,
		AbortOnTxFailure: cfg.AbortOnTxFailure,
		CheckInvariants:  cfg.CheckInvariants,
		ParallelSources:  cfg.ParallelSources,
		MaxParallel:      cfg.MaxParallel,
	}, logger)
	if err != nil {
		return nil, err
	}

	for _, pc := range cfg.Pools {
		p, err := registry.NewPool(pc)
		if err != nil {
			return nil, err
		}
		if err := env.AddPool(p); err != nil {
			return nil, err
		}
	}

	for _, ac := range cfg.Agents {
		balances := make(map[string]*big.Int, len(ac.Wallet))
		for _, h := range ac.Wallet {
			amount, err := registry.ParseAmount(h.Token+" balance", h.Amount)
			if err != nil {
				return nil, fmt.Errorf("agent %s: %w", ac.Name, err)
			}
			if amount == nil {
				amount = new(big.Int)
			}
			if prev, ok := balances[h.Token]; ok {
				amount.Add(amount, prev)
			}
			balances[h.Token] = amount
		}
		if err := env.AddAgent(ac.Name, balances); err != nil {
			return nil, err
		}
	}

	for _, sc := range cfg.Sources {
		src, err := registry.NewSource(sc)
		if err != nil {
			return nil, err
		}
		if err := env.AddSource(src); err != nil {
			return nil, err
		}
	}

	prices, err := SpotFromConfig(cfg.Spot)
	if err != nil {
		return nil, err
	}
	if prices != nil {
		env.SetSpot(prices)
	}
	return env, nil
}

// SpotFromConfig chains the configured reference price sources. It returns
// nil when none are configured.
func SpotFromConfig(cfg config.SpotConfig) (spot.Source, error) {
	var chain spot.Chain
	if len(cfg.Prices) > 0 {
		table := make(map[string]decimal.Decimal, len(cfg.Prices))
		for _, pc := range cfg.Prices {
			price, err := decimal.NewFromString(pc.Price)
			if err != nil {
				return nil, fmt.Errorf("spot price %s: %w", pc.Pair, err)
			}
			table[pc.Pair] = price
		}
		static, err := spot.NewStatic(table)
		if err != nil {
			return nil, err
		}
		chain = append(chain, static)
	}
	if cfg.Path != "" {
		hist, err := spot.LoadHistorical(cfg.Path)
		if err != nil {
			return nil, err
		}
		chain = append(chain, hist)
	}
	for _, gc := range cfg.GBM {
		initial, err := decimal.NewFromString(gc.Initial)
		if err != nil {
			return nil, fmt.Errorf("gbm %s/%s initial: %w", gc.Base, gc.Quote, err)
		}
		g, err := spot.NewGBM(spot.GBMParams{
			Base:       gc.Base,
			Quote:      gc.Quote,
			StartBlock: gc.StartBlock,
			Initial:    initial,
			Drift:      gc.Drift,
			Volatility: gc.Volatility,
			Seed:       gc.Seed,
		})
		if err != nil {
			return nil, err
		}
		chain = append(chain, g)
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return chain, nil
}
