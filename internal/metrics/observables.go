package metrics

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"liquiditySim/internal/pool"
)

// Metric names.
const (
	DexSpot          = "dex_spot"
	Liquidity        = "liquidity"
	CurrentTick      = "current_tick"
	SqrtPrice        = "sqrt_price"
	FeeGrowthGlobal  = "fee_growth_global"
	Volume           = "volume"
	Fees             = "fees"
	SwapCount        = "swap_count"
	WalletHoldings   = "wallet_holdings"
	NetPosition      = "net_position"
	GasSpent         = "gas_spent"
	TokenAmount      = "token_amount"
	FeesNotCollected = "fees_not_collected"
	FeesCollected    = "fees_collected"
)

// DefaultDecimals applies to tokens no pool declares, such as a gas token.
const DefaultDecimals uint8 = 18

// Tokens maps token symbols to their decimals.
type Tokens map[string]uint8

// Human converts a raw amount into whole-token units.
func (t Tokens) Human(token string, raw *big.Int) decimal.Decimal {
	d, ok := t[token]
	if !ok {
		d = DefaultDecimals
	}
	return decimal.NewFromBigInt(raw, -int32(d))
}

func (t Tokens) human256(token string, raw *uint256.Int) decimal.Decimal {
	return t.Human(token, raw.ToBig())
}

func raw(v *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v.ToBig(), 0)
}

// Valuer prices an amount of a token in the numeraire.
type Valuer interface {
	Value(block uint64, token string, amount decimal.Decimal) (decimal.Decimal, error)
}

// PoolObservable reports pool-level state.
type PoolObservable struct {
	Pool   pool.Reader
	Tokens Tokens
}

func (o PoolObservable) Observe(_ uint64, emit EmitFunc) error {
	p := o.Pool
	id := p.ID()
	t0, t1 := p.Token(0), p.Token(1)

	emit(PoolKey(id, DexSpot), p.DexSpot())
	emit(PoolKey(id, Liquidity), raw(p.Liquidity()))
	emit(PoolKey(id, CurrentTick), decimal.NewFromInt(int64(p.Tick())))
	emit(PoolKey(id, SqrtPrice), raw(p.SqrtPrice()))

	g0, g1 := p.FeeGrowthGlobal()
	emit(PoolKey(id, FeeGrowthGlobal).Token(t0), raw(g0))
	emit(PoolKey(id, FeeGrowthGlobal).Token(t1), raw(g1))

	stats := p.Stats()
	emit(PoolKey(id, Volume).Token(t0), o.Tokens.Human(t0, stats.Volume0))
	emit(PoolKey(id, Volume).Token(t1), o.Tokens.Human(t1, stats.Volume1))
	emit(PoolKey(id, Fees).Token(t0), o.Tokens.Human(t0, stats.Fees0))
	emit(PoolKey(id, Fees).Token(t1), o.Tokens.Human(t1, stats.Fees1))
	emit(PoolKey(id, SwapCount), decimal.NewFromInt(int64(stats.Swaps)))
	return nil
}

// Balances is the read side of the wallet ledger.
type Balances interface {
	Tokens(agent string) []string
	Balance(agent, token string) *big.Int
}

// AgentObservable reports an agent's wallet, positions and their value.
type AgentObservable struct {
	Agent  string
	Wallet Balances
	Pools  []pool.Reader
	Tokens Tokens
	// Valuer may be nil, in which case net_position is not reported.
	Valuer   Valuer
	GasToken string
	GasSpent func(agent string) *big.Int
}

func (o AgentObservable) Observe(block uint64, emit EmitFunc) error {
	holdings := make(map[string]decimal.Decimal)
	add := func(token string, v decimal.Decimal) {
		holdings[token] = holdings[token].Add(v)
	}

	for _, token := range o.Wallet.Tokens(o.Agent) {
		amount := o.Tokens.Human(token, o.Wallet.Balance(o.Agent, token))
		emit(AgentKey(o.Agent, ScopeAll, WalletHoldings).Token(token), amount)
		add(token, amount)
	}
	if o.GasSpent != nil {
		emit(AgentKey(o.Agent, ScopeAll, GasSpent), o.Tokens.Human(o.GasToken, o.GasSpent(o.Agent)))
	}

	for _, p := range o.Pools {
		if err := o.observePool(p, emit, add); err != nil {
			return err
		}
	}

	if o.Valuer == nil {
		return nil
	}
	total := decimal.Zero
	for token, amount := range holdings {
		if amount.IsZero() {
			continue
		}
		v, err := o.Valuer.Value(block, token, amount)
		if err != nil {
			return fmt.Errorf("value %s holdings of %s: %w", token, o.Agent, err)
		}
		total = total.Add(v)
	}
	emit(AgentKey(o.Agent, ScopeAll, NetPosition), total)
	return nil
}

func (o AgentObservable) observePool(p pool.Reader, emit EmitFunc, add func(string, decimal.Decimal)) error {
	t0, t1 := p.Token(0), p.Token(1)
	liquidity := new(uint256.Int)
	amount0, amount1 := decimal.Zero, decimal.Zero
	owed0, owed1 := decimal.Zero, decimal.Zero
	collected0, collected1 := decimal.Zero, decimal.Zero
	found := false

	for _, pos := range p.Positions() {
		if pos.Owner != o.Agent {
			continue
		}
		found = true
		status, err := p.PositionStatus(pos.Owner, pos.ID)
		if err != nil {
			return fmt.Errorf("position %s/%s in %s: %w", pos.Owner, pos.ID, p.ID(), err)
		}
		liquidity.Add(liquidity, status.Liquidity)
		amount0 = amount0.Add(o.Tokens.human256(t0, status.Amount0))
		amount1 = amount1.Add(o.Tokens.human256(t1, status.Amount1))
		owed0 = owed0.Add(o.Tokens.human256(t0, status.Uncollected0))
		owed1 = owed1.Add(o.Tokens.human256(t1, status.Uncollected1))
		collected0 = collected0.Add(o.Tokens.human256(t0, status.Collected0))
		collected1 = collected1.Add(o.Tokens.human256(t1, status.Collected1))
	}
	if !found {
		return nil
	}

	scope := p.ID()
	emit(AgentKey(o.Agent, scope, Liquidity), raw(liquidity))
	emit(AgentKey(o.Agent, scope, TokenAmount).Token(t0), amount0)
	emit(AgentKey(o.Agent, scope, TokenAmount).Token(t1), amount1)
	emit(AgentKey(o.Agent, scope, FeesNotCollected).Token(t0), owed0)
	emit(AgentKey(o.Agent, scope, FeesNotCollected).Token(t1), owed1)
	emit(AgentKey(o.Agent, scope, FeesCollected).Token(t0), collected0)
	emit(AgentKey(o.Agent, scope, FeesCollected).Token(t1), collected1)

	add(t0, amount0.Add(owed0))
	add(t1, amount1.Add(owed1))
	return nil
}
