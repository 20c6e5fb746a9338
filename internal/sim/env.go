package sim

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquiditySim/internal/metrics"
	"liquiditySim/internal/pool"
	"liquiditySim/internal/simerr"
	"liquiditySim/internal/source"
	"liquiditySim/internal/spot"
	"liquiditySim/internal/telemetry"
	"liquiditySim/internal/wallet"
)

// Config controls one run. Blocks Start, Start+Step, ... below End are
// simulated, then End itself. Each step covers the blocks since the previous
// one.
type Config struct {
	RunID     string
	Start     uint64
	End       uint64
	Step      uint64
	Numeraire string
	// GasFee is charged in GasToken raw units per transaction of a funded agent.
	GasFee   *big.Int
	GasToken string

	AbortOnTxFailure bool
	CheckInvariants  bool
	ParallelSources  bool
	MaxParallel      int
}

func (c Config) validate() error {
	if c.Step == 0 {
		return simerr.Validation("config", "step must be positive")
	}
	if c.End < c.Start {
		return simerr.Validation("config", "end block %d is before start block %d", c.End, c.Start)
	}
	if c.GasFee != nil && c.GasFee.Sign() > 0 && c.GasToken == "" {
		return simerr.Validation("config", "gas fee set without a gas token")
	}
	if c.GasFee != nil && c.GasFee.Sign() < 0 {
		return simerr.Validation("config", "gas fee must not be negative")
	}
	return nil
}

// Env owns every piece of mutable simulation state. It is built before a
// run, handed to one Clock, and discarded afterwards.
type Env struct {
	cfg       Config
	logger    *zap.Logger
	telemetry *telemetry.Metrics

	pools     map[string]*pool.Pool
	poolOrder []string
	ledger    *wallet.Ledger
	sources   []source.Source
	sourceIDs map[string]bool
	spot      spot.Source
	gasSpent  map[string]*big.Int
}

func NewEnv(cfg Config, logger *zap.Logger) (*Env, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Env{
		cfg:       cfg,
		logger:    logger,
		pools:     make(map[string]*pool.Pool),
		ledger:    wallet.NewLedger(),
		sourceIDs: make(map[string]bool),
		gasSpent:  make(map[string]*big.Int),
	}, nil
}

func (e *Env) Config() Config { return e.cfg }

func (e *Env) Ledger() *wallet.Ledger { return e.ledger }

// Sources returns the registered sources in order.
func (e *Env) Sources() []source.Source {
	return append([]source.Source(nil), e.sources...)
}

// SetTelemetry attaches prometheus instrumentation; nil disables it.
func (e *Env) SetTelemetry(m *telemetry.Metrics) { e.telemetry = m }

// SetSpot sets the external reference price source.
func (e *Env) SetSpot(s spot.Source) { e.spot = s }

// checkEntityID rejects ids that would not survive as a metric key component.
func checkEntityID(op, kind, id string) error {
	if id == "" {
		return simerr.Validation(op, "empty %s id", kind)
	}
	if strings.ContainsAny(id, ".:") {
		return simerr.Validation(op, "%s id %q must not contain '.' or ':'", kind, id)
	}
	return nil
}

func (e *Env) AddPool(p *pool.Pool) error {
	if err := checkEntityID("add pool", "pool", p.ID()); err != nil {
		return err
	}
	if p.ID() == metrics.ScopeAll {
		return simerr.Validation("add pool", "pool id %q is reserved", p.ID())
	}
	if _, ok := e.pools[p.ID()]; ok {
		return simerr.Validation("add pool", "duplicate pool id %q", p.ID())
	}
	e.pools[p.ID()] = p
	e.poolOrder = append(e.poolOrder, p.ID())
	return nil
}

func (e *Env) Pool(id string) (*pool.Pool, bool) {
	p, ok := e.pools[id]
	return p, ok
}

// Pools returns the pools in registration order.
func (e *Env) Pools() []*pool.Pool {
	out := make([]*pool.Pool, 0, len(e.poolOrder))
	for _, id := range e.poolOrder {
		out = append(out, e.pools[id])
	}
	return out
}

func (e *Env) readers() []pool.Reader {
	out := make([]pool.Reader, 0, len(e.poolOrder))
	for _, p := range e.Pools() {
		out = append(out, p)
	}
	return out
}

// AddAgent opens a funded wallet. Agents that are never added trade as
// unfunded market actors.
func (e *Env) AddAgent(name string, balances map[string]*big.Int) error {
	if err := checkEntityID("add agent", "agent", name); err != nil {
		return err
	}
	if e.ledger.Has(name) {
		return simerr.Validation("add agent", "duplicate agent %q", name)
	}
	return e.ledger.Open(name, balances)
}

// AddSource registers a source. Sources run in registration order.
func (e *Env) AddSource(s source.Source) error {
	if e.sourceIDs[s.ID()] {
		return simerr.Validation("add source", "duplicate source id %q", s.ID())
	}
	e.sourceIDs[s.ID()] = true
	e.sources = append(e.sources, s)
	return nil
}

// GasSpent is the total gas charged to an agent so far.
func (e *Env) GasSpent(agent string) *big.Int {
	if v, ok := e.gasSpent[agent]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (e *Env) chargeGas(agent string) {
	if e.cfg.GasFee == nil || e.cfg.GasFee.Sign() == 0 {
		return
	}
	spent, ok := e.gasSpent[agent]
	if !ok {
		spent = new(big.Int)
		e.gasSpent[agent] = spent
	}
	spent.Add(spent, e.cfg.GasFee)
}

// prices resolves reference prices, falling back to the simulated pools.
func (e *Env) prices() spot.Source {
	if e.spot == nil {
		return spot.Chain{spot.Pools(e.readers())}
	}
	return spot.Chain{e.spot, spot.Pools(e.readers())}
}

// tokens collects decimals from every pool.
func (e *Env) tokens() metrics.Tokens {
	out := metrics.Tokens{}
	for _, p := range e.Pools() {
		cfg := p.Config()
		out[cfg.Token0] = cfg.Decimals0
		out[cfg.Token1] = cfg.Decimals1
	}
	return out
}

// checkPriceable fails when a wallet, pool or gas token has no route to the
// numeraire at the start block.
func (e *Env) checkPriceable(prices spot.Source) error {
	seen := map[string]bool{e.cfg.Numeraire: true}
	var tokens []string
	add := func(token string) {
		if token != "" && !seen[token] {
			seen[token] = true
			tokens = append(tokens, token)
		}
	}
	for _, agent := range e.ledger.Agents() {
		for _, token := range e.ledger.Tokens(agent) {
			add(token)
		}
	}
	for _, p := range e.Pools() {
		add(p.Token(0))
		add(p.Token(1))
	}
	if e.cfg.GasFee != nil && e.cfg.GasFee.Sign() > 0 {
		add(e.cfg.GasToken)
	}
	for _, token := range tokens {
		if _, ok := prices.Price(e.cfg.Start, token, e.cfg.Numeraire); !ok {
			return simerr.Validation("new clock", "no %s price for %s at block %d", e.cfg.Numeraire, token, e.cfg.Start)
		}
	}
	return nil
}

// numeraireValuer prices holdings in the run's numeraire.
type numeraireValuer struct {
	numeraire string
	prices    spot.Source
}

func (v numeraireValuer) Value(block uint64, token string, amount decimal.Decimal) (decimal.Decimal, error) {
	if token == v.numeraire {
		return amount, nil
	}
	price, ok := v.prices.Price(block, token, v.numeraire)
	if !ok {
		return decimal.Zero, simerr.Newf(simerr.ClassSource, "value holdings", "no %s price for %s at block %d", v.numeraire, token, block)
	}
	return amount.Mul(price), nil
}
