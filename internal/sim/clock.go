package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquiditySim/internal/metrics"
	"liquiditySim/internal/model"
	"liquiditySim/internal/pool"
	"liquiditySim/internal/simerr"
)

// State is the lifecycle of a Clock.
type State int

const (
	Idle State = iota
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// RunError reports the block and class of the failure that aborted a run.
// Dump holds every pool's state at the point of failure.
type RunError struct {
	Block uint64
	Class simerr.Class
	Err   error
	Dump  map[string]pool.State
}

func (e *RunError) Error() string {
	return fmt.Sprintf("block %d: %s: %v", e.Block, e.Class, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Clock drives the simulation one block at a time. It is the only writer of
// pools and wallets.
type Clock struct {
	env      *Env
	recorder *metrics.Recorder
	logger   *zap.Logger
	runID    string

	state     State
	from      uint64
	next      uint64
	lastBlock uint64
	outcomes  []model.TxOutcome
	applied   int
	skipped   int
	runErr    *RunError
	startedAt time.Time
}

// NewClock registers the pool and agent observables and readies the clock
// at the start block.
func NewClock(env *Env) (*Clock, error) {
	if len(env.pools) == 0 {
		return nil, simerr.Validation("new clock", "no pools registered")
	}
	runID := env.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	c := &Clock{
		env:      env,
		recorder: metrics.NewRecorder(),
		logger:   env.logger.With(zap.String("run_id", runID)),
		runID:    runID,
		from:     env.cfg.Start,
		next:     env.cfg.Start,
	}

	tokens := env.tokens()
	for _, p := range env.Pools() {
		c.recorder.Register(metrics.PoolObservable{Pool: p, Tokens: tokens})
	}
	var valuer metrics.Valuer
	if env.cfg.Numeraire != "" {
		prices := env.prices()
		if err := env.checkPriceable(prices); err != nil {
			return nil, err
		}
		valuer = numeraireValuer{numeraire: env.cfg.Numeraire, prices: prices}
	}
	for _, agent := range env.ledger.Agents() {
		c.recorder.Register(metrics.AgentObservable{
			Agent:    agent,
			Wallet:   env.ledger,
			Pools:    env.readers(),
			Tokens:   tokens,
			Valuer:   valuer,
			GasToken: env.cfg.GasToken,
			GasSpent: env.GasSpent,
		})
	}
	return c, nil
}

func (c *Clock) RunID() string { return c.runID }

func (c *Clock) State() State { return c.state }

func (c *Clock) Recorder() *metrics.Recorder { return c.recorder }

// Register adds a custom observable next to the built-in ones.
func (c *Clock) Register(o metrics.Observable) { c.recorder.Register(o) }

// Next is the block the next Step will simulate.
func (c *Clock) Next() uint64 { return c.next }

// Outcomes returns every transaction outcome so far, in application order.
func (c *Clock) Outcomes() []model.TxOutcome {
	return append([]model.TxOutcome(nil), c.outcomes...)
}

func (c *Clock) done() bool {
	return c.state == Completed || c.state == Aborted
}

type sourcedTx struct {
	source string
	tx     model.TxRequest
}

// gather asks every source for the transactions of the window ending at
// block, keeping registration order regardless of how the sources were
// evaluated.
func (c *Clock) gather(ctx context.Context, block uint64) ([]sourcedTx, error) {
	view := &blockView{from: c.from, block: block, env: c.env, recorder: c.recorder}
	sources := c.env.sources
	results := make([][]model.TxRequest, len(sources))

	decide := func(ctx context.Context, i int) error {
		src := sources[i]
		started := time.Now()
		txs, err := src.ForBlock(ctx, block, view)
		c.env.telemetry.ObserveSource(src.ID(), time.Since(started))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return simerr.New(simerr.ClassCanceled, "source "+src.ID(), ctxErr)
			}
			return simerr.New(simerr.ClassSource, "source "+src.ID(), err)
		}
		results[i] = txs
		return nil
	}

	if c.env.cfg.ParallelSources && len(sources) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		if c.env.cfg.MaxParallel > 0 {
			g.SetLimit(c.env.cfg.MaxParallel)
		}
		for i := range sources {
			i := i
			g.Go(func() error { return decide(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range sources {
			if err := decide(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	var out []sourcedTx
	for i, txs := range results {
		for _, tx := range txs {
			out = append(out, sourcedTx{source: sources[i].ID(), tx: tx})
		}
	}
	return out, nil
}

// Step simulates one block: gather, apply in order, check, snapshot. With a
// step above one the block stands for the window since the previous step,
// and the last step lands on the end block.
func (c *Clock) Step(ctx context.Context) error {
	if c.done() {
		return fmt.Errorf("clock is %s", c.state)
	}
	if c.state == Idle {
		c.state = Running
		c.startedAt = time.Now()
	}
	block := c.next
	started := time.Now()

	txs, err := c.gather(ctx, block)
	if err != nil {
		return c.abort(block, err)
	}

	for i, stx := range txs {
		out := model.TxOutcome{
			Block:  block,
			Index:  i,
			Source: stx.source,
			Agent:  stx.tx.Agent,
			Pool:   stx.tx.Pool,
			Kind:   stx.tx.Kind,
			Status: model.StatusApplied,
		}
		err := c.applyTx(stx.tx, &out)
		if err != nil {
			class := simerr.ClassOf(err)
			out.Status = model.StatusSkipped
			out.ErrorClass = class.String()
			out.Error = err.Error()
			c.skipped++
			c.outcomes = append(c.outcomes, out)
			c.env.telemetry.ObserveTx(string(out.Kind), out.Status, out.ErrorClass)
			if class.Fatal() || c.env.cfg.AbortOnTxFailure {
				return c.abort(block, fmt.Errorf("tx %d from %s (%s on %s by %s): %w", i, stx.source, stx.tx.Kind, stx.tx.Pool, stx.tx.Agent, err))
			}
			c.logger.Warn("transaction skipped",
				zap.Uint64("block", block),
				zap.String("source", stx.source),
				zap.String("agent", stx.tx.Agent),
				zap.String("pool", stx.tx.Pool),
				zap.String("kind", string(stx.tx.Kind)),
				zap.String("class", out.ErrorClass),
				zap.Error(err),
			)
			continue
		}
		c.applied++
		c.outcomes = append(c.outcomes, out)
		c.env.telemetry.ObserveTx(string(out.Kind), out.Status, "")
	}

	if c.env.cfg.CheckInvariants {
		for _, p := range c.env.Pools() {
			if err := p.CheckInvariants(); err != nil {
				return c.abort(block, err)
			}
		}
	}

	if err := c.recorder.Record(block); err != nil {
		return c.abort(block, err)
	}

	c.lastBlock = block
	c.env.telemetry.ObserveBlock(block, time.Since(started))
	c.logger.Debug("block applied", zap.Uint64("block", block), zap.Int("txs", len(txs)))

	c.from = block + 1
	if block >= c.env.cfg.End {
		c.state = Completed
		c.env.telemetry.ObserveRun(c.state.String())
	} else if c.env.cfg.End-block < c.env.cfg.Step {
		c.next = c.env.cfg.End
	} else {
		c.next = block + c.env.cfg.Step
	}
	return nil
}

func (c *Clock) abort(block uint64, err error) error {
	class := simerr.ClassOf(err)
	if class == simerr.ClassUnknown && errors.Is(err, context.Canceled) {
		class = simerr.ClassCanceled
	}
	dump := make(map[string]pool.State, len(c.env.pools))
	for id, p := range c.env.pools {
		dump[id] = p.Dump()
	}
	c.runErr = &RunError{Block: block, Class: class, Err: err, Dump: dump}
	c.state = Aborted
	c.env.telemetry.ObserveRun(c.state.String())
	c.logger.Error("simulation aborted",
		zap.Uint64("block", block),
		zap.String("class", class.String()),
		zap.Error(err),
	)
	return c.runErr
}

// Run steps until the end block or the first fatal failure. Cancellation is
// honoured between blocks only. Results up to the last completed block are
// returned in every case.
func (c *Clock) Run(ctx context.Context) (*Result, error) {
	c.logger.Info("simulation started",
		zap.Uint64("start", c.env.cfg.Start),
		zap.Uint64("end", c.env.cfg.End),
		zap.Uint64("step", c.env.cfg.Step),
		zap.Int("pools", len(c.env.pools)),
		zap.Int("agents", len(c.env.ledger.Agents())),
		zap.Int("sources", len(c.env.sources)),
	)
	for !c.done() {
		if err := ctx.Err(); err != nil {
			c.abort(c.next, simerr.New(simerr.ClassCanceled, "run", err))
			break
		}
		if err := c.Step(ctx); err != nil {
			break
		}
	}

	res := c.Result()
	c.logger.Info("simulation finished",
		zap.String("state", c.state.String()),
		zap.Uint64("last_block", res.Summary.LastBlock),
		zap.Int("applied", c.applied),
		zap.Int("skipped", c.skipped),
	)
	if c.runErr != nil {
		return res, c.runErr
	}
	return res, nil
}

// Result is the queryable output of a run.
type Result struct {
	RunID    string
	State    State
	Series   map[string][]metrics.Point
	Outcomes []model.TxOutcome
	Summary  model.RunSummary
	Err      *RunError
}

// Result captures what has been simulated so far.
func (c *Clock) Result() *Result {
	summary := model.RunSummary{
		RunID:      c.runID,
		Start:      c.env.cfg.Start,
		End:        c.env.cfg.End,
		Step:       c.env.cfg.Step,
		Numeraire:  c.env.cfg.Numeraire,
		State:      c.state.String(),
		LastBlock:  c.lastBlock,
		Applied:    c.applied,
		Skipped:    c.skipped,
		StartedAt:  c.startedAt,
		FinishedAt: time.Now(),
	}
	if c.runErr != nil {
		summary.ErrorClass = c.runErr.Class.String()
		summary.Error = c.runErr.Err.Error()
	}
	return &Result{
		RunID:    c.runID,
		State:    c.state,
		Series:   c.recorder.All(),
		Outcomes: c.Outcomes(),
		Summary:  summary,
		Err:      c.runErr,
	}
}

// Points flattens the series ordered by key, then block.
func (r *Result) Points() []model.MetricPoint {
	keys := make([]string, 0, len(r.Series))
	for k := range r.Series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []model.MetricPoint
	for _, k := range keys {
		for _, p := range r.Series[k] {
			out = append(out, model.MetricPoint{Key: k, Block: p.Block, Value: p.Value})
		}
	}
	return out
}
