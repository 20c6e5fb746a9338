package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquiditySim/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS sim_runs (
	run_id TEXT PRIMARY KEY,
	start_block BIGINT NOT NULL,
	end_block BIGINT NOT NULL,
	step BIGINT NOT NULL,
	numeraire TEXT NOT NULL,
	state TEXT NOT NULL,
	last_block BIGINT NOT NULL,
	error_class TEXT,
	error TEXT,
	applied INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS sim_metric_points (
	run_id TEXT NOT NULL,
	metric_key TEXT NOT NULL,
	block BIGINT NOT NULL,
	value NUMERIC NOT NULL,
	PRIMARY KEY (run_id, metric_key, block)
);
CREATE TABLE IF NOT EXISTS sim_tx_outcomes (
	run_id TEXT NOT NULL,
	block BIGINT NOT NULL,
	tx_index INTEGER NOT NULL,
	source TEXT NOT NULL,
	agent TEXT NOT NULL,
	pool TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	error_class TEXT,
	error TEXT,
	amount0 NUMERIC,
	amount1 NUMERIC,
	gas NUMERIC,
	PRIMARY KEY (run_id, block, tx_index)
);
`

// Store persists simulation runs in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the result tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutRun inserts or updates a run summary.
func (s *Store) PutRun(ctx context.Context, run model.RunSummary) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sim_runs (
			run_id, start_block, end_block, step, numeraire, state, last_block,
			error_class, error, applied, skipped, started_at, finished_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
		ON CONFLICT (run_id)
		DO UPDATE SET
			state = EXCLUDED.state,
			last_block = EXCLUDED.last_block,
			error_class = EXCLUDED.error_class,
			error = EXCLUDED.error,
			applied = EXCLUDED.applied,
			skipped = EXCLUDED.skipped,
			finished_at = EXCLUDED.finished_at,
			updated_at = now()
	`,
		run.RunID,
		int64(run.Start),
		int64(run.End),
		int64(run.Step),
		run.Numeraire,
		run.State,
		int64(run.LastBlock),
		nullable(run.ErrorClass),
		nullable(run.Error),
		run.Applied,
		run.Skipped,
		run.StartedAt,
		run.FinishedAt,
	)
	return err
}

// PutPoints upserts metric points for a run.
func (s *Store) PutPoints(ctx context.Context, runID string, points []model.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(`
			INSERT INTO sim_metric_points (run_id, metric_key, block, value)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (run_id, metric_key, block)
			DO UPDATE SET value = EXCLUDED.value
		`,
			runID,
			p.Key,
			int64(p.Block),
			p.Value.String(),
		)
	}
	return s.sendBatch(ctx, batch, len(points))
}

// PutOutcomes upserts transaction outcomes for a run.
func (s *Store) PutOutcomes(ctx context.Context, runID string, outcomes []model.TxOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, o := range outcomes {
		batch.Queue(`
			INSERT INTO sim_tx_outcomes (
				run_id, block, tx_index, source, agent, pool, kind, status,
				error_class, error, amount0, amount1, gas
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (run_id, block, tx_index)
			DO UPDATE SET
				status = EXCLUDED.status,
				error_class = EXCLUDED.error_class,
				error = EXCLUDED.error,
				amount0 = EXCLUDED.amount0,
				amount1 = EXCLUDED.amount1,
				gas = EXCLUDED.gas
		`,
			runID,
			int64(o.Block),
			o.Index,
			o.Source,
			o.Agent,
			o.Pool,
			string(o.Kind),
			o.Status,
			nullable(o.ErrorClass),
			nullable(o.Error),
			nullable(o.Amount0),
			nullable(o.Amount1),
			nullable(o.Gas),
		)
	}
	return s.sendBatch(ctx, batch, len(outcomes))
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
