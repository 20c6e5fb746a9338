package storage

import (
	"context"

	"liquiditySim/internal/model"
)

// Sink persists the results of a simulation run.
type Sink interface {
	PutRun(ctx context.Context, run model.RunSummary) error
	PutPoints(ctx context.Context, runID string, points []model.MetricPoint) error
	PutOutcomes(ctx context.Context, runID string, outcomes []model.TxOutcome) error
}

// Multi fans writes out to several sinks, stopping at the first error.
type Multi []Sink

func (m Multi) PutRun(ctx context.Context, run model.RunSummary) error {
	for _, s := range m {
		if err := s.PutRun(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) PutPoints(ctx context.Context, runID string, points []model.MetricPoint) error {
	for _, s := range m {
		if err := s.PutPoints(ctx, runID, points); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) PutOutcomes(ctx context.Context, runID string, outcomes []model.TxOutcome) error {
	for _, s := range m {
		if err := s.PutOutcomes(ctx, runID, outcomes); err != nil {
			return err
		}
	}
	return nil
}
