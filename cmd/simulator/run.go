package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquiditySim/internal/config"
	"liquiditySim/internal/sim"
	"liquiditySim/internal/storage"
	"liquiditySim/internal/storage/postgres"
	"liquiditySim/internal/telemetry"
)

const persistTimeout = 2 * time.Minute

func runSimulation(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	env, err := sim.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	env.SetTelemetry(telemetry.NewMetrics(reg))
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	clock, err := sim.NewClock(env)
	if err != nil {
		return err
	}
	res, runErr := clock.Run(ctx)

	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := persist(persistCtx, cfg, res, logger); err != nil {
		if runErr != nil {
			logger.Error("persist results failed", zap.Error(err))
			return runErr
		}
		return err
	}

	if runErr != nil {
		var re *sim.RunError
		if errors.As(runErr, &re) {
			logger.Error("run aborted",
				zap.Uint64("block", re.Block),
				zap.String("class", re.Class.String()),
				zap.Error(re.Err),
			)
		}
		return runErr
	}
	logger.Info("run complete",
		zap.String("run_id", res.RunID),
		zap.Int("applied", res.Summary.Applied),
		zap.Int("skipped", res.Summary.Skipped),
		zap.Int("series", len(res.Series)),
	)
	return nil
}

func persist(ctx context.Context, cfg config.Config, res *sim.Result, logger *zap.Logger) error {
	files := storage.NewJsonlStorage(cfg.Out)
	sinks := storage.Multi{files}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	if err := sinks.PutRun(ctx, res.Summary); err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	if err := sinks.PutPoints(ctx, res.RunID, res.Points()); err != nil {
		return fmt.Errorf("store metrics: %w", err)
	}
	if err := sinks.PutOutcomes(ctx, res.RunID, res.Outcomes); err != nil {
		return fmt.Errorf("store outcomes: %w", err)
	}
	if res.Err != nil && len(res.Err.Dump) > 0 {
		if err := files.WriteJSON(storage.DumpFile, res.Err.Dump); err != nil {
			return err
		}
	}
	logger.Info("results stored", zap.String("out", cfg.Out), zap.Bool("postgres", cfg.PGDSN != ""))
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("metrics server listening", zap.String("addr", addr))
	return srv
}
