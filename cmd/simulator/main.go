package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"liquiditySim/internal/registry"
)

func main() {
	root := &cobra.Command{
		Use:          "simulator",
		Short:        "Block-stepped DEX liquidity simulator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		RunE:  runSimulation,
	}

	runCmd.Flags().Uint64("start", 0, "first simulated block")
	runCmd.Flags().Uint64("end", 0, "last simulated block (inclusive)")
	runCmd.Flags().Uint64("step", 1, "blocks advanced per step")
	runCmd.Flags().String("numeraire", "", "token agent wealth is valued in")
	runCmd.Flags().String("gas-fee", "0", "flat fee per applied transaction, raw units of gas-token")
	runCmd.Flags().String("gas-token", "", "token gas is charged in")
	runCmd.Flags().Bool("abort-on-tx-failure", false, "abort the run on any failed transaction")
	runCmd.Flags().Bool("check-invariants", true, "check pool invariants after every block")
	runCmd.Flags().Bool("parallel-sources", false, "gather source transactions concurrently")
	runCmd.Flags().Int("max-parallel", 4, "maximum concurrent sources")
	runCmd.Flags().String("out", "./data/run", "output directory")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN, results are also written there when set")
	runCmd.Flags().String("run-id", "", "run id, generated when empty")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100)")
	runCmd.Flags().Duration("timeout", 0, "abort the run after this long, 0 means no limit")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch pool events from an RPC node into a replay file",
		RunE:  runFetch,
	}

	fetchCmd.Flags().String("rpc", "", "RPC URL")
	fetchCmd.Flags().String("pool", "", "pool contract address")
	fetchCmd.Flags().String("pool-id", "", "pool id written into replay records, defaults to the address")
	fetchCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	fetchCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	fetchCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	fetchCmd.Flags().String("out", "./data/replay.jsonl", "output replay JSONL path")
	fetchCmd.Flags().String("init-out", "", "write pool metadata and opening state as JSON here")
	fetchCmd.Flags().String("checkpoint", "./data/fetch_checkpoint.json", "checkpoint file path")
	fetchCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	fetchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	fetchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fetchCmd.Flags().StringSlice("kinds", nil, "events to fetch (swap, mint, burn, collect), all when empty")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(fetchCmd)

	root.AddCommand(&cobra.Command{
		Use:   "kinds",
		Short: "List registered pool protocols and transaction source kinds",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "protocols:")
			for _, name := range registry.Protocols() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			fmt.Fprintln(out, "sources:")
			for _, name := range registry.SourceKinds() {
				fmt.Fprintf(out, "  %s\n", name)
			}
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
