package indexer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"liquiditySim/internal/dex"
	"liquiditySim/internal/storage"
)

// LogSource is the chain access a Fetcher needs. *chain.Client satisfies it.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RunConfig holds the settings of one fetch.
type RunConfig struct {
	Pool              common.Address
	PoolID            string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Out               string
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Stats summarizes a finished fetch.
type Stats struct {
	From    uint64
	To      uint64
	Batches int
	Logs    int
	Records int
	Skipped int
}

// Fetcher pulls a pool's event logs in block batches and writes them as a
// replay file, one model.ReplayRecord per line in chain order.
type Fetcher struct {
	cfg        RunConfig
	src        LogSource
	decoder    *dex.Decoder
	logger     *zap.Logger
	checkpoint *CheckpointStore
	seen       map[string]struct{}
}

func NewFetcher(cfg RunConfig, src LogSource, decoder *dex.Decoder, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:        cfg,
		src:        src,
		decoder:    decoder,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		seen:       make(map[string]struct{}),
	}
}

// Run fetches [FromBlock, ToBlock], ToBlock 0 meaning the chain head. With a
// checkpoint for the same pool the fetch resumes after it and appends to Out;
// otherwise Out is truncated.
func (f *Fetcher) Run(ctx context.Context) (Stats, error) {
	if f.src == nil {
		return Stats{}, fmt.Errorf("chain client is nil")
	}
	if f.decoder == nil {
		return Stats{}, fmt.Errorf("decoder is nil")
	}
	if f.cfg.PoolID == "" {
		return Stats{}, fmt.Errorf("pool id is required")
	}

	from, to := f.cfg.FromBlock, f.cfg.ToBlock
	if to == 0 {
		latest, err := f.src.LatestBlockNumber(ctx)
		if err != nil {
			return Stats{}, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	poolHex := f.cfg.Pool.Hex()
	cp, resumed, err := f.checkpoint.Load(poolHex)
	if err != nil {
		return Stats{}, err
	}
	if resumed && cp.LastProcessedBlock >= from {
		from = cp.LastProcessedBlock + 1
		f.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
	} else {
		resumed = false
		cp = Checkpoint{Pool: poolHex}
	}

	stats := Stats{From: from, To: to}
	if from > to {
		f.logger.Info("nothing to fetch", zap.Uint64("from", from), zap.Uint64("to", to))
		return stats, nil
	}
	ranges, err := SplitRange(from, to, f.cfg.BatchSize)
	if err != nil {
		return stats, err
	}

	w, err := storage.NewJSONLWriter(f.cfg.Out, resumed)
	if err != nil {
		return stats, fmt.Errorf("open replay output: %w", err)
	}
	defer w.Close()

	topics := f.decoder.Topics()
	for _, br := range ranges {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		logs, err := f.filterLogs(ctx, br, topics)
		if err != nil {
			return stats, fmt.Errorf("filter logs %d-%d: %w", br.From, br.To, err)
		}
		sort.SliceStable(logs, func(i, j int) bool {
			if logs[i].BlockNumber != logs[j].BlockNumber {
				return logs[i].BlockNumber < logs[j].BlockNumber
			}
			return logs[i].Index < logs[j].Index
		})

		written := 0
		for _, log := range logs {
			if log.Removed || f.isDuplicate(log) || len(log.Topics) == 0 || !f.decoder.CanDecode(log.Topics[0]) {
				continue
			}
			stats.Logs++
			ev, err := f.decoder.Decode(log)
			if err != nil {
				return stats, fmt.Errorf("decode log %s#%d: %w", log.TxHash.Hex(), log.Index, err)
			}
			rec, ok, err := dex.ToReplayRecord(f.cfg.PoolID, ev)
			if err != nil {
				return stats, err
			}
			if !ok {
				stats.Skipped++
				continue
			}
			if err := w.Write(rec); err != nil {
				return stats, fmt.Errorf("write replay record: %w", err)
			}
			written++
		}
		if err := w.Flush(); err != nil {
			return stats, err
		}

		stats.Batches++
		stats.Records += written
		cp.LastProcessedBlock = br.To
		cp.Records += written
		if err := f.checkpoint.Save(cp); err != nil {
			return stats, err
		}
		f.logger.Info("batch complete",
			zap.Uint64("from", br.From),
			zap.Uint64("to", br.To),
			zap.Int("logs", len(logs)),
			zap.Int("records", written),
		)
	}
	return stats, nil
}

func (f *Fetcher) filterLogs(ctx context.Context, br BlockRange, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	onRetry := func(attempt int, err error) {
		f.logger.Warn("filter logs failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Uint64("from", br.From),
			zap.Uint64("to", br.To),
		)
	}
	err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, onRetry, func(ctx context.Context) error {
		var err error
		logs, err = f.src.FilterLogs(ctx, br.From, br.To, f.cfg.Pool, topics)
		return err
	})
	return logs, err
}

func (f *Fetcher) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := f.seen[id]; ok {
		return true
	}
	f.seen[id] = struct{}{}
	return false
}
