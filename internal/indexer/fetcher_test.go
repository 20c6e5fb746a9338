package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquiditySim/internal/dex"
	"liquiditySim/internal/model"
	"liquiditySim/internal/storage"
)

var fetchPool = common.HexToAddress("0x1111111111111111111111111111111111111111")

type fakeLogs struct {
	head     uint64
	logs     []types.Log
	failures int
	calls    [][2]uint64
}

func (f *fakeLogs) LatestBlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeLogs) FilterLogs(_ context.Context, from, to uint64, address common.Address, topic0 []common.Hash) ([]types.Log, error) {
	f.calls = append(f.calls, [2]uint64{from, to})
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("rate limited")
	}
	var out []types.Log
	for _, l := range f.logs {
		if l.Address != address || l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		for _, t := range topic0 {
			if l.Topics[0] == t {
				out = append(out, l)
				break
			}
		}
	}
	// reversed to check the fetcher orders by block and index
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func swapLog(t *testing.T, block uint64, index uint, amount0, amount1 int64) types.Log {
	t.Helper()
	parsed, err := dex.PoolABI()
	require.NoError(t, err)
	ev := parsed.Events["Swap"]
	data, err := ev.Inputs.NonIndexed().Pack(
		big.NewInt(amount0),
		big.NewInt(amount1),
		new(big.Int).Lsh(big.NewInt(1), 96),
		big.NewInt(1_000_000),
		big.NewInt(0),
	)
	require.NoError(t, err)
	sender := common.HexToHash("0x2222222222222222222222222222222222222222")
	return types.Log{
		Address:     fetchPool,
		Topics:      []common.Hash{ev.ID, sender, sender},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(int64(block))),
		Index:       index,
	}
}

func readReplay(t *testing.T, path string) []model.ReplayRecord {
	t.Helper()
	var out []model.ReplayRecord
	require.NoError(t, storage.ReadJSONL(path, func(_ int, line []byte) error {
		var rec model.ReplayRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	}))
	return out
}

func TestFetcherWritesReplayInChainOrder(t *testing.T) {
	dir := t.TempDir()
	src := &fakeLogs{
		head:     20,
		failures: 1,
		logs: []types.Log{
			swapLog(t, 11, 0, 100, -90),
			swapLog(t, 11, 3, -50, 60),
			swapLog(t, 14, 1, 0, 0),
			swapLog(t, 19, 0, 10, -9),
		},
	}
	src.logs = append(src.logs, src.logs[0])

	decoder, err := dex.NewDecoder()
	require.NoError(t, err)
	cfg := RunConfig{
		Pool:              fetchPool,
		PoolID:            "weth-usdc",
		FromBlock:         10,
		BatchSize:         5,
		Out:               filepath.Join(dir, "replay.jsonl"),
		CheckpointPath:    filepath.Join(dir, "cp.json"),
		CheckpointEnabled: true,
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
	}
	stats, err := NewFetcher(cfg, src, decoder, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(20), stats.To)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 4, stats.Logs)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, [2]uint64{10, 14}, src.calls[0])
	assert.Equal(t, [2]uint64{10, 14}, src.calls[1], "first batch retried")

	recs := readReplay(t, cfg.Out)
	require.Len(t, recs, 3)
	assert.Equal(t, uint64(11), recs[0].Block)
	assert.Equal(t, uint64(0), recs[0].LogIndex)
	assert.Equal(t, uint64(3), recs[1].LogIndex)
	assert.Equal(t, uint64(19), recs[2].Block)
	req, err := recs[0].ToRequest()
	require.NoError(t, err)
	assert.True(t, req.Swap.ZeroForOne)
	assert.Equal(t, "100", req.Swap.AmountSpecified.String())

	cp, ok, err := NewCheckpointStore(cfg.CheckpointPath, true).Load(fetchPool.Hex())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(20), cp.LastProcessedBlock)
	assert.Equal(t, 3, cp.Records)

	// a later run resumes after the checkpoint and appends
	src.head = 25
	src.logs = append(src.logs, swapLog(t, 23, 0, 7, -6))
	src.calls = nil
	stats, err = NewFetcher(cfg, src, decoder, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(21), stats.From)
	assert.Equal(t, [][2]uint64{{21, 25}}, src.calls)
	assert.Len(t, readReplay(t, cfg.Out), 4)
}

func TestFetcherIgnoresOtherPoolCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cpPath := filepath.Join(dir, "cp.json")
	require.NoError(t, NewCheckpointStore(cpPath, true).Save(Checkpoint{Pool: "0x9999999999999999999999999999999999999999", LastProcessedBlock: 50}))

	src := &fakeLogs{logs: []types.Log{swapLog(t, 3, 0, 1, -1)}}
	decoder, err := dex.NewDecoder("swap")
	require.NoError(t, err)
	cfg := RunConfig{
		Pool:              fetchPool,
		PoolID:            "p",
		FromBlock:         1,
		ToBlock:           5,
		BatchSize:         10,
		Out:               filepath.Join(dir, "replay.jsonl"),
		CheckpointPath:    cpPath,
		CheckpointEnabled: true,
	}
	stats, err := NewFetcher(cfg, src, decoder, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.From)
	assert.Equal(t, 1, stats.Records)
}

func TestFetcherGivesUpAfterRetries(t *testing.T) {
	src := &fakeLogs{failures: 10}
	decoder, err := dex.NewDecoder()
	require.NoError(t, err)
	cfg := RunConfig{
		Pool:         fetchPool,
		PoolID:       "p",
		FromBlock:    1,
		ToBlock:      2,
		BatchSize:    10,
		Out:          filepath.Join(t.TempDir(), "replay.jsonl"),
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
	_, err = NewFetcher(cfg, src, decoder, nil).Run(context.Background())
	require.Error(t, err)
	assert.Len(t, src.calls, 3)
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress(" 0x1111111111111111111111111111111111111111 ")
	require.NoError(t, err)
	assert.Equal(t, fetchPool, addr)

	_, err = ParseAddress("weth-usdc")
	assert.Error(t, err)
}
