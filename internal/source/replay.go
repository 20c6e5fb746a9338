package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"liquiditySim/internal/model"
	"liquiditySim/internal/storage"
)

// Replay serves pre-decoded historical transactions indexed by block. A step
// receives every record in its block window, in block then file order.
type Replay struct {
	id      string
	byBlock map[uint64][]model.TxRequest
	blocks  []uint64
}

// NewReplay decodes records into requests. Records keep their file order
// within a block. A non-empty poolOverride rewrites the pool of every record.
func NewReplay(id string, records []model.ReplayRecord, poolOverride string) (*Replay, error) {
	r := &Replay{id: id, byBlock: make(map[uint64][]model.TxRequest)}
	for i, rec := range records {
		if poolOverride != "" {
			rec.Pool = poolOverride
		}
		req, err := rec.ToRequest()
		if err != nil {
			return nil, fmt.Errorf("replay %s record %d (block %d): %w", id, i, rec.Block, err)
		}
		if _, ok := r.byBlock[rec.Block]; !ok {
			r.blocks = append(r.blocks, rec.Block)
		}
		r.byBlock[rec.Block] = append(r.byBlock[rec.Block], req)
	}
	sort.Slice(r.blocks, func(i, j int) bool { return r.blocks[i] < r.blocks[j] })
	return r, nil
}

// LoadReplay reads a replay JSONL file.
func LoadReplay(id, path, poolOverride string) (*Replay, error) {
	var records []model.ReplayRecord
	err := storage.ReadJSONL(path, func(lineNo int, line []byte) error {
		var rec model.ReplayRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("decode replay line %d: %w", lineNo, err)
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewReplay(id, records, poolOverride)
}

func (r *Replay) ID() string { return r.id }

// Blocks lists the blocks carrying at least one transaction.
func (r *Replay) Blocks() []uint64 {
	return append([]uint64(nil), r.blocks...)
}

// Len is the total number of transactions.
func (r *Replay) Len() int {
	n := 0
	for _, reqs := range r.byBlock {
		n += len(reqs)
	}
	return n
}

func (r *Replay) ForBlock(_ context.Context, block uint64, view StateView) ([]model.TxRequest, error) {
	from := window(block, view)
	var out []model.TxRequest
	for i := sort.Search(len(r.blocks), func(i int) bool { return r.blocks[i] >= from }); i < len(r.blocks) && r.blocks[i] <= block; i++ {
		out = append(out, r.byBlock[r.blocks[i]]...)
	}
	return out, nil
}
