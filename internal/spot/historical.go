package spot

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"liquiditySim/internal/storage"
)

// Quote is one line of a historical price file.
type Quote struct {
	Block uint64          `json:"block"`
	Base  string          `json:"base"`
	Quote string          `json:"quote"`
	Price decimal.Decimal `json:"price"`
}

type pricePoint struct {
	block uint64
	price decimal.Decimal
}

// Historical serves per-block prices, carrying the last known quote forward.
// Blocks before a pair's first quote have no price.
type Historical struct {
	series map[string][]pricePoint
}

func NewHistorical(quotes []Quote) (*Historical, error) {
	h := &Historical{series: make(map[string][]pricePoint)}
	for _, q := range quotes {
		if q.Base == "" || q.Quote == "" {
			return nil, fmt.Errorf("quote at block %d: base and quote are required", q.Block)
		}
		if !q.Price.IsPositive() {
			return nil, fmt.Errorf("quote %s at block %d: price must be positive", PairKey(q.Base, q.Quote), q.Block)
		}
		key := PairKey(q.Base, q.Quote)
		h.series[key] = append(h.series[key], pricePoint{block: q.Block, price: q.Price})
	}
	for _, pts := range h.series {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].block < pts[j].block })
	}
	return h, nil
}

// LoadHistorical reads a JSONL file of Quote records.
func LoadHistorical(path string) (*Historical, error) {
	var quotes []Quote
	err := storage.ReadJSONL(path, func(lineNo int, line []byte) error {
		var q Quote
		if err := json.Unmarshal(line, &q); err != nil {
			return fmt.Errorf("decode price line %d: %w", lineNo, err)
		}
		quotes = append(quotes, q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewHistorical(quotes)
}

func (h *Historical) Price(block uint64, base, quote string) (decimal.Decimal, bool) {
	pts := h.series[PairKey(base, quote)]
	idx := sort.Search(len(pts), func(i int) bool { return pts[i].block > block })
	if idx == 0 {
		return decimal.Zero, false
	}
	return pts[idx-1].price, true
}
