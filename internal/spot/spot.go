package spot

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Source yields reference prices: whole quote tokens per whole base token.
type Source interface {
	Price(block uint64, base, quote string) (decimal.Decimal, bool)
}

// PairKey is the "BASE/QUOTE" form used in price tables.
func PairKey(base, quote string) string {
	return base + "/" + quote
}

func splitPair(key string) (string, string, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("invalid pair %q, want BASE/QUOTE", key)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// Static is a fixed price table.
type Static struct {
	prices map[string]decimal.Decimal
}

// NewStatic builds a table from "BASE/QUOTE" keys. Prices must be positive.
func NewStatic(prices map[string]decimal.Decimal) (*Static, error) {
	s := &Static{prices: make(map[string]decimal.Decimal, len(prices))}
	for key, price := range prices {
		base, quote, err := splitPair(key)
		if err != nil {
			return nil, err
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("price for %s must be positive, got %s", key, price)
		}
		s.prices[PairKey(base, quote)] = price
	}
	return s, nil
}

func (s *Static) Price(_ uint64, base, quote string) (decimal.Decimal, bool) {
	if base == quote {
		return decimal.NewFromInt(1), true
	}
	p, ok := s.prices[PairKey(base, quote)]
	return p, ok
}

// Chain asks each source in turn, then retries every source with the pair
// inverted.
type Chain []Source

func (c Chain) Price(block uint64, base, quote string) (decimal.Decimal, bool) {
	if base == quote {
		return decimal.NewFromInt(1), true
	}
	for _, s := range c {
		if p, ok := s.Price(block, base, quote); ok {
			return p, true
		}
	}
	for _, s := range c {
		if p, ok := s.Price(block, quote, base); ok && !p.IsZero() {
			return decimal.NewFromInt(1).Div(p), true
		}
	}
	return decimal.Zero, false
}
