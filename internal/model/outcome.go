package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusApplied = "applied"
	StatusSkipped = "skipped"
)

// TxOutcome records how one transaction fared. Amounts are the signed
// wallet deltas of the issuing agent in raw units.
type TxOutcome struct {
	Block      uint64 `json:"block"`
	Index      int    `json:"index"`
	Source     string `json:"source"`
	Agent      string `json:"agent"`
	Pool       string `json:"pool"`
	Kind       TxKind `json:"kind"`
	Status     string `json:"status"`
	ErrorClass string `json:"error_class,omitempty"`
	Error      string `json:"error,omitempty"`
	Amount0    string `json:"amount0,omitempty"`
	Amount1    string `json:"amount1,omitempty"`
	Gas        string `json:"gas,omitempty"`
}

// MetricPoint is one value of one metric series.
type MetricPoint struct {
	Key   string          `json:"key"`
	Block uint64          `json:"block"`
	Value decimal.Decimal `json:"value"`
}

// RunSummary describes one simulation run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Start      uint64    `json:"start"`
	End        uint64    `json:"end"`
	Step       uint64    `json:"step"`
	Numeraire  string    `json:"numeraire"`
	State      string    `json:"state"`
	LastBlock  uint64    `json:"last_block"`
	ErrorClass string    `json:"error_class,omitempty"`
	Error      string    `json:"error,omitempty"`
	Applied    int       `json:"applied"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
