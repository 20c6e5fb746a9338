package metrics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// EmitFunc receives one observed value.
type EmitFunc func(key Key, value decimal.Decimal)

// Observable reports the current value of one or more metrics.
type Observable interface {
	Observe(block uint64, emit EmitFunc) error
}

// ObserveFunc adapts a function to Observable.
type ObserveFunc func(block uint64, emit EmitFunc) error

func (f ObserveFunc) Observe(block uint64, emit EmitFunc) error {
	return f(block, emit)
}

type Point struct {
	Block uint64          `json:"block"`
	Value decimal.Decimal `json:"value"`
}

// Snapshot holds every metric value at one block. Snapshots are never
// modified once recorded.
type Snapshot struct {
	Block  uint64
	Values map[string]decimal.Decimal
}

// Recorder snapshots registered observables once per block.
//
// A key not emitted at a block carries its last value forward. A key first
// seen after some blocks were recorded reads as zero for those blocks, so
// every series spans every recorded block.
type Recorder struct {
	mu          sync.RWMutex
	observables []Observable
	snapshots   []Snapshot
	latest      map[string]decimal.Decimal
}

func NewRecorder() *Recorder {
	return &Recorder{latest: make(map[string]decimal.Decimal)}
}

func (r *Recorder) Register(o Observable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observables = append(r.observables, o)
}

// Record observes everything and appends the snapshot for block. Blocks
// must be recorded in increasing order.
func (r *Recorder) Record(block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.snapshots); n > 0 && block <= r.snapshots[n-1].Block {
		return fmt.Errorf("record block %d: already recorded up to %d", block, r.snapshots[n-1].Block)
	}

	fresh := make(map[string]decimal.Decimal)
	emit := func(key Key, value decimal.Decimal) {
		fresh[key.String()] = value
	}
	for _, o := range r.observables {
		if err := o.Observe(block, emit); err != nil {
			return fmt.Errorf("observe block %d: %w", block, err)
		}
	}

	values := make(map[string]decimal.Decimal, len(r.latest)+len(fresh))
	for key, v := range r.latest {
		values[key] = v
	}
	for key, v := range fresh {
		values[key] = v
		r.latest[key] = v
	}
	r.snapshots = append(r.snapshots, Snapshot{Block: block, Values: values})
	return nil
}

// Blocks returns the recorded block indices in order.
func (r *Recorder) Blocks() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uint64, len(r.snapshots))
	for i, s := range r.snapshots {
		out[i] = s.Block
	}
	return out
}

// Latest returns the most recent value of a key.
func (r *Recorder) Latest(key string) (decimal.Decimal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.latest[key]
	return v, ok
}

// Keys returns every key ever observed, sorted.
func (r *Recorder) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.latest))
	for k := range r.latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Series returns one point per recorded block for key.
func (r *Recorder) Series(key string) ([]Point, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.latest[key]; !ok {
		return nil, false
	}
	return r.series(key), true
}

func (r *Recorder) series(key string) []Point {
	out := make([]Point, len(r.snapshots))
	for i, s := range r.snapshots {
		out[i] = Point{Block: s.Block, Value: s.Values[key]}
	}
	return out
}

// Query parses a key string and returns its series.
func (r *Recorder) Query(key string) ([]Point, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	points, ok := r.Series(k.String())
	if !ok {
		return nil, fmt.Errorf("metric %q was never observed", key)
	}
	return points, nil
}

// All returns every series.
func (r *Recorder) All() map[string][]Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]Point, len(r.latest))
	for key := range r.latest {
		out[key] = r.series(key)
	}
	return out
}

// Snapshots returns the recorded snapshots.
func (r *Recorder) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Snapshot(nil), r.snapshots...)
}
