package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liquiditySim/internal/model"
)

const (
	RunFile      = "run.json"
	SeriesFile   = "series.jsonl"
	OutcomesFile = "tx_outcomes.jsonl"
	DumpFile     = "abort_state.json"
)

// JsonlStorage writes run results as files under a directory. The directory
// holds one run: the first write of a run clears the series, outcomes and
// abort dump left by an earlier one, later writes of the same run append.
type JsonlStorage struct {
	dir string
	mu  sync.Mutex
	run string
}

func NewJsonlStorage(dir string) *JsonlStorage {
	return &JsonlStorage{dir: dir}
}

func (s *JsonlStorage) PutRun(_ context.Context, run model.RunSummary) error {
	if err := s.begin(run.RunID); err != nil {
		return err
	}
	return s.WriteJSON(RunFile, run)
}

// begin drops the per-run files when runID differs from the run this
// storage last wrote.
func (s *JsonlStorage) begin(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != "" && s.run == runID {
		return nil
	}
	for _, name := range []string{SeriesFile, OutcomesFile, DumpFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale %s: %w", name, err)
		}
	}
	s.run = runID
	return nil
}

// WriteJSON replaces name under the output directory with v, indented.
func (s *JsonlStorage) WriteJSON(name string, v interface{}) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.dir, name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s tmp: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// PutPoints appends metric points as JSON lines.
func (s *JsonlStorage) PutPoints(_ context.Context, runID string, points []model.MetricPoint) error {
	if err := s.begin(runID); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	values := make([]interface{}, len(points))
	for i := range points {
		values[i] = points[i]
	}
	return s.appendLines(SeriesFile, values)
}

// PutOutcomes appends tx outcomes as JSON lines.
func (s *JsonlStorage) PutOutcomes(_ context.Context, runID string, outcomes []model.TxOutcome) error {
	if err := s.begin(runID); err != nil {
		return err
	}
	if len(outcomes) == 0 {
		return nil
	}
	values := make([]interface{}, len(outcomes))
	for i := range outcomes {
		values[i] = outcomes[i]
	}
	return s.appendLines(OutcomesFile, values)
}

func (s *JsonlStorage) appendLines(name string, values []interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := NewJSONLWriter(filepath.Join(s.dir, name), true)
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := w.Write(v); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// JSONLWriter writes one JSON value per line.
type JSONLWriter struct {
	file   *os.File
	writer *bufio.Writer
}

// NewJSONLWriter opens path for writing, creating parent directories.
// appendMode keeps existing content, otherwise the file is truncated.
func NewJSONLWriter(path string, appendMode bool) (*JSONLWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return &JSONLWriter{file: file, writer: bufio.NewWriter(file)}, nil
}

func (w *JSONLWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

// Flush pushes buffered lines to the file.
func (w *JSONLWriter) Flush() error {
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (w *JSONLWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// ReadJSONL calls fn for every non-blank line of path, with its 1-based
// line number. Lines may be up to 10 MiB.
func ReadJSONL(path string, fn func(lineNo int, line []byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	return nil
}
