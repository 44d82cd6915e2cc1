// Package journal records pipeline anomalies — late trades, malformed
// records, mapping failures, flush failures — as timestamped JSON files so
// that dropped data stays auditable.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// Kind classifies an anomaly. Late trades are distinct from malformed input:
// they are structurally valid records that arrived too late to apply.
type Kind string

const (
	KindLateTrade      Kind = "late_trade"
	KindDuplicateTrade Kind = "duplicate_trade"
	KindMalformed      Kind = "malformed_record"
	KindMappingFailure Kind = "mapping_failure"
	KindFlushFailure   Kind = "flush_failure"
)

// Record captures a single anomaly.
type Record struct {
	Timestamp time.Time       `json:"timestamp"`
	Kind      Kind            `json:"kind"`
	Stage     string          `json:"stage"`
	Key       string          `json:"key,omitempty"`
	Reason    string          `json:"reason"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Reporter receives anomaly records. Reporting must never fail the caller;
// implementations swallow their own errors.
type Reporter interface {
	Report(rec Record)
}

// Writer persists anomaly records to a directory as JSON files and mirrors
// them to the log.
type Writer struct {
	dir   string
	mu    sync.Mutex
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer rooted at dir.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "journal"
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Writer{dir: dir, nowFn: time.Now}
}

// Report writes the record to disk. Write errors are logged and dropped.
func (w *Writer) Report(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	logx.Errorf("[%s] %s anomaly key=%s: %s", rec.Stage, rec.Kind, rec.Key, rec.Reason)

	w.mu.Lock()
	w.seq++
	seq := w.seq
	w.mu.Unlock()

	name := fmt.Sprintf("anomaly_%s_%05d.json", rec.Timestamp.UTC().Format("20060102_150405"), seq)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		logx.Errorf("journal: marshal anomaly: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(w.dir, name), data, 0o644); err != nil {
		logx.Errorf("journal: write anomaly: %v", err)
	}
}

// ReadAll loads every anomaly record under dir, in file-name order.
func ReadAll(dir string) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("journal: read dir: %w", err)
	}
	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("journal: read %s: %w", entry.Name(), err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("journal: decode %s: %w", entry.Name(), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// LogReporter reports anomalies to the log only. Used when no journal
// directory is configured.
type LogReporter struct{}

func (LogReporter) Report(rec Record) {
	logx.Errorf("[%s] %s anomaly key=%s: %s", rec.Stage, rec.Kind, rec.Key, rec.Reason)
}
