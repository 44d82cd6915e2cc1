package features

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"featuremill/pkg/domain"
	"featuremill/pkg/journal"
)

// Sink is a feature store backend. WriteBatch upserts the whole batch or
// fails it as a unit.
type Sink interface {
	WriteBatch(ctx context.Context, records []domain.FeatureRecord) error
}

// ErrBadSchedule marks an unparseable or too-short flush interval.
var ErrBadSchedule = errors.New("features: bad flush schedule")

const minFlushInterval = time.Second

// ParseSchedule resolves a flush interval expression. Both the bare
// duration form ("15m") and the cron-style "@every 15m" are accepted.
func ParseSchedule(expr string) (time.Duration, error) {
	trimmed := strings.TrimSpace(expr)
	trimmed = strings.TrimPrefix(trimmed, "@every")
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty expression", ErrBadSchedule)
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrBadSchedule, expr, err)
	}
	if d < minFlushInterval {
		return 0, fmt.Errorf("%w: %q below %s", ErrBadSchedule, expr, minFlushInterval)
	}
	return d, nil
}

// Materializer drains the staging buffer into the sink on a schedule. One
// flush is in flight at a time; ticks that land during a flush are skipped.
type Materializer struct {
	buffer   *Buffer
	sink     Sink
	reporter journal.Reporter
	interval time.Duration
	timeout  time.Duration

	inFlight     atomic.Bool
	failureCount atomic.Int64
	stop         chan struct{}
	done         chan struct{}
}

// NewMaterializer wires the flush loop. It does not start ticking until
// Start is called.
func NewMaterializer(buffer *Buffer, sink Sink, reporter journal.Reporter, interval, timeout time.Duration) *Materializer {
	if reporter == nil {
		reporter = journal.LogReporter{}
	}
	return &Materializer{
		buffer:   buffer,
		sink:     sink,
		reporter: reporter,
		interval: interval,
		timeout:  timeout,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the ticker loop.
func (m *Materializer) Start() {
	threading.GoSafe(func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.tick(context.Background())
			case <-m.stop:
				return
			}
		}
	})
}

// Stop halts the ticker and runs one final flush so staged rows are not
// lost on shutdown.
func (m *Materializer) Stop(ctx context.Context) error {
	close(m.stop)
	<-m.done
	return m.FlushNow(ctx)
}

// tick attempts a flush unless one is already running.
func (m *Materializer) tick(ctx context.Context) {
	if !m.inFlight.CompareAndSwap(false, true) {
		logx.Infof("features: flush still in flight, skipping tick")
		return
	}
	defer m.inFlight.Store(false)
	if err := m.flush(ctx); err != nil {
		logx.Errorf("features: scheduled flush: %v", err)
	}
}

// FlushNow runs a flush outside the schedule, waiting for any in-flight
// one to finish first. Used on shutdown and at the end of a backfill run.
func (m *Materializer) FlushNow(ctx context.Context) error {
	for !m.inFlight.CompareAndSwap(false, true) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	defer m.inFlight.Store(false)
	return m.flush(ctx)
}

func (m *Materializer) flush(ctx context.Context) error {
	snap := m.buffer.Snapshot()
	if len(snap.Records) == 0 {
		return nil
	}

	writeCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := m.sink.WriteBatch(writeCtx, snap.Records); err != nil {
		failures := m.failureCount.Add(1)
		m.reporter.Report(journal.Record{
			Kind:   journal.KindFlushFailure,
			Stage:  "features",
			Reason: err.Error(),
		})
		logx.Errorf("features: flush of %d rows failed (consecutive=%d): %v", len(snap.Records), failures, err)
		return fmt.Errorf("features: flush: %w", err)
	}

	m.buffer.Commit(snap)
	m.failureCount.Store(0)
	logx.Infof("features: flushed %d rows in %s, %d still staged",
		len(snap.Records), time.Since(start), m.buffer.Len())
	return nil
}

// ConsecutiveFailures reports how many flushes in a row have failed.
func (m *Materializer) ConsecutiveFailures() int64 {
	return m.failureCount.Load()
}

// Healthy is false once flushes have failed threshold times in a row.
func (m *Materializer) Healthy(threshold int64) bool {
	return m.failureCount.Load() < threshold
}
