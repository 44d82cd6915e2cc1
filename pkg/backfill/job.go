// Package backfill replays historical trades through the pipeline inside
// job-scoped namespaces, isolated from live traffic.
package backfill

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"featuremill/pkg/namespace"
)

// Status is the lifecycle state of a backfill job.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether the status allows cleanup.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrBadTransition marks a status change the state machine forbids.
var ErrBadTransition = errors.New("backfill: illegal status transition")

// Stages every job owns a namespace for.
var jobStages = []string{
	namespace.StageTrades,
	namespace.StageCandles,
	namespace.StageTA,
	namespace.StageFeatures,
}

// Job is one historical replay: an opaque id, the half-open time range
// [From, To) to replay, and the job-scoped namespaces it owns.
type Job struct {
	ID         string
	From       int64 // unix millis, inclusive
	To         int64 // unix millis, exclusive
	Status     Status
	Namespaces []namespace.Namespace
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewJob resolves the job's namespaces and starts it PENDING.
func NewJob(id string, from, to int64, now time.Time) (Job, error) {
	if to <= from {
		return Job{}, fmt.Errorf("backfill: empty time range [%d,%d)", from, to)
	}
	namespaces := make([]namespace.Namespace, 0, len(jobStages))
	for _, stage := range jobStages {
		ns, err := namespace.Resolve(stage, namespace.ModeHistorical, id)
		if err != nil {
			return Job{}, err
		}
		namespaces = append(namespaces, ns)
	}
	return Job{
		ID:         id,
		From:       from,
		To:         to,
		Status:     StatusPending,
		Namespaces: namespaces,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Transition enforces PENDING→RUNNING→COMPLETED/FAILED. Terminal states
// are final.
func (j *Job) Transition(next Status, now time.Time) error {
	allowed := false
	switch j.Status {
	case StatusPending:
		allowed = next == StatusRunning || next == StatusFailed
	case StatusRunning:
		allowed = next == StatusCompleted || next == StatusFailed
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, j.Status, next)
	}
	j.Status = next
	j.UpdatedAt = now
	return nil
}

// Topics lists the job-scoped topic names.
func (j Job) Topics() []string {
	out := make([]string, len(j.Namespaces))
	for i, ns := range j.Namespaces {
		out[i] = ns.Topic
	}
	return out
}

// Groups lists the job-scoped consumer-group names.
func (j Job) Groups() []string {
	out := make([]string, len(j.Namespaces))
	for i, ns := range j.Namespaces {
		out[i] = ns.Group
	}
	return out
}

// Namespace returns the job's namespace for one stage.
func (j Job) Namespace(stage string) (namespace.Namespace, bool) {
	for _, ns := range j.Namespaces {
		if ns.Stage == stage {
			return ns, true
		}
	}
	return namespace.Namespace{}, false
}

// IDAllocator mints unique job ids from the wall clock. Two allocations in
// the same millisecond still produce distinct ids.
type IDAllocator struct {
	mu    sync.Mutex
	last  int64
	nowFn func() time.Time
}

// NewIDAllocator returns a clock-backed allocator.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{nowFn: time.Now}
}

// Next mints a job id of the form job-<unix millis>, strictly increasing.
func (a *IDAllocator) Next() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ms := a.nowFn().UnixMilli()
	if ms <= a.last {
		ms = a.last + 1
	}
	a.last = ms
	return fmt.Sprintf("job-%d", ms)
}
