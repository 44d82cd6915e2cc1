package backfill

import (
	"context"
	"errors"
	"sync"
)

// ErrJobNotFound marks a lookup of an unknown job id.
var ErrJobNotFound = errors.New("backfill: job not found")

// Registry persists job state so cleanup can run in a later process.
type Registry interface {
	Create(ctx context.Context, job Job) error
	Update(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Job, error)
}

// MemoryRegistry keeps jobs in process memory. Used by tests and by
// single-shot backfill runs that clean up before exiting.
type MemoryRegistry struct {
	mu   sync.Mutex
	jobs map[string]Job
}

// NewMemoryRegistry returns an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{jobs: make(map[string]Job)}
}

var _ Registry = (*MemoryRegistry)(nil)

func (r *MemoryRegistry) Create(_ context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return errors.New("backfill: job id already registered: " + job.ID)
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *MemoryRegistry) Update(_ context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; !exists {
		return ErrJobNotFound
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, exists := r.jobs[id]
	if !exists {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[id]; !exists {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}

func (r *MemoryRegistry) List(_ context.Context) ([]Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job)
	}
	return out, nil
}
