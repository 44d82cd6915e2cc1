package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"featuremill/pkg/backfill"
	"featuremill/pkg/namespace"
)

// SQLRegistry adapts the backfill jobs table to the orchestrator's registry
// interface, serializing the owned namespaces as JSON.
type SQLRegistry struct {
	jobs BackfillJobsModel
}

// NewSQLRegistry wraps a jobs model.
func NewSQLRegistry(jobs BackfillJobsModel) *SQLRegistry {
	return &SQLRegistry{jobs: jobs}
}

var _ backfill.Registry = (*SQLRegistry)(nil)

func (r *SQLRegistry) Create(ctx context.Context, job backfill.Job) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}
	if _, err := r.jobs.Insert(ctx, row); err != nil {
		return fmt.Errorf("backfill registry: insert %s: %w", job.ID, err)
	}
	return nil
}

func (r *SQLRegistry) Update(ctx context.Context, job backfill.Job) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}
	if err := r.jobs.Update(ctx, row); err != nil {
		return fmt.Errorf("backfill registry: update %s: %w", job.ID, err)
	}
	return nil
}

func (r *SQLRegistry) Get(ctx context.Context, id string) (backfill.Job, error) {
	row, err := r.jobs.FindOne(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return backfill.Job{}, backfill.ErrJobNotFound
	}
	if err != nil {
		return backfill.Job{}, fmt.Errorf("backfill registry: find %s: %w", id, err)
	}
	return fromRow(row)
}

func (r *SQLRegistry) Delete(ctx context.Context, id string) error {
	if _, err := r.jobs.FindOne(ctx, id); errors.Is(err, ErrNotFound) {
		return backfill.ErrJobNotFound
	} else if err != nil {
		return fmt.Errorf("backfill registry: find %s: %w", id, err)
	}
	if err := r.jobs.Delete(ctx, id); err != nil {
		return fmt.Errorf("backfill registry: delete %s: %w", id, err)
	}
	return nil
}

func (r *SQLRegistry) List(ctx context.Context) ([]backfill.Job, error) {
	rows, err := r.jobs.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	jobs := make([]backfill.Job, 0, len(rows))
	for i := range rows {
		job, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func toRow(job backfill.Job) (*BackfillJobs, error) {
	namespaces, err := json.Marshal(job.Namespaces)
	if err != nil {
		return nil, fmt.Errorf("backfill registry: marshal namespaces for %s: %w", job.ID, err)
	}
	return &BackfillJobs{
		Id:         job.ID,
		FromMs:     job.From,
		ToMs:       job.To,
		Status:     string(job.Status),
		Namespaces: string(namespaces),
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}, nil
}

func fromRow(row *BackfillJobs) (backfill.Job, error) {
	var namespaces []namespace.Namespace
	if row.Namespaces != "" {
		if err := json.Unmarshal([]byte(row.Namespaces), &namespaces); err != nil {
			return backfill.Job{}, fmt.Errorf("backfill registry: decode namespaces for %s: %w", row.Id, err)
		}
	}
	return backfill.Job{
		ID:         row.Id,
		From:       row.FromMs,
		To:         row.ToMs,
		Status:     backfill.Status(row.Status),
		Namespaces: namespaces,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}
