package model

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ BackfillJobsModel = (*customBackfillJobsModel)(nil)

type (
	// BackfillJobsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customBackfillJobsModel.
	BackfillJobsModel interface {
		backfillJobsModel
		FindByStatus(ctx context.Context, status string) ([]BackfillJobs, error)
		FindAll(ctx context.Context) ([]BackfillJobs, error)
	}

	customBackfillJobsModel struct {
		*defaultBackfillJobsModel
	}
)

// NewBackfillJobsModel returns a model for the database table.
func NewBackfillJobsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) BackfillJobsModel {
	return &customBackfillJobsModel{
		defaultBackfillJobsModel: newBackfillJobsModel(conn, c, opts...),
	}
}

// FindByStatus returns jobs in the given status, oldest first. Used by
// cleanup sweeps over terminal jobs.
func (m *customBackfillJobsModel) FindByStatus(ctx context.Context, status string) ([]BackfillJobs, error) {
	query := fmt.Sprintf("select %s from %s where status = $1 order by created_at", backfillJobsRows, m.table)
	var rows []BackfillJobs
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, status); err != nil {
		return nil, fmt.Errorf("backfill_jobs.FindByStatus query: %w", err)
	}
	return rows, nil
}

// FindAll returns every registered job, oldest first.
func (m *customBackfillJobsModel) FindAll(ctx context.Context) ([]BackfillJobs, error) {
	query := fmt.Sprintf("select %s from %s order by created_at", backfillJobsRows, m.table)
	var rows []BackfillJobs
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("backfill_jobs.FindAll query: %w", err)
	}
	return rows, nil
}
