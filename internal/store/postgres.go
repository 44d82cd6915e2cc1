// Package store provides the feature-store sinks: Postgres, ClickHouse and
// an in-memory fallback.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"featuremill/pkg/domain"
	"featuremill/pkg/features"
)

// PostgresSink upserts feature rows into the feature_rows table. The whole
// batch runs inside one transaction so a partial failure flushes nothing.
type PostgresSink struct {
	conn sqlx.SqlConn
}

// NewPostgresSink wraps an open connection.
func NewPostgresSink(conn sqlx.SqlConn) *PostgresSink {
	return &PostgresSink{conn: conn}
}

var _ features.Sink = (*PostgresSink)(nil)

const upsertFeatureRow = `
INSERT INTO public.feature_rows
    (group_name, group_version, entity_key, event_time_ms, features, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (group_name, group_version, entity_key, event_time_ms)
DO UPDATE SET features = EXCLUDED.features, updated_at = now()`

// WriteBatch upserts every record or rolls the transaction back.
func (s *PostgresSink) WriteBatch(ctx context.Context, records []domain.FeatureRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		for _, record := range records {
			payload, err := json.Marshal(record.Features)
			if err != nil {
				return fmt.Errorf("marshal features for %s: %w", record.StorageKey(), err)
			}
			if _, err := session.ExecCtx(ctx, upsertFeatureRow,
				record.Group, record.Version, record.EntityKey(), record.EventTime, payload); err != nil {
				return fmt.Errorf("upsert %s: %w", record.StorageKey(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: postgres batch of %d: %w", len(records), err)
	}
	return nil
}
