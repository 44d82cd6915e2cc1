package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"featuremill/pkg/domain"
	"featuremill/pkg/features"
)

// ClickHouseConf describes the analytical feature store connection.
type ClickHouseConf struct {
	Addr     []string `json:",optional"`
	Database string   `json:",default=featuremill"`
	User     string   `json:",default=default"`
	Password string   `json:",optional"`
	Table    string   `json:",default=feature_rows"`
}

// Enabled reports whether a ClickHouse endpoint is configured.
func (c ClickHouseConf) Enabled() bool {
	return len(c.Addr) > 0
}

// ClickHouseSink writes feature batches into a ReplacingMergeTree table;
// the engine collapses duplicate natural keys to the latest version, which
// gives the idempotent upsert the flush protocol relies on.
type ClickHouseSink struct {
	conn  driver.Conn
	table string
}

// OpenClickHouseSink connects and pings the server.
func OpenClickHouseSink(ctx context.Context, conf ClickHouseConf) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: conf.Addr,
		Auth: clickhouse.Auth{
			Database: conf.Database,
			Username: conf.User,
			Password: conf.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store: clickhouse ping: %w", err)
	}
	return &ClickHouseSink{conn: conn, table: conf.Table}, nil
}

var _ features.Sink = (*ClickHouseSink)(nil)

// WriteBatch appends every record to one insert batch and sends it; the
// batch is atomic on the server side.
func (s *ClickHouseSink) WriteBatch(ctx context.Context, records []domain.FeatureRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", s.table))
	if err != nil {
		return fmt.Errorf("store: clickhouse prepare: %w", err)
	}
	for _, record := range records {
		payload, err := json.Marshal(record.Features)
		if err != nil {
			return fmt.Errorf("store: marshal features for %s: %w", record.StorageKey(), err)
		}
		if err := batch.Append(
			record.Group,
			int32(record.Version),
			record.EntityKey(),
			record.EventTime,
			string(payload),
		); err != nil {
			return fmt.Errorf("store: clickhouse append %s: %w", record.StorageKey(), err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("store: clickhouse send batch of %d: %w", len(records), err)
	}
	return nil
}

// Close releases the connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
