// Package svc wires shared dependencies for the stage binaries.
package svc

import (
	"context"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"featuremill/internal/config"
	"featuremill/internal/model"
	"featuremill/internal/store"
	"featuremill/pkg/backfill"
	"featuremill/pkg/bus"
	"featuremill/pkg/features"
	"featuremill/pkg/journal"
)

// ServiceContext carries the dependencies every stage binary shares: the
// feature sink, the backfill registry, the bus admin and the anomaly
// journal. Stages pick what they need.
type ServiceContext struct {
	Config *config.Config

	DBConn            sqlx.SqlConn
	BackfillJobsModel model.BackfillJobsModel
	Registry          backfill.Registry
	Sink              features.Sink
	Admin             bus.Admin
	Journal           journal.Reporter
}

// NewServiceContext builds the context from the loaded config. Missing
// backends degrade to in-memory implementations so a development setup
// works without a database.
func NewServiceContext(c *config.Config) *ServiceContext {
	svc := &ServiceContext{Config: c}

	if c.Postgres.Enabled() {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		svc.DBConn = conn
		svc.BackfillJobsModel = model.NewBackfillJobsModel(conn, c.Cache)
		svc.Registry = model.NewSQLRegistry(svc.BackfillJobsModel)
	} else {
		svc.Registry = backfill.NewMemoryRegistry()
		logx.Info("svc: no postgres configured, using in-memory job registry")
	}

	svc.Sink = buildSink(c, svc.DBConn)

	if len(c.Kafka.Brokers) > 0 {
		svc.Admin = bus.NewKafkaAdmin(c.Kafka.Brokers)
	} else {
		svc.Admin = bus.NewMemoryBus()
		logx.Info("svc: no kafka brokers configured, using in-memory bus admin")
	}

	if c.JournalDir != "" {
		svc.Journal = journal.NewWriter(c.JournalDir)
	} else {
		svc.Journal = journal.LogReporter{}
	}

	return svc
}

// buildSink prefers ClickHouse, then Postgres, then memory.
func buildSink(c *config.Config, conn sqlx.SqlConn) features.Sink {
	if c.ClickHouse.Enabled() {
		sink, err := store.OpenClickHouseSink(context.Background(), c.ClickHouse)
		if err != nil {
			log.Fatalf("svc: open clickhouse sink: %v", err)
		}
		return sink
	}
	if conn != nil {
		return store.NewPostgresSink(conn)
	}
	logx.Info("svc: no feature store configured, using in-memory sink")
	return store.NewMemorySink()
}
