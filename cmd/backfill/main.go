package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"featuremill/internal/cli"
	"featuremill/internal/config"
	"featuremill/internal/svc"
	"featuremill/pkg/backfill"
	"featuremill/pkg/bus"
	"featuremill/pkg/confkit"
	"featuremill/pkg/domain"
	"featuremill/pkg/namespace"
)

var (
	configFile = flag.String("f", "etc/featuremill.yaml", "the config file")
	cleanupID  = flag.String("cleanup", "", "destroy the namespaces of a terminal job and exit")
)

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	cli.LogConfigSummary(cfg)
	svcCtx := svc.NewServiceContext(cfg)

	orch := buildOrchestrator(cfg, svcCtx)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *cleanupID != "" {
		if err := orch.Cleanup(ctx, *cleanupID); err != nil {
			log.Fatalf("[backfill] cleanup %s: %v", *cleanupID, err)
		}
		return
	}

	bfCfg := cfg.Backfill.Value
	if bfCfg == nil {
		log.Fatalf("[backfill] no backfill section in %s", *configFile)
	}

	source, err := backfill.OpenCSVSource(confkit.ResolvePath(cfg.BaseDir(), bfCfg.TradesCSV))
	if err != nil {
		log.Fatalf("[backfill] open trade dump: %v", err)
	}

	job, err := orch.Start(ctx, bfCfg.FromMs, bfCfg.ToMs)
	if err != nil {
		source.Close()
		log.Fatalf("[backfill] start job: %v", err)
	}
	if err := orch.Run(ctx, job, source); err != nil {
		log.Fatalf("[backfill] job %s: %v", job.ID, err)
	}
	logx.Infof("[backfill] job %s done; reclaim its namespaces with -cleanup %s", job.ID, job.ID)
}

// buildOrchestrator assembles the job lifecycle from the main config. The
// backfill section tunes the replay; the features section, when present,
// supplies the schema so backfilled rows match what the live stage writes.
func buildOrchestrator(cfg *config.Config, svcCtx *svc.ServiceContext) *backfill.Orchestrator {
	var opts backfill.Options
	if bfCfg := cfg.Backfill.Value; bfCfg != nil {
		timeframe, err := domain.ParseTimeframe(bfCfg.Timeframe)
		if err != nil {
			log.Fatalf("[backfill] bad timeframe %q: %v", bfCfg.Timeframe, err)
		}
		opts.Timeframe = timeframe
		opts.MaxHistory = bfCfg.MaxHistory
		opts.Partitions = bfCfg.Partitions
	}
	if featCfg := cfg.Features.Value; featCfg != nil {
		opts.Schema = featCfg.Schema()
		opts.FlushTimeout = featCfg.Timeout()
	}

	var producerFor backfill.ProducerFactory
	if brokers := cfg.Kafka.Brokers; len(brokers) > 0 {
		producerFor = func(ns namespace.Namespace) (bus.Producer, error) {
			return bus.NewKafkaProducer(brokers, ns.Topic), nil
		}
	}

	return backfill.NewOrchestrator(svcCtx.Admin, svcCtx.Registry, svcCtx.Sink,
		svcCtx.Journal, producerFor, opts)
}
