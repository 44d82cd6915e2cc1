package backfill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"featuremill/pkg/bus"
	"featuremill/pkg/candles"
	"featuremill/pkg/domain"
	"featuremill/pkg/features"
	"featuremill/pkg/journal"
	"featuremill/pkg/namespace"
	"featuremill/pkg/ta"
)

// ErrJobNotTerminal guards cleanup: only COMPLETED or FAILED jobs may have
// their namespaces destroyed.
var ErrJobNotTerminal = errors.New("backfill: job not in a terminal state")

// ErrJobNotRunning marks a Run call against a job outside RUNNING.
var ErrJobNotRunning = errors.New("backfill: job not running")

// ProducerFactory opens a producer for one job-scoped namespace. When set,
// the orchestrator mirrors replayed records onto the job topics so
// downstream consumers can tail them.
type ProducerFactory func(ns namespace.Namespace) (bus.Producer, error)

// Options tunes one orchestrator. Zero values fall back to pipeline
// defaults.
type Options struct {
	Timeframe    domain.Timeframe
	MaxHistory   int
	Partitions   int
	Schema       features.Schema
	FlushTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.Timeframe == "" {
		o.Timeframe = domain.Timeframe1m
	}
	if o.MaxHistory < ta.MinHistory {
		o.MaxHistory = 60
	}
	if o.Partitions <= 0 {
		o.Partitions = 1
	}
	if o.Schema.Group == "" {
		o.Schema = features.Schema{
			Group:          "technical_analysis",
			Version:        1,
			PrimaryKey:     []string{"symbol", "timeframe"},
			EventTimeField: "timestamp",
		}
	}
	if o.FlushTimeout == 0 {
		o.FlushTimeout = 30 * time.Second
	}
}

// Orchestrator owns the backfill job lifecycle: namespace reservation,
// bounded replay through the pipeline stages, and destructive cleanup.
type Orchestrator struct {
	admin       bus.Admin
	registry    Registry
	sink        features.Sink
	reporter    journal.Reporter
	producerFor ProducerFactory
	alloc       *IDAllocator
	opts        Options
	nowFn       func() time.Time
}

// NewOrchestrator wires the job lifecycle. producerFor may be nil, in which
// case replayed records are not mirrored to the job topics.
func NewOrchestrator(admin bus.Admin, registry Registry, sink features.Sink,
	reporter journal.Reporter, producerFor ProducerFactory, opts Options) *Orchestrator {
	opts.applyDefaults()
	if reporter == nil {
		reporter = journal.LogReporter{}
	}
	return &Orchestrator{
		admin:       admin,
		registry:    registry,
		sink:        sink,
		reporter:    reporter,
		producerFor: producerFor,
		alloc:       NewIDAllocator(),
		opts:        opts,
		nowFn:       time.Now,
	}
}

// Start mints a job id, reserves the job-scoped namespaces and persists the
// job as RUNNING. Topic creation happens before the registry row so a crash
// between the two leaves only reclaimable topics, never an untracked job.
func (o *Orchestrator) Start(ctx context.Context, from, to int64) (Job, error) {
	job, err := NewJob(o.alloc.Next(), from, to, o.nowFn())
	if err != nil {
		return Job{}, err
	}
	if err := o.admin.CreateTopics(ctx, o.opts.Partitions, job.Topics()...); err != nil {
		return Job{}, fmt.Errorf("backfill: reserve namespaces for %s: %w", job.ID, err)
	}
	if err := o.registry.Create(ctx, job); err != nil {
		return Job{}, err
	}
	if err := job.Transition(StatusRunning, o.nowFn()); err != nil {
		return Job{}, err
	}
	if err := o.registry.Update(ctx, job); err != nil {
		return Job{}, err
	}
	logx.Infof("backfill: job %s started for [%d,%d), topics %v", job.ID, from, to, job.Topics())
	return job, nil
}

// Run replays the source through aggregation, indicators and feature
// mapping, then flushes once and marks the job COMPLETED. Any failure or
// cancellation marks it FAILED; rows flushed before the failure are kept.
func (o *Orchestrator) Run(ctx context.Context, job Job, source TradeSource) error {
	if job.Status != StatusRunning {
		return fmt.Errorf("%w: %s is %s", ErrJobNotRunning, job.ID, job.Status)
	}

	err := o.replay(ctx, job, source)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	if terr := job.Transition(status, o.nowFn()); terr != nil {
		return errors.Join(err, terr)
	}
	if uerr := o.registry.Update(ctx, job); uerr != nil {
		return errors.Join(err, uerr)
	}
	if err != nil {
		logx.Errorf("backfill: job %s failed: %v", job.ID, err)
		return err
	}
	logx.Infof("backfill: job %s completed", job.ID)
	return nil
}

func (o *Orchestrator) replay(ctx context.Context, job Job, source TradeSource) error {
	defer source.Close()

	mapper, err := features.NewMapper(o.opts.Schema)
	if err != nil {
		return err
	}
	aggregator := candles.NewAggregator(o.opts.Timeframe, candles.EmissionFinalOnly)
	engine := ta.NewEngine(o.opts.MaxHistory)
	buffer := features.NewBuffer()
	materializer := features.NewMaterializer(buffer, o.sink, o.reporter, time.Hour, o.opts.FlushTimeout)

	mirrors, err := o.openMirrors(job)
	if err != nil {
		return err
	}
	defer closeMirrors(mirrors)

	applied := 0
	for {
		trade, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, domain.ErrMalformedRecord) {
				o.report(journal.KindMalformed, job, "", err)
				continue
			}
			return err
		}
		if trade.Timestamp < job.From || trade.Timestamp >= job.To {
			continue
		}
		o.mirrorTrade(ctx, mirrors, trade)
		closed, err := aggregator.Apply(trade)
		switch {
		case errors.Is(err, candles.ErrLateTrade):
			o.report(journal.KindLateTrade, job, trade.Symbol, err)
			continue
		case errors.Is(err, candles.ErrDuplicateTrade):
			o.report(journal.KindDuplicateTrade, job, trade.Symbol, err)
			continue
		case err != nil:
			return err
		}
		if err := o.fold(ctx, job, mirrors, engine, mapper, buffer, closed); err != nil {
			return err
		}
		applied++
	}

	if err := o.fold(ctx, job, mirrors, engine, mapper, buffer, aggregator.Drain()); err != nil {
		return err
	}
	if err := materializer.FlushNow(ctx); err != nil {
		return err
	}
	logx.Infof("backfill: job %s replayed %d trades", job.ID, applied)
	return nil
}

// fold pushes closed candles through the indicator engine into the staging
// buffer, mirroring each stage's output when producers are configured.
func (o *Orchestrator) fold(ctx context.Context, job Job, mirrors map[string]bus.Producer,
	engine *ta.Engine, mapper *features.Mapper, buffer *features.Buffer, closed []domain.Candle) error {
	for _, candle := range closed {
		o.mirrorCandle(ctx, mirrors, candle)
		record, err := engine.OnCandle(candle)
		if errors.Is(err, ta.ErrStaleCandle) {
			o.report(journal.KindLateTrade, job, candle.Key(), err)
			continue
		}
		if err != nil {
			return err
		}
		if record == nil {
			continue
		}
		o.mirrorRecord(ctx, mirrors, *record)
		featureRecord, err := mapper.Map(record.Flatten())
		if err != nil {
			o.report(journal.KindMappingFailure, job, record.Key(), err)
			continue
		}
		buffer.Put(featureRecord)
	}
	return nil
}

// Cleanup destroys a terminal job's namespaces and forgets the job. It is
// destructive and refuses to run against PENDING or RUNNING jobs.
func (o *Orchestrator) Cleanup(ctx context.Context, id string) error {
	job, err := o.registry.Get(ctx, id)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobNotTerminal, job.ID, job.Status)
	}
	if err := o.admin.DeleteTopics(ctx, job.Topics()...); err != nil {
		return fmt.Errorf("backfill: delete topics for %s: %w", job.ID, err)
	}
	if err := o.admin.DeleteGroups(ctx, job.Groups()...); err != nil {
		return fmt.Errorf("backfill: delete groups for %s: %w", job.ID, err)
	}
	if err := o.registry.Delete(ctx, id); err != nil {
		return err
	}
	logx.Infof("backfill: job %s cleaned up", job.ID)
	return nil
}

func (o *Orchestrator) openMirrors(job Job) (map[string]bus.Producer, error) {
	if o.producerFor == nil {
		return nil, nil
	}
	mirrors := make(map[string]bus.Producer, len(job.Namespaces))
	for _, ns := range job.Namespaces {
		if ns.Stage == namespace.StageFeatures {
			continue // features land in the sink, not on a topic
		}
		producer, err := o.producerFor(ns)
		if err != nil {
			closeMirrors(mirrors)
			return nil, fmt.Errorf("backfill: open producer for %s: %w", ns.Topic, err)
		}
		mirrors[ns.Stage] = producer
	}
	return mirrors, nil
}

func closeMirrors(mirrors map[string]bus.Producer) {
	for _, producer := range mirrors {
		_ = producer.Close()
	}
}

func (o *Orchestrator) mirrorTrade(ctx context.Context, mirrors map[string]bus.Producer, trade domain.Trade) {
	producer, ok := mirrors[namespace.StageTrades]
	if !ok {
		return
	}
	payload, err := trade.Encode()
	if err != nil {
		return
	}
	if err := producer.KPush(ctx, trade.Symbol, string(payload)); err != nil {
		logx.Errorf("backfill: mirror trade %s: %v", trade.Symbol, err)
	}
}

func (o *Orchestrator) mirrorCandle(ctx context.Context, mirrors map[string]bus.Producer, candle domain.Candle) {
	producer, ok := mirrors[namespace.StageCandles]
	if !ok {
		return
	}
	payload, err := candle.Encode()
	if err != nil {
		return
	}
	if err := producer.KPush(ctx, candle.Key(), string(payload)); err != nil {
		logx.Errorf("backfill: mirror candle %s: %v", candle.Key(), err)
	}
}

func (o *Orchestrator) mirrorRecord(ctx context.Context, mirrors map[string]bus.Producer, record domain.TARecord) {
	producer, ok := mirrors[namespace.StageTA]
	if !ok {
		return
	}
	payload, err := record.Encode()
	if err != nil {
		return
	}
	if err := producer.KPush(ctx, record.Key(), string(payload)); err != nil {
		logx.Errorf("backfill: mirror indicators %s: %v", record.Key(), err)
	}
}

func (o *Orchestrator) report(kind journal.Kind, job Job, key string, err error) {
	o.reporter.Report(journal.Record{
		Kind:   kind,
		Stage:  "backfill/" + job.ID,
		Key:    key,
		Reason: err.Error(),
	})
}
