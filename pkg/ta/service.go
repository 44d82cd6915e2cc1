package ta

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/zeromicro/go-zero/core/logx"

	"featuremill/pkg/bus"
	"featuremill/pkg/domain"
	"featuremill/pkg/journal"
	"featuremill/pkg/namespace"
)

// Service consumes closed candles and publishes indicator records. One
// engine per dispatcher shard keeps rolling history partition-local.
type Service struct {
	producer   bus.Producer
	dispatcher *bus.Dispatcher
	reporter   journal.Reporter
	engines    []*Engine
}

// NewService wires the indicator stage.
func NewService(cfg *Config, producer bus.Producer, reporter journal.Reporter, shards int) *Service {
	d := bus.NewDispatcher(shards)
	engines := make([]*Engine, d.Shards())
	for i := range engines {
		engines[i] = NewEngine(cfg.MaxHistory)
	}
	if reporter == nil {
		reporter = journal.LogReporter{}
	}
	return &Service{
		producer:   producer,
		dispatcher: d,
		reporter:   reporter,
		engines:    engines,
	}
}

var _ bus.Handler = (*Service)(nil)

// Consume handles one candle record from the bus.
func (s *Service) Consume(ctx context.Context, key, value string) error {
	candle, err := domain.ParseCandle([]byte(value))
	if err != nil {
		s.report(journal.KindMalformed, key, err, value)
		return nil
	}

	partition := candle.Key()
	idx := s.dispatcher.ShardIndex(partition)
	s.dispatcher.Submit(partition, func() {
		s.apply(ctx, s.engines[idx], candle)
	})
	return nil
}

func (s *Service) apply(ctx context.Context, engine *Engine, candle domain.Candle) {
	record, err := engine.OnCandle(candle)
	if errors.Is(err, ErrStaleCandle) {
		s.report(journal.KindLateTrade, candle.Key(), err, "")
		return
	}
	if err != nil || record == nil {
		return
	}

	payload, err := record.Encode()
	if err != nil {
		logx.Errorf("ta: encode %s: %v", record.Key(), err)
		return
	}
	if err := s.producer.KPush(ctx, record.Key(), string(payload)); err != nil {
		logx.Errorf("ta: publish %s: %v", record.Key(), err)
		return
	}
	logx.Infof("[%s] indicators %s asof=%d computed=%d windows=%d",
		namespace.StageTA, record.Key(), record.Timestamp, len(record.Indicators), record.WindowCount)
}

// Stop flushes the dispatcher and waits for in-flight work.
func (s *Service) Stop() {
	s.dispatcher.Stop()
}

func (s *Service) report(kind journal.Kind, key string, err error, payload string) {
	rec := journal.Record{
		Kind:   kind,
		Stage:  namespace.StageTA,
		Key:    key,
		Reason: err.Error(),
	}
	if payload != "" && json.Valid([]byte(payload)) {
		rec.Payload = json.RawMessage(payload)
	}
	s.reporter.Report(rec)
}
