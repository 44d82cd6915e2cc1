package candles

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

// Service consumes trades, aggregates them into candles and publishes the
// emissions. One aggregator per dispatcher shard keeps all window state
// partition-local; no locks are needed.
type Service struct {
	cfg        *Config
	producer   bus.Producer
	dispatcher *bus.Dispatcher
	reporter   journal.Reporter
	aggs       []*Aggregator
	symbols    map[string]struct{}
}

// NewService wires the aggregation stage. The producer publishes to the
// resolved candles topic; shards sizes the partition worker pool.
func NewService(cfg *Config, producer bus.Producer, reporter journal.Reporter, shards int) *Service {
	d := bus.NewDispatcher(shards)
	aggs := make([]*Aggregator, d.Shards())
	for i := range aggs {
		aggs[i] = NewAggregator(cfg.ResolvedTimeframe(), cfg.ResolvedEmissionMode())
	}
	symbols := make(map[string]struct{}, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols[s] = struct{}{}
	}
	if reporter == nil {
		reporter = journal.LogReporter{}
	}
	return &Service{
		cfg:        cfg,
		producer:   producer,
		dispatcher: d,
		reporter:   reporter,
		aggs:       aggs,
		symbols:    symbols,
	}
}

var _ bus.Handler = (*Service)(nil)

// Consume handles one trade record from the bus. Malformed, late and
// duplicate trades are journaled and dropped; they never fail the worker.
func (s *Service) Consume(ctx context.Context, key, value string) error {
	trade, err := domain.ParseTrade([]byte(value))
	if err != nil {
		s.report(journal.KindMalformed, key, err, value)
		return nil
	}
	if _, ok := s.symbols[trade.Symbol]; !ok {
		return nil
	}

	idx := s.dispatcher.ShardIndex(trade.Symbol)
	s.dispatcher.Submit(trade.Symbol, func() {
		s.apply(ctx, s.aggs[idx], trade)
	})
	return nil
}

func (s *Service) apply(ctx context.Context, agg *Aggregator, trade domain.Trade) {
	emissions, err := agg.Apply(trade)
	switch {
	case errors.Is(err, ErrLateTrade):
		s.report(journal.KindLateTrade, trade.Symbol, err, "")
		return
	case errors.Is(err, ErrDuplicateTrade):
		s.report(journal.KindDuplicateTrade, trade.Symbol, err, "")
		return
	case err != nil:
		s.report(journal.KindMalformed, trade.Symbol, err, "")
		return
	}
	s.publish(ctx, emissions)
}

func (s *Service) publish(ctx context.Context, emissions []domain.Candle) {
	for _, c := range emissions {
		payload, err := c.Encode()
		if err != nil {
			logx.Errorf("candles: encode %s: %v", c.Key(), err)
			continue
		}
		if err := s.producer.KPush(ctx, c.Key(), string(payload)); err != nil {
			// Transient bus errors are retried at the natural cadence of
			// the consumer loop, not busy-retried here.
			logx.Errorf("candles: publish %s: %v", c.Key(), err)
		}
		if c.Closed {
			logx.Infof("[%s] closed candle %s window=%d..%d trades=%d",
				namespace.StageCandles, c.Key(), c.Start, c.End, c.TradeCount)
		}
	}
}

// Drain closes all open windows and publishes them. Called at the end of a
// bounded replay.
func (s *Service) Drain(ctx context.Context) {
	for _, agg := range s.aggs {
		agg := agg
		s.publish(ctx, agg.Drain())
	}
}

// Stop flushes the dispatcher and waits for in-flight work.
func (s *Service) Stop() {
	s.dispatcher.Stop()
}

func (s *Service) report(kind journal.Kind, key string, err error, payload string) {
	rec := journal.Record{
		Kind:   kind,
		Stage:  namespace.StageCandles,
		Key:    key,
		Reason: err.Error(),
	}
	if payload != "" && json.Valid([]byte(payload)) {
		rec.Payload = json.RawMessage(payload)
	}
	s.reporter.Report(rec)
}
