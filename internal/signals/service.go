package signals

import (
	"context"
	"encoding/json"

	"github.com/zeromicro/go-zero/core/logx"

	"featuremill/pkg/bus"
	"featuremill/pkg/domain"
	"featuremill/pkg/journal"
	"featuremill/pkg/namespace"
)

// Service consumes news stories and publishes one sentiment signal per
// affected asset, keyed by asset so each asset's signals stay ordered.
type Service struct {
	analyzer Analyzer
	producer bus.Producer
	reporter journal.Reporter
}

// NewService wires the sentiment stage.
func NewService(analyzer Analyzer, producer bus.Producer, reporter journal.Reporter) *Service {
	if reporter == nil {
		reporter = journal.LogReporter{}
	}
	return &Service{analyzer: analyzer, producer: producer, reporter: reporter}
}

var _ bus.Handler = (*Service)(nil)

// Consume handles one news story from the bus. Analyzer failures are logged
// and the story skipped; a story that cannot be analyzed is not retried.
func (s *Service) Consume(ctx context.Context, key, value string) error {
	story, err := domain.ParseNewsStory([]byte(value))
	if err != nil {
		rec := journal.Record{
			Kind:   journal.KindMalformed,
			Stage:  namespace.StageSignals,
			Key:    key,
			Reason: err.Error(),
		}
		if json.Valid([]byte(value)) {
			rec.Payload = json.RawMessage(value)
		}
		s.reporter.Report(rec)
		return nil
	}

	results, err := s.analyzer.Analyze(ctx, story)
	if err != nil {
		logx.Errorf("[%s] analyze %q: %v", namespace.StageSignals, story.Title, err)
		return nil
	}

	for _, signal := range results {
		payload, err := signal.Encode()
		if err != nil {
			logx.Errorf("[%s] encode signal %s: %v", namespace.StageSignals, signal.Asset, err)
			continue
		}
		if err := s.producer.KPush(ctx, signal.Asset, string(payload)); err != nil {
			logx.Errorf("[%s] publish signal %s: %v", namespace.StageSignals, signal.Asset, err)
			continue
		}
		logx.Infof("[%s] %s %s (%+d) from %q", namespace.StageSignals,
			signal.Asset, signal.Sentiment, signal.Score, story.Title)
	}
	return nil
}
