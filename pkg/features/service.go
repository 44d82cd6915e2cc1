package features

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

// Service consumes flat records from the bus and stages them for the
// materializer. Mapping is stateless, so no dispatcher is needed; the
// buffer serializes access itself.
type Service struct {
	mapper   *Mapper
	buffer   *Buffer
	reporter journal.Reporter
}

// NewService binds a mapper and staging buffer.
func NewService(mapper *Mapper, buffer *Buffer, reporter journal.Reporter) *Service {
	if reporter == nil {
		reporter = journal.LogReporter{}
	}
	return &Service{mapper: mapper, buffer: buffer, reporter: reporter}
}

var _ bus.Handler = (*Service)(nil)

// Consume maps one inbound record into the staging buffer. Failures are
// journaled and dropped; a malformed record is never retried.
func (s *Service) Consume(_ context.Context, key, value string) error {
	record, err := s.mapper.MapPayload([]byte(value))
	if err != nil {
		kind := journal.KindMappingFailure
		if errors.Is(err, domain.ErrMalformedRecord) {
			kind = journal.KindMalformed
		}
		rec := journal.Record{
			Kind:   kind,
			Stage:  namespace.StageFeatures,
			Key:    key,
			Reason: err.Error(),
		}
		if json.Valid([]byte(value)) {
			rec.Payload = json.RawMessage(value)
		}
		s.reporter.Report(rec)
		return nil
	}

	s.buffer.Put(record)
	logx.Debugf("[%s] staged %s, %d keys pending", namespace.StageFeatures, record.StorageKey(), s.buffer.Len())
	return nil
}
