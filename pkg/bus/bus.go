// Package bus abstracts the message bus: keyed producers, consumer handlers,
// admin operations on topics and groups, and the partition dispatcher that
// gives every key a single sequential worker.
package bus

import (
	"context"

	"featuremill/pkg/namespace"
)

// Producer publishes keyed records to a single topic. Records sharing a key
// land on the same partition and are consumed in order.
type Producer interface {
	KPush(ctx context.Context, key, value string) error
	Close() error
}

// Handler processes one record from a topic. Matches the kq consume
// contract so implementations plug straight into a Kafka queue.
type Handler interface {
	Consume(ctx context.Context, key, value string) error
}

// Consumer runs a consume loop against one topic and group.
type Consumer interface {
	Start()
	Stop()
}

// Admin manages topics and consumer groups; the backfill orchestrator uses
// it to reserve and reclaim job-scoped namespaces.
type Admin interface {
	CreateTopics(ctx context.Context, partitions int, topics ...string) error
	DeleteTopics(ctx context.Context, topics ...string) error
	DeleteGroups(ctx context.Context, groups ...string) error
}

// OffsetForMode maps the ingestion mode to the consumer start offset:
// historical replay reads a job topic from the beginning, live consumption
// joins at the tail.
func OffsetForMode(mode namespace.Mode) string {
	if mode == namespace.ModeHistorical {
		return "first"
	}
	return "last"
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, key, value string) error

func (f HandlerFunc) Consume(ctx context.Context, key, value string) error {
	return f(ctx, key, value)
}
