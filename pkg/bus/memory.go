package bus

import (
	"context"
	"fmt"
	"sync"
)

// Message is a keyed record captured by the in-memory bus.
type Message struct {
	Key   string
	Value string
}

// MemoryBus is an in-process bus used by tests and single-process backfill
// runs. Delivery to subscribers is synchronous and in publish order.
type MemoryBus struct {
	mu       sync.Mutex
	topics   map[string][]Message
	subs     map[string][]Handler
	created  map[string]int
	deleted  []string
	groups   []string
}

// NewMemoryBus returns an empty in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		topics:  make(map[string][]Message),
		subs:    make(map[string][]Handler),
		created: make(map[string]int),
	}
}

type memoryProducer struct {
	bus   *MemoryBus
	topic string
}

// Producer returns a producer bound to the given topic.
func (b *MemoryBus) Producer(topic string) Producer {
	return &memoryProducer{bus: b, topic: topic}
}

func (p *memoryProducer) KPush(ctx context.Context, key, value string) error {
	return p.bus.publish(ctx, p.topic, key, value)
}

func (p *memoryProducer) Close() error { return nil }

func (b *MemoryBus) publish(ctx context.Context, topic, key, value string) error {
	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], Message{Key: key, Value: value})
	handlers := append([]Handler(nil), b.subs[topic]...)
	b.mu.Unlock()

	for _, h := range handlers {
		if err := h.Consume(ctx, key, value); err != nil {
			return fmt.Errorf("bus: memory consume %s: %w", topic, err)
		}
	}
	return nil
}

// Subscribe registers a handler invoked synchronously for each publish.
func (b *MemoryBus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], h)
}

// Messages returns a copy of everything published to a topic.
func (b *MemoryBus) Messages(topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.topics[topic]...)
}

var _ Admin = (*MemoryBus)(nil)

// CreateTopics records topic creation.
func (b *MemoryBus) CreateTopics(ctx context.Context, partitions int, topics ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		b.created[t] = partitions
		if _, ok := b.topics[t]; !ok {
			b.topics[t] = nil
		}
	}
	return nil
}

// DeleteTopics drops topics and records the deletion.
func (b *MemoryBus) DeleteTopics(ctx context.Context, topics ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		delete(b.topics, t)
		delete(b.created, t)
		b.deleted = append(b.deleted, t)
	}
	return nil
}

// DeleteGroups records group deletion.
func (b *MemoryBus) DeleteGroups(ctx context.Context, groups ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groups = append(b.groups, groups...)
	return nil
}

// DeletedTopics lists topics removed so far.
func (b *MemoryBus) DeletedTopics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

// DeletedGroups lists groups removed so far.
func (b *MemoryBus) DeletedGroups() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.groups...)
}

// HasTopic reports whether a topic currently exists.
func (b *MemoryBus) HasTopic(topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.topics[topic]
	return ok
}
