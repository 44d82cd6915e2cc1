package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaAdmin implements Admin against the broker admin API.
type KafkaAdmin struct {
	client *kafka.Client
}

// NewKafkaAdmin builds an admin client for the given brokers.
func NewKafkaAdmin(brokers []string) *KafkaAdmin {
	return &KafkaAdmin{client: &kafka.Client{Addr: kafka.TCP(brokers...)}}
}

var _ Admin = (*KafkaAdmin)(nil)

// CreateTopics provisions the given topics. Already-existing topics are not
// an error: namespace reservation is idempotent.
func (a *KafkaAdmin) CreateTopics(ctx context.Context, partitions int, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	if partitions <= 0 {
		partitions = 1
	}
	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             t,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
	}
	resp, err := a.client.CreateTopics(ctx, &kafka.CreateTopicsRequest{Topics: configs})
	if err != nil {
		return fmt.Errorf("bus: create topics: %w", err)
	}
	for topic, topicErr := range resp.Errors {
		if topicErr != nil && !errors.Is(topicErr, kafka.TopicAlreadyExists) {
			return fmt.Errorf("bus: create topic %s: %w", topic, topicErr)
		}
	}
	return nil
}

// DeleteTopics removes the given topics. Destructive; callers gate this on
// job completion.
func (a *KafkaAdmin) DeleteTopics(ctx context.Context, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	resp, err := a.client.DeleteTopics(ctx, &kafka.DeleteTopicsRequest{Topics: topics})
	if err != nil {
		return fmt.Errorf("bus: delete topics: %w", err)
	}
	for topic, topicErr := range resp.Errors {
		if topicErr != nil {
			return fmt.Errorf("bus: delete topic %s: %w", topic, topicErr)
		}
	}
	return nil
}

// DeleteGroups removes the given consumer groups.
func (a *KafkaAdmin) DeleteGroups(ctx context.Context, groups ...string) error {
	if len(groups) == 0 {
		return nil
	}
	resp, err := a.client.DeleteGroups(ctx, &kafka.DeleteGroupsRequest{GroupIDs: groups})
	if err != nil {
		return fmt.Errorf("bus: delete groups: %w", err)
	}
	for group, groupErr := range resp.Errors {
		if groupErr != nil {
			return fmt.Errorf("bus: delete group %s: %w", group, groupErr)
		}
	}
	return nil
}
