package bus

import (
	"context"

	"github.com/zeromicro/go-queue/kq"

	"featuremill/pkg/namespace"
)

// KafkaConf carries broker connection settings shared by every stage.
type KafkaConf struct {
	Brokers    []string `json:",optional"`
	Consumers  int      `json:",default=4"`
	Processors int      `json:",default=4"`
}

type kafkaProducer struct {
	pusher *kq.Pusher
}

// NewKafkaProducer returns a Producer backed by a kq pusher for one topic.
func NewKafkaProducer(brokers []string, topic string) Producer {
	return &kafkaProducer{pusher: kq.NewPusher(brokers, topic)}
}

func (p *kafkaProducer) KPush(ctx context.Context, key, value string) error {
	return p.pusher.KPush(ctx, key, value)
}

func (p *kafkaProducer) Close() error {
	return p.pusher.Close()
}

// NewKafkaConsumer builds a kq queue for the resolved namespace. The start
// offset follows the namespace mode: historical replays read from the first
// offset, live consumers join at the last.
func NewKafkaConsumer(c KafkaConf, ns namespace.Namespace, h Handler) Consumer {
	conf := kq.KqConf{
		Brokers:    c.Brokers,
		Topic:      ns.Topic,
		Group:      ns.Group,
		Offset:     OffsetForMode(ns.Mode),
		Consumers:  c.Consumers,
		Processors: c.Processors,
	}
	conf.Name = ns.Group
	return kq.MustNewQueue(conf, kq.WithHandle(h.Consume))
}
