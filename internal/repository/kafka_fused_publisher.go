package repository

import (
	"context"

	"FinFuse/internal/domain/models"
	pkgkafka "FinFuse/pkg/kafka"
)

// Publisher is the part of the Kafka producer the fused publisher uses.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaFusedPublisher publishes fused signals keyed by subject, so every
// update for a subject lands on the same partition in order.
type KafkaFusedPublisher struct {
	p     Publisher
	topic string
}

func NewKafkaFusedPublisher(p Publisher, topic string) *KafkaFusedPublisher {
	return &KafkaFusedPublisher{p: p, topic: topic}
}

func (k *KafkaFusedPublisher) PublishFused(ctx context.Context, f models.FusedSignal) error {
	return k.p.Publish(ctx, k.topic, []byte(f.Subject), f)
}

var _ Publisher = (*pkgkafka.Producer)(nil)
