package repository

import (
	"context"

	pkgkafka "DataPull/pkg/kafka"
)

// KafkaLogPublisher ships aggregated log entries to a Kafka topic. It
// implements logger.Publisher.
type KafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func NewKafkaLogPublisher(p *pkgkafka.Producer) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: p}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
