package repository

import (
	"context"

	"DemandCast/internal/domain/models"
)

type keyedPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaRunEvents publishes lifecycle events keyed by run id so one run stays on one partition.
type KafkaRunEvents struct {
	producer keyedPublisher
	topic    string
}

func NewKafkaRunEvents(producer keyedPublisher, topic string) *KafkaRunEvents {
	return &KafkaRunEvents{producer: producer, topic: topic}
}

func (k *KafkaRunEvents) PublishRunEvent(ctx context.Context, evt models.RunEvent) error {
	return k.producer.Publish(ctx, k.topic, []byte(evt.RunID), evt)
}
