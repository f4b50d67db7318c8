package repository

import (
	"context"
	"testing"
	"time"

	"DemandCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMessage struct {
	topic string
	key   string
	value interface{}
}

type captureProducer struct{ sent []capturedMessage }

func (c *captureProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	c.sent = append(c.sent, capturedMessage{topic: topic, key: string(key), value: value})
	return nil
}

func TestKafkaRunEventsKeyedByRun(t *testing.T) {
	p := &captureProducer{}
	ev := NewKafkaRunEvents(p, "forecast.runs")

	evt := models.RunEvent{RunID: "r9", Status: models.RunRunning, Progress: 10, Timestamp: time.Now()}
	require.NoError(t, ev.PublishRunEvent(context.Background(), evt))

	require.Len(t, p.sent, 1)
	assert.Equal(t, "forecast.runs", p.sent[0].topic)
	assert.Equal(t, "r9", p.sent[0].key)
	assert.Equal(t, evt, p.sent[0].value)
}
