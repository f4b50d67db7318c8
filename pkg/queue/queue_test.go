package queue

import (
	"context"
	"encoding/json"
	"testing"

	"DemandCast/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runPayload struct {
	RunID string `json:"run_id"`
	Days  int    `json:"days"`
}

func TestNewMessageEncodesPayload(t *testing.T) {
	msg, err := newMessage("forecast.run", runPayload{RunID: "r1", Days: 60})
	require.NoError(t, err)
	assert.Equal(t, "forecast.run", msg.Type)
	assert.JSONEq(t, `{"run_id":"r1","days":60}`, string(msg.Payload))

	p, err := ParsePayload[runPayload](msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, "r1", p.RunID)
	assert.Equal(t, 60, p.Days)
}

func TestNewMessageKeepsRawPayload(t *testing.T) {
	raw := json.RawMessage(`{"run_id":"r2"}`)
	msg, err := newMessage("forecast.run", raw)
	require.NoError(t, err)
	assert.Equal(t, raw, msg.Payload)
}

func TestParsePayloadRejectsEmpty(t *testing.T) {
	_, err := ParsePayload[runPayload](nil)
	require.Error(t, err)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(Message{Attempts: 0}, 2))
	assert.True(t, retryable(Message{Attempts: 1}, 2))
	assert.False(t, retryable(Message{Attempts: 2}, 2))
	assert.False(t, retryable(Message{}, 0))
}

func TestKeysUsePrefix(t *testing.T) {
	q := NewRedisQueue(logger.Nop(), nil, redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), ModeProducerOnly,
		WithKeyPrefix("demandcast:queue:forecast"))
	assert.Equal(t, "demandcast:queue:forecast:messages", q.queueKey())
	assert.Equal(t, "demandcast:queue:forecast:retry", q.retryKey())
	assert.Equal(t, "demandcast:queue:forecast:dlq", q.deadLetterKey())
	assert.Equal(t, 1, q.config.Workers)
}

func TestEnqueueRequiresRunningQueue(t *testing.T) {
	q := NewRedisQueue(logger.Nop(), nil, redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), ModeProducerOnly)
	err := q.Enqueue(context.Background(), "forecast.run", runPayload{})
	require.Error(t, err)
}
