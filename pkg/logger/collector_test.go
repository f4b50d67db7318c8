package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) snapshot() [][]AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]AggregatedLogEntry(nil), p.batches...)
}

func TestCollectorFoldsDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 50, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "batch failed", map[string]interface{}{"batch": 1}, "x.go:1")
	}
	c.AddLog("error", "batch failed", map[string]interface{}{"batch": 2}, "x.go:1")
	assert.Equal(t, 2, c.Pending())

	c.Close()

	got := pub.snapshot()
	require.Len(t, got, 1)
	require.Len(t, got[0], 2)
	assert.Equal(t, "logs", pub.topic)

	counts := map[int]int{}
	for _, e := range got[0] {
		counts[e.Fields["batch"].(int)] = e.Count
	}
	assert.Equal(t, map[int]int{1: 3, 2: 1}, counts)
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop().With(String("run_id", "r1"))
	l.AttachCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 50, Topic: "logs", Publisher: pub})

	l.Error("persist failed", Error(errors.New("conn reset")), Int("rows", 10))
	l.Warn("not collected")
	l.DetachCollector()

	got := pub.snapshot()
	require.Len(t, got, 1)
	require.Len(t, got[0], 1)
	e := got[0][0]
	assert.Equal(t, "persist failed", e.Message)
	assert.Equal(t, "r1", e.Fields["run_id"])
	assert.Equal(t, "conn reset", e.Fields["error"])
	assert.Equal(t, int64(10), e.Fields["rows"])
}
