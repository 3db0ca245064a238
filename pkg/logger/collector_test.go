package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topics  []string
	flushed chan []AggregatedLogEntry
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{flushed: make(chan []AggregatedLogEntry, 4)}
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	p.topics = append(p.topics, topic)
	p.mu.Unlock()

	logs, _ := payload.([]AggregatedLogEntry)
	p.flushed <- logs
	return nil
}

func (p *capturePublisher) lastTopic() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.topics) == 0 {
		return ""
	}
	return p.topics[len(p.topics)-1]
}

func waitForFlush(t *testing.T, p *capturePublisher) []AggregatedLogEntry {
	t.Helper()

	select {
	case logs := <-p.flushed:
		return logs
	case <-time.After(2 * time.Second):
		t.Fatal("no flush arrived")
		return nil
	}
}

func TestCollectorAggregatesAndFlushesOnThreshold(t *testing.T) {
	pub := newCapturePublisher()
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "error_digest",
		Publisher:      pub,
	})
	defer c.Close()

	for i := 0; i < 3; i++ {
		c.AddLog("error", "store failed", map[string]interface{}{"backend": "clickhouse"}, "repo.go:42")
	}
	c.AddLog("error", "publish failed", map[string]interface{}{"backend": "kafka"}, "pub.go:17")

	logs := waitForFlush(t, pub)
	require.Len(t, logs, 2)
	assert.Equal(t, "error_digest", pub.lastTopic())

	byMessage := make(map[string]AggregatedLogEntry, len(logs))
	for _, entry := range logs {
		byMessage[entry.Message] = entry
	}
	require.Contains(t, byMessage, "store failed")
	assert.Equal(t, 3, byMessage["store failed"].Count)
	assert.Equal(t, "error", byMessage["store failed"].Level)
	assert.Equal(t, "repo.go:42", byMessage["store failed"].Caller)
	assert.Equal(t, 1, byMessage["publish failed"].Count)
	assert.False(t, byMessage["store failed"].FirstSeen.After(byMessage["store failed"].LastSeen))
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := newCapturePublisher()
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "error_digest",
		Publisher:      pub,
	})

	c.AddLog("error", "lonely failure", nil, "one.go:1")
	c.Close()

	logs := waitForFlush(t, pub)
	require.Len(t, logs, 1)
	assert.Equal(t, "lonely failure", logs[0].Message)
}

func TestLoggerFeedsCollector(t *testing.T) {
	pub := newCapturePublisher()
	log, err := New(&Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)

	log.AddCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "error_digest",
		Publisher:      pub,
	})

	// Same call site both times so the entries share an aggregation key.
	for i := 0; i < 2; i++ {
		log.Error("archive insert failed", String("table", "runs"))
	}
	log.RemoveCollector()

	logs := waitForFlush(t, pub)
	require.Len(t, logs, 1)
	assert.Equal(t, 2, logs[0].Count)
	assert.Equal(t, "archive insert failed", logs[0].Message)
	assert.Equal(t, "runs", logs[0].Fields["table"])
	assert.NotEmpty(t, logs[0].Caller)
}
