package queue

import (
	"context"
	"time"
)

// QueueMode selects which halves of the queue a process runs.
type QueueMode int

const (
	// ModeProducerConsumer publishes and works messages in one process.
	ModeProducerConsumer QueueMode = iota
	// ModeProducerOnly publishes without starting workers.
	ModeProducerOnly
	// ModeConsumerOnly works messages published elsewhere.
	ModeConsumerOnly
)

func (m QueueMode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	default:
		return "producer-consumer"
	}
}

// QueueService is the publishing side of the queue, the only part most
// callers depend on.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// QueueConfig tunes the consuming side.
type QueueConfig struct {
	Workers    int           // concurrent message workers
	RetryLimit int           // attempts before a message is buried
	RetryDelay time.Duration // delay before a failed message re-enters the queue
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string
	Type      string
	Payload   interface{}
	Attempts  int
	Timestamp time.Time
}
