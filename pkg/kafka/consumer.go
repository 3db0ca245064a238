package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

const (
	readPollTimeout = 3 * time.Second
	commitTimeout   = 2 * time.Second
	commitAttempts  = 3
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads registered topics and fans messages out to a shared worker
// pool. A (topic, partition) pair is handled by at most one worker at a
// time, so per-partition ordering survives the fan-out. Offsets are
// committed explicitly: only after a message succeeds or is parked in the
// dead letter topic.
type Consumer struct {
	cfg      *ConsumerConfig
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	dlq      *kafka.Writer
	hook     ConsumerHook

	inbox    chan kafka.Message
	quit     chan struct{}
	readerWG sync.WaitGroup
	workerWG sync.WaitGroup
	stopOnce sync.Once

	lockMu    sync.Mutex
	partLocks map[partitionKey]*sync.Mutex
}

type partitionKey struct {
	topic     string
	partition int
}

// NewConsumer creates a Kafka consumer. Handlers must be registered before
// Start.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:         "default",
		AutoOffsetReset: "earliest",
		WorkerCount:     1,
		BufferSize:      10,
		RetryMax:        3,
		BackoffMin:      50 * time.Millisecond,
		BackoffMax:      2 * time.Second,
		MinBytes:        10e3, // 10KB
		MaxBytes:        10e6, // 10MB
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:       cfg,
		readers:   make(map[string]*kafka.Reader),
		handlers:  make(map[string]MessageHandler),
		hook:      NoopHook{},
		inbox:     make(chan kafka.Message, cfg.BufferSize),
		quit:      make(chan struct{}),
		partLocks: make(map[partitionKey]*sync.Mutex),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}

	initConsumerMetrics()
	return c, nil
}

// WithConsumerHook sets a hook implementation for handling lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler binds a handler to its topic.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, dup := c.handlers[topic]; dup {
		log.Printf("kafka consumer: handler already registered topic=%s", topic)
		return
	}
	c.handlers[topic] = handler
}

// Start opens one reader per registered topic and launches the worker pool.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}

	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: startOffset(c.cfg.AutoOffsetReset),
		})
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workerWG.Add(1)
		go c.worker()
	}
	for topic, reader := range c.readers {
		c.readerWG.Add(1)
		go c.readLoop(topic, reader)
	}

	log.Printf("kafka consumer: started topics=%d workers=%d", len(c.readers), c.cfg.WorkerCount)
	return nil
}

// Stop drains the consumer: readers exit first, then the inbox is closed so
// workers can finish in-flight messages. Waits up to ctx's deadline.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error

	c.stopOnce.Do(func() {
		close(c.quit)

		done := make(chan struct{})
		go func() {
			c.readerWG.Wait()
			close(c.inbox)
			c.workerWG.Wait()
			close(done)
		}()

		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("consumer drain: %w", ctx.Err())
		case <-done:
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				log.Printf("kafka consumer: close reader topic=%s: %v", topic, err)
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				log.Printf("kafka consumer: close dlq writer: %v", err)
			}
		}
		if stopErr == nil {
			log.Println("kafka consumer: stopped")
		}
	})

	return stopErr
}

func startOffset(reset string) int64 {
	if reset == "latest" {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}

func (c *Consumer) readLoop(topic string, reader *kafka.Reader) {
	defer c.readerWG.Done()

	for {
		select {
		case <-c.quit:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), readPollTimeout)
		msg, err := reader.FetchMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				log.Printf("kafka consumer: fetch topic=%s: %v", topic, err)
			}
			continue
		}
		if !c.enqueue(msg) {
			return
		}
	}
}

// enqueue blocks until the worker pool accepts the message, easing off as
// the inbox fills. Returns false once shutdown begins.
func (c *Consumer) enqueue(msg kafka.Message) bool {
	for {
		select {
		case c.inbox <- msg:
			c.observeInbox(msg.Topic)
			return true
		case <-c.quit:
			return false
		default:
			fullness := float64(len(c.inbox)) / float64(cap(c.inbox))
			consumerQueueFullness.WithLabelValues(msg.Topic).Set(fullness)
			if fullness > 0.8 {
				time.Sleep(10 * time.Millisecond)
			} else {
				runtime.Gosched()
			}
		}
	}
}

func (c *Consumer) observeInbox(topic string) {
	depth := float64(len(c.inbox))
	consumerQueueDepth.WithLabelValues(topic).Set(depth)
	consumerQueueFullness.WithLabelValues(topic).Set(depth / float64(cap(c.inbox)))
}

func (c *Consumer) worker() {
	defer c.workerWG.Done()

	for msg := range c.inbox {
		handler, ok := c.handlers[msg.Topic]
		if !ok {
			continue
		}
		c.process(handler, msg)
	}
}

// process runs one message through its handler with retries and
// per-partition serialization, then settles its offset.
func (c *Consumer) process(handler MessageHandler, msg kafka.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("kafka consumer: hook panic topic=%s: %v", msg.Topic, r)
		}
	}()

	lock := c.partitionLock(msg.Topic, msg.Partition)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	err := c.handleWithRetry(handler, msg)
	consumerHandleLatency.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())

	if err != nil {
		c.hook.OnError(context.Background(), msg.Topic, msg, msg.Value, err)
		log.Printf("kafka consumer: giving up topic=%s partition=%d offset=%d: %v",
			msg.Topic, msg.Partition, msg.Offset, err)
		if !c.parkInDLQ(msg) {
			// Leave the offset uncommitted so the message is redelivered.
			return
		}
	}
	c.commitWithRetry(msg, commitAttempts)
}

// handleWithRetry invokes the handler up to RetryMax+1 times with jittered
// backoff between attempts. A BeforeHandle error skips the handler and is
// not retried. Handler panics are converted to errors so a poisoned message
// still reaches the dead letter topic.
func (c *Consumer) handleWithRetry(handler MessageHandler, msg kafka.Message) error {
	for attempt := 1; ; attempt++ {
		ctx, km, data, err := c.hook.BeforeHandle(context.Background(), msg.Topic, msg, msg.Value)
		if err != nil {
			return err
		}
		err = c.runHandler(ctx, handler, data)
		c.hook.AfterHandle(ctx, msg.Topic, km, data, err)
		if err == nil {
			return nil
		}
		if attempt > c.cfg.RetryMax {
			return err
		}
		c.hook.OnError(ctx, msg.Topic, km, data, err)
		select {
		case <-time.After(jitteredBackoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.quit:
			return err
		}
	}
}

func (c *Consumer) runHandler(ctx context.Context, handler MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, data)
}

// parkInDLQ forwards an exhausted message so its offset can be committed
// without losing the payload. Reports whether the message was parked.
func (c *Consumer) parkInDLQ(msg kafka.Message) bool {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return false
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Value:   msg.Value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(msg.Topic)}},
	})
	if err != nil {
		log.Printf("kafka consumer: dlq write topic=%s: %v", c.cfg.DLQTopic, err)
		return false
	}
	return true
}

func (c *Consumer) commitWithRetry(msg kafka.Message, attempts int) {
	reader := c.readers[msg.Topic]
	if reader == nil {
		return
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
		err = reader.CommitMessages(ctx, msg)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(jitteredBackoff(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	log.Printf("kafka consumer: commit failed after %d attempts: %v", attempts, err)
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()

	key := partitionKey{topic: topic, partition: partition}
	lock, ok := c.partLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.partLocks[key] = lock
	}
	return lock
}

// jitteredBackoff grows exponentially from floor toward ceil and subtracts
// up to half the value so competing retries spread out.
func jitteredBackoff(floor, ceil time.Duration, attempt int) time.Duration {
	if floor <= 0 {
		floor = 50 * time.Millisecond
	}
	if ceil < floor {
		ceil = floor
	}
	d := floor * time.Duration(1<<uint(attempt-1))
	if d > ceil || d <= 0 {
		d = ceil
	}
	return d - time.Duration(rand.Int63n(int64(d)/2))
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerQueueFullness *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerMetricsOnce   sync.Once
)

func initConsumerMetrics() {
	consumerMetricsOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "foliosim_kafka_consumer_queue_depth", Help: "Messages waiting in the consumer inbox"},
			[]string{"topic"},
		)
		consumerQueueFullness = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "foliosim_kafka_consumer_queue_fullness", Help: "Inbox utilization as len/cap"},
			[]string{"topic"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "foliosim_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}
