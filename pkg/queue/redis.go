package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"FolioSim/pkg/logger"
)

const (
	popTimeout    = time.Second
	pingTimeout   = 5 * time.Second
	requeueEvery  = 5 * time.Second
	defaultPrefix = "foliosim:queue"
)

// RedisQueue is a Redis-list backed job queue with delayed retries and a
// dead-letter list for messages that exhaust them.
type RedisQueue struct {
	logger *logger.Logger
	config *QueueConfig
	client *redis.Client
	mode   QueueMode

	pendingKey string
	retryKey   string
	deadKey    string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix overrides the Redis key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(q *RedisQueue) {
		q.pendingKey = prefix + ":messages"
		q.retryKey = prefix + ":retry"
		q.deadKey = prefix + ":dlq"
	}
}

// NewRedisQueue creates a queue on client. Jobs must be registered before
// Start for consumer modes.
func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &RedisQueue{
		logger: lgr,
		config: config,
		client: client,
		mode:   mode,
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
	WithKeyPrefix(defaultPrefix)(q)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// RegisterJob binds a job to its message type.
func (q *RedisQueue) RegisterJob(job Job) {
	if q.mode == ModeProducerOnly {
		q.logger.Warn("job registration ignored in producer-only mode",
			logger.String("job", job.Name()))
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.jobs[job.Type()]; dup {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
	q.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start verifies the Redis connection and launches the workers unless the
// queue is producer-only.
func (q *RedisQueue) Start() error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	q.running = true
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(q.ctx, pingTimeout)
	defer cancel()
	if err := q.client.Ping(ctx).Err(); err != nil {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
		return fmt.Errorf("redis ping: %w", err)
	}

	if q.mode == ModeProducerOnly {
		q.logger.Info("queue publisher started", logger.String("addr", q.client.Options().Addr))
		return nil
	}

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.work(i)
	}
	q.wg.Add(1)
	go q.requeueLoop()

	q.logger.Info("queue started",
		logger.Int("workers", q.config.Workers),
		logger.String("mode", q.mode.String()),
		logger.String("addr", q.client.Options().Addr))
	return nil
}

// Stop cancels the workers and waits for them up to ctx's deadline.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.mu.Unlock()

	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue workers did not stop in time", logger.Error(ctx.Err()))
		return fmt.Errorf("stop queue: %w", ctx.Err())
	case <-done:
		q.logger.Info("queue stopped")
		return nil
	}
}

// PublishMessage enqueues one payload for the job registered under msgType.
func (q *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.running {
		return fmt.Errorf("queue not running")
	}
	if q.mode != ModeProducerOnly {
		if _, ok := q.jobs[msgType]; !ok {
			return fmt.Errorf("no job registered for type: %s", msgType)
		}
	}

	raw, err := json.Marshal(Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.client.LPush(ctx, q.pendingKey, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	return nil
}

func (q *RedisQueue) work(id int) {
	defer q.wg.Done()
	q.logger.Info("queue worker started", logger.Int("worker_id", id))

	for {
		select {
		case <-q.ctx.Done():
			q.logger.Info("queue worker stopped", logger.Int("worker_id", id))
			return
		default:
		}

		res, err := q.client.BRPop(q.ctx, popTimeout, q.pendingKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			q.logger.Error("queue pop failed", logger.Error(err))
			time.Sleep(popTimeout)
			continue
		}
		if len(res) != 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			q.logger.Error("queue message corrupt", logger.Error(err))
			continue
		}
		q.dispatch(msg)
	}
}

func (q *RedisQueue) dispatch(msg Message) {
	q.mu.RLock()
	job, ok := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !ok {
		q.logger.Error("no job for message type",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		return
	}

	start := time.Now()
	err := job.Handle(q.ctx, rawPayload(msg.Payload))
	if err == nil {
		q.logger.Debug("message handled",
			logger.String("job", job.Name()),
			logger.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return
	}
	if errors.Is(err, context.Canceled) {
		q.logger.Warn("message abandoned on shutdown",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		return
	}
	q.retryOrBury(msg, job, err)
}

// rawPayload re-encodes the generic values a JSON round trip produces so
// jobs can decode them into their own types via ParsePayload.
func rawPayload(payload interface{}) interface{} {
	switch payload.(type) {
	case map[string]interface{}, []interface{}:
		raw, err := json.Marshal(payload)
		if err != nil {
			return payload
		}
		return json.RawMessage(raw)
	default:
		return payload
	}
}

func (q *RedisQueue) retryOrBury(msg Message, job Job, handleErr error) {
	q.logger.Error("message handling failed",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(handleErr))

	if msg.Attempts >= q.config.RetryLimit {
		q.logger.Error("message moved to dead letter queue",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		q.pushDead(msg)
		return
	}

	msg.Attempts++
	due := time.Now().Add(q.config.RetryDelay)
	raw, err := json.Marshal(msg)
	if err != nil {
		q.logger.Error("marshal retry message", logger.Error(err))
		return
	}
	if err := q.client.ZAdd(context.Background(), q.retryKey, redis.Z{
		Score:  float64(due.Unix()),
		Member: raw,
	}).Err(); err != nil {
		q.logger.Error("schedule retry", logger.Error(err))
		return
	}
	q.logger.Info("retry scheduled",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.String("due", due.Format(time.RFC3339)))
}

func (q *RedisQueue) pushDead(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		q.logger.Error("marshal dead message", logger.Error(err))
		return
	}
	if err := q.client.LPush(context.Background(), q.deadKey, raw).Err(); err != nil {
		q.logger.Error("push dead message", logger.Error(err))
	}
}

// requeueLoop periodically moves due retries back onto the pending list.
func (q *RedisQueue) requeueLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(requeueEvery)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.requeueDue()
		}
	}
}

func (q *RedisQueue) requeueDue() {
	max := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := q.client.ZRangeByScore(q.ctx, q.retryKey, &redis.ZRangeBy{Min: "0", Max: max}).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		q.logger.Error("fetch due retries", logger.Error(err))
		return
	}

	for _, raw := range due {
		select {
		case <-q.ctx.Done():
			return
		default:
		}

		pipe := q.client.TxPipeline()
		pipe.ZRem(q.ctx, q.retryKey, raw)
		pipe.LPush(q.ctx, q.pendingKey, raw)
		if _, err := pipe.Exec(q.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			q.logger.Error("requeue retry", logger.Error(err))
		}
	}
}
