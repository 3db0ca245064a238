package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	domrepo "FolioSim/internal/domain/repository"
	domsvc "FolioSim/internal/domain/service"
	"FolioSim/internal/engine"
	"FolioSim/internal/handler/api"
	imiddleware "FolioSim/internal/middleware"
	internalrepo "FolioSim/internal/repository"
	"FolioSim/internal/service/ratelimit"
	"FolioSim/internal/services/notify"
	"FolioSim/internal/usecase"
	"FolioSim/pkg/cache"
	pkgch "FolioSim/pkg/clickhouse"
	"FolioSim/pkg/config"
	xhttp "FolioSim/pkg/http"
	pkgkafka "FolioSim/pkg/kafka"
	applogger "FolioSim/pkg/logger"
	"FolioSim/pkg/metrics"
	"FolioSim/pkg/queue"
	"FolioSim/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// archive schema exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		`CREATE TABLE IF NOT EXISTS ` + db + `.run_results (
			id String,
			ts DateTime,
			initial_investment Float64,
			time_horizon Int32,
			num_simulations Int32,
			mode String,
			account_type String,
			median_final_value Float64,
			mean_final_value Float64,
			p5_final_value Float64,
			p90_final_value Float64,
			elapsed_ms Int64
		) ENGINE=MergeTree ORDER BY ts`,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideRedisClient creates the shared Redis client, nil when disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideKafkaProducer creates a Kafka producer when the run-event backend
// is Kafka, nil otherwise.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideKafkaConsumer creates the consumer that archives run events, nil
// when the backend is direct ClickHouse.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}

	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRunArchive creates the ClickHouse-backed run archive.
func ProvideRunArchive(chClient *pkgch.Client, cfg *config.Config) domrepo.RunArchive {
	return internalrepo.NewClickHouseArchive(chClient.DB(), cfg.ClickHouse.Database+".run_results")
}

// ProvideRunPublisher creates the Kafka run-event publisher, nil when the
// backend writes to ClickHouse directly.
func ProvideRunPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaRunPublisher(producer, cfg.Kafka.Topic)
}

// ProvideHistoryStore selects the run-history backend.
func ProvideHistoryStore(cfg *config.Config, rdb *redis.Client) (domrepo.HistoryStore, error) {
	switch cfg.History.Backend {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("history backend redis requires a redis client")
		}
		return internalrepo.NewRedisHistory(rdb, cfg.History.Limit), nil
	default:
		return internalrepo.NewMemoryHistory(cfg.History.Limit), nil
	}
}

// ProvideRunsHandler registers the consumer handler for the runs topic.
func ProvideRunsHandler(archive domrepo.RunArchive, m domrepo.Metrics, cfg *config.Config) *usecase.KafkaRunsHandler {
	return usecase.NewKafkaRunsHandler(cfg.Kafka.Topic, archive, m)
}

// ProvideRunRecorder creates the backend-switching run recorder.
func ProvideRunRecorder(pub domrepo.Publisher, archive domrepo.RunArchive, m domrepo.Metrics, cfg *config.Config) *usecase.RunRecorder {
	return usecase.NewRunRecorder(pub, archive, m, cfg.Backend.Type)
}

// ProvideArchivePipeline buffers run records in front of the recorder.
func ProvideArchivePipeline(recorder *usecase.RunRecorder, m domrepo.Metrics, cfg *config.Config) *imiddleware.ArchivePipeline {
	opts := []imiddleware.PipelineOption{}
	if cfg.Backend.BufferSize > 0 {
		opts = append(opts, imiddleware.WithBufferSize(cfg.Backend.BufferSize))
	}
	if cfg.Backend.BackoffMin > 0 && cfg.Backend.BackoffMax > 0 {
		opts = append(opts, imiddleware.WithBackoff(cfg.Backend.BackoffMin, cfg.Backend.BackoffMax))
	}
	return imiddleware.NewArchivePipeline(recorder, m, opts...)
}

// ProvideSimulator creates the Monte Carlo engine.
func ProvideSimulator(cfg *config.Config) domsvc.Simulator {
	return engine.NewOrchestrator(engine.WithWorkers(cfg.Engine.Workers))
}

// ProvideResultCache creates the seeded-result cache. Failures degrade to
// no cache instead of failing startup.
func ProvideResultCache(cfg *config.Config, logger *applogger.Logger) cache.Service {
	if !cfg.Cache.Enabled {
		return nil
	}
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache()
	}

	host, port := splitHostPort(cfg.Redis.Addr)
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		logger.Warn("result cache unavailable", applogger.Error(err))
		return nil
	}
	return cache.NewLayeredCache(rc)
}

// ProvideNotifyJob creates the webhook delivery job.
func ProvideNotifyJob(cfg *config.Config, logger *applogger.Logger) *notify.RunCompletedJob {
	client := notify.NewWebhookClient(cfg.Notify.WebhookURL, cfg.Notify.Timeout, cfg.Notify.RetryMax)
	return notify.NewRunCompletedJob(client, logger)
}

// ProvideJobQueue creates the Redis notification queue, nil when Redis is
// disabled or no webhook is configured.
func ProvideJobQueue(cfg *config.Config, rdb *redis.Client, logger *applogger.Logger, job *notify.RunCompletedJob) *queue.RedisQueue {
	if rdb == nil || cfg.Notify.WebhookURL == "" {
		return nil
	}

	q := queue.NewRedisQueue(logger, &queue.QueueConfig{
		Workers:    2,
		RetryLimit: cfg.Notify.RetryMax,
		RetryDelay: time.Second,
	}, rdb, queue.ModeProducerConsumer)
	q.RegisterJob(job)
	return q
}

// ProvideNotifier selects the notification dispatch path: the Redis queue
// when available, direct invocation otherwise, nil without a webhook.
func ProvideNotifier(cfg *config.Config, jobQueue *queue.RedisQueue, job *notify.RunCompletedJob, logger *applogger.Logger) queue.QueueService {
	if cfg.Notify.WebhookURL == "" {
		return nil
	}
	if jobQueue != nil {
		return jobQueue
	}
	return notify.NewDirectDispatcher(job, logger)
}

// ProvideSimulateUseCase assembles the simulation pipeline.
func ProvideSimulateUseCase(
	sim domsvc.Simulator,
	history domrepo.HistoryStore,
	pipeline *imiddleware.ArchivePipeline,
	m domrepo.Metrics,
	logger *applogger.Logger,
	resultCache cache.Service,
	notifier queue.QueueService,
	cfg *config.Config,
) *usecase.SimulateUseCase {
	opts := []usecase.SimulateOption{}
	if resultCache != nil {
		opts = append(opts, usecase.WithResultCache(resultCache, cfg.Cache.TTL))
	}
	if notifier != nil {
		opts = append(opts, usecase.WithNotifier(notifier))
	}
	if cfg.Engine.RequestTimeout > 0 {
		opts = append(opts, usecase.WithRequestTimeout(cfg.Engine.RequestTimeout))
	}

	return usecase.NewSimulateUseCase(sim, history, pipeline, m, logger, opts...)
}

// ProvideHistoryUseCase assembles the history/archive listing use case.
func ProvideHistoryUseCase(history domrepo.HistoryStore, archive domrepo.RunArchive) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(history, archive)
}

// ProvideRateLimiter creates the per-client token bucket.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSec)
}

// ProvideHandlers builds the HTTP handler set.
func ProvideHandlers(
	logger *applogger.Logger,
	simUC *usecase.SimulateUseCase,
	histUC *usecase.HistoryUseCase,
	rl *ratelimit.Limiter,
	history domrepo.HistoryStore,
	archive domrepo.RunArchive,
) []xhttp.Handler {
	sim := api.NewSimulationHandler(logger, simUC, histUC, rl,
		api.HealthTarget{Name: "history", Check: history.Health},
		api.HealthTarget{Name: "archive", Check: archive.Health},
	)
	stream := api.NewStreamHandler(logger, simUC)

	return []xhttp.Handler{sim, stream}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	handlers []xhttp.Handler,
	pipeline *imiddleware.ArchivePipeline,
	recorder *usecase.RunRecorder,
	consumer *pkgkafka.Consumer,
	runsHandler *usecase.KafkaRunsHandler,
	jobQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	rdb *redis.Client,
) *server.App {
	app := server.New(cfg, logger, handlers, pipeline, recorder)
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook{SlowThreshold: time.Second}))
		app.SetKafkaConsumer(consumer, runsHandler)
	}
	app.SetJobQueue(jobQueue)
	app.SetClients(chClient, rdb)
	if jobQueue != nil && cfg.Logging.Collector.Enabled {
		interval := cfg.Logging.Collector.Interval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		threshold := cfg.Logging.Collector.Threshold
		if threshold <= 0 {
			threshold = 100
		}
		digest := notify.NewErrorDigestJob(logger)
		jobQueue.RegisterJob(digest)
		logger.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   interval,
			CountThreshold: threshold,
			Topic:          digest.Type(),
			Publisher:      jobQueue,
		})
	}
	return app
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}
