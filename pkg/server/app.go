package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	imiddleware "FolioSim/internal/middleware"
	"FolioSim/internal/usecase"
	pkgch "FolioSim/pkg/clickhouse"
	"FolioSim/pkg/config"
	xhttp "FolioSim/pkg/http"
	pkgkafka "FolioSim/pkg/kafka"
	applogger "FolioSim/pkg/logger"
	"FolioSim/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	logger   *applogger.Logger
	handlers []xhttp.Handler
	pipeline *imiddleware.ArchivePipeline
	recorder *usecase.RunRecorder

	consumer *pkgkafka.Consumer
	kh       pkgkafka.MessageHandler
	jobQueue *queue.RedisQueue
	chClient *pkgch.Client
	rdb      *redis.Client

	httpServer *xhttp.Server
}

// New creates an App with its required dependencies. Optional pieces
// (Kafka consumer, Redis job queue, infrastructure clients) attach via
// the Set methods.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	handlers []xhttp.Handler,
	pipeline *imiddleware.ArchivePipeline,
	recorder *usecase.RunRecorder,
) *App {
	return &App{
		cfg:      cfg,
		logger:   logger,
		handlers: handlers,
		pipeline: pipeline,
		recorder: recorder,
	}
}

// SetKafkaConsumer attaches the consumer that archives run events.
func (a *App) SetKafkaConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = h
}

// SetJobQueue attaches the Redis-backed notification queue.
func (a *App) SetJobQueue(q *queue.RedisQueue) {
	a.jobQueue = q
}

// SetClients attaches infrastructure clients so shutdown can close them.
func (a *App) SetClients(ch *pkgch.Client, rdb *redis.Client) {
	a.chClient = ch
	a.rdb = rdb
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.pipeline.Start(ctx)
	a.logger.Info("archive pipeline started", applogger.String("backend", a.cfg.Backend.Type))

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			a.logger.Error("job queue start error", applogger.Error(err))
			return err
		}
		a.logger.Info("notification queue started")
	}

	a.httpServer = xhttp.NewServer(a.handlers,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(a.cfg.Server.CORSOrigins),
		xhttp.WithLogger(a.logger),
	)
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops services in reverse start order: HTTP first so no new
// runs arrive, then the pipelines that drain what is in flight.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	a.pipeline.Stop()

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("job queue stop error", applogger.Error(err))
		}
	}

	// Final collector flush goes through the Redis client, so it must run
	// before the client closes.
	a.logger.RemoveCollector()

	a.recorder.Close()

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("redis close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
