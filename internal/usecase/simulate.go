package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"FolioSim/internal/domain/models"
	domrepo "FolioSim/internal/domain/repository"
	domsvc "FolioSim/internal/domain/service"
	"FolioSim/internal/engine"
	"FolioSim/internal/services/notify"
	"FolioSim/pkg/cache"
	xhttp "FolioSim/pkg/http"
	xlogger "FolioSim/pkg/logger"
	"FolioSim/pkg/queue"
)

const recordTimeout = 10 * time.Second

// RunSink receives completed run records for asynchronous archival.
type RunSink interface {
	Record(ctx context.Context, rec *models.RunRecord) error
}

// SimulateOption configures optional SimulateUseCase collaborators.
type SimulateOption func(*SimulateUseCase)

// WithResultCache caches responses of seeded (deterministic) requests.
func WithResultCache(c cache.Service, ttl time.Duration) SimulateOption {
	return func(uc *SimulateUseCase) {
		uc.cache = c
		uc.cacheTTL = ttl
	}
}

// WithNotifier publishes a run summary after every stored run.
func WithNotifier(q queue.QueueService) SimulateOption {
	return func(uc *SimulateUseCase) {
		uc.notifier = q
	}
}

// WithRequestTimeout bounds how long one simulation may run.
func WithRequestTimeout(d time.Duration) SimulateOption {
	return func(uc *SimulateUseCase) {
		uc.timeout = d
	}
}

// SimulateUseCase runs Monte Carlo simulations and fans the results out to
// history, archive and notification backends.
type SimulateUseCase struct {
	sim      domsvc.Simulator
	history  domrepo.HistoryStore
	sink     RunSink
	metrics  domrepo.Metrics
	logger   *xlogger.Logger
	cache    cache.Service
	cacheTTL time.Duration
	notifier queue.QueueService
	timeout  time.Duration
}

func NewSimulateUseCase(
	sim domsvc.Simulator,
	history domrepo.HistoryStore,
	sink RunSink,
	metrics domrepo.Metrics,
	logger *xlogger.Logger,
	opts ...SimulateOption,
) *SimulateUseCase {
	uc := &SimulateUseCase{
		sim:      sim,
		history:  history,
		sink:     sink,
		metrics:  metrics,
		logger:   logger,
		cacheTTL: time.Hour,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Simulate runs the full pipeline for one request.
func (uc *SimulateUseCase) Simulate(ctx context.Context, req *models.SimulationRequest) (*models.SimulationResponse, error) {
	return uc.simulate(ctx, req, nil)
}

// SimulateWithProgress behaves like Simulate and reports per-trial progress.
// Progress runs are never served from cache.
func (uc *SimulateUseCase) SimulateWithProgress(ctx context.Context, req *models.SimulationRequest, progress func(completed, total int)) (*models.SimulationResponse, error) {
	return uc.simulate(ctx, req, progress)
}

func (uc *SimulateUseCase) simulate(ctx context.Context, req *models.SimulationRequest, progress func(completed, total int)) (*models.SimulationResponse, error) {
	key := uc.cacheKey(req)
	if key != "" && progress == nil {
		if resp, ok := uc.cachedResponse(ctx, key); ok {
			return resp, nil
		}
	}

	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	start := time.Now()
	ens, err := uc.sim.RunWithProgress(ctx, req, progress)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			return nil, xhttp.BadRequestError(verr.Reason)
		}
		uc.metrics.RecordError("simulate")
		return nil, fmt.Errorf("run simulation: %w", err)
	}
	elapsed := time.Since(start)

	stats := engine.Aggregate(req, ens)
	resp := &models.SimulationResponse{
		ID:               uuid.NewString(),
		Seed:             ens.Seed,
		Parameters:       req,
		Statistics:       stats,
		TrajectorySample: trajectories(ens.Sample),
		PercentilePaths:  engine.PercentilePaths(ens, stats),
		ElapsedMS:        elapsed.Milliseconds(),
		CompletedAt:      time.Now().UTC(),
	}

	uc.metrics.RecordRun(req.Mode())
	uc.metrics.RecordLastMedian(req.Mode(), stats.FinalValues.P50)
	uc.metrics.RecordLatency("simulate", elapsed.Seconds())

	rec := &models.RunRecord{
		ID:         resp.ID,
		Timestamp:  resp.CompletedAt,
		Parameters: req,
		Statistics: stats,
		ElapsedMS:  resp.ElapsedMS,
	}
	uc.record(rec)

	if key != "" {
		uc.cacheResponse(ctx, key, resp)
	}

	return resp, nil
}

// record fans the finished run out to history, archive and notifications.
// All three are best-effort; a computed result is never discarded because
// a downstream store is unavailable. Runs detached from the request context
// so a client disconnect cannot lose an already computed run.
func (uc *SimulateUseCase) record(rec *models.RunRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := uc.history.Append(ctx, rec); err != nil {
		uc.metrics.RecordError("history_append")
		uc.logger.Warn("history append failed",
			xlogger.String("run_id", rec.ID),
			xlogger.Error(err),
		)
	}

	if err := uc.sink.Record(ctx, rec); err != nil {
		uc.logger.Warn("archive record failed",
			xlogger.String("run_id", rec.ID),
			xlogger.Error(err),
		)
	}

	if uc.notifier != nil {
		if err := uc.notifier.PublishMessage(ctx, notify.TypeRunCompleted, rec.Summary()); err != nil {
			uc.metrics.RecordError("notify_publish")
			uc.logger.Warn("notification publish failed",
				xlogger.String("run_id", rec.ID),
				xlogger.Error(err),
			)
		}
	}
}

// cacheKey is non-empty only for seeded requests, whose results are
// deterministic and therefore safe to replay.
func (uc *SimulateUseCase) cacheKey(req *models.SimulationRequest) string {
	if uc.cache == nil || req.RandomSeed == nil {
		return ""
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return ""
	}

	return cache.GenerateKey("simulate", cache.HashKey(string(raw)))
}

func (uc *SimulateUseCase) cachedResponse(ctx context.Context, key string) (*models.SimulationResponse, bool) {
	var resp models.SimulationResponse
	if err := uc.cache.Get(ctx, key, &resp); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			uc.logger.Debug("result cache lookup failed", xlogger.Error(err))
		}
		return nil, false
	}

	return &resp, true
}

func (uc *SimulateUseCase) cacheResponse(ctx context.Context, key string, resp *models.SimulationResponse) {
	if err := uc.cache.Set(ctx, key, resp, uc.cacheTTL); err != nil {
		uc.logger.Debug("result cache store failed", xlogger.Error(err))
	}
}

func trajectories(sample []models.Trial) [][]float64 {
	if len(sample) == 0 {
		return nil
	}

	out := make([][]float64, len(sample))
	for i := range sample {
		out[i] = sample[i].Values()
	}
	return out
}
