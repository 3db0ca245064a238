package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"FolioSim/internal/domain/models"
	"FolioSim/internal/service/metrics"
	"FolioSim/internal/service/ratelimit"
	"FolioSim/internal/usecase"
	xhttp "FolioSim/pkg/http"
	xlogger "FolioSim/pkg/logger"
	"FolioSim/pkg/util"
)

const healthTimeout = 2 * time.Second

// HealthTarget is one dependency pinged by the health endpoint.
type HealthTarget struct {
	Name  string
	Check func(ctx context.Context) error
}

// SimulationHandler serves the portfolio simulation API over Echo.
type SimulationHandler struct {
	logger  *xlogger.Logger
	sim     *usecase.SimulateUseCase
	history *usecase.HistoryUseCase
	rl      *ratelimit.Limiter
	health  []HealthTarget
}

func NewSimulationHandler(
	logger *xlogger.Logger,
	sim *usecase.SimulateUseCase,
	history *usecase.HistoryUseCase,
	rl *ratelimit.Limiter,
	health ...HealthTarget,
) *SimulationHandler {
	metrics.Register()
	return &SimulationHandler{
		logger:  logger,
		sim:     sim,
		history: history,
		rl:      rl,
		health:  health,
	}
}

func (h *SimulationHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/", h.Root)
	g.GET("/health", h.Health)
	g.POST("/simulate", h.Simulate)
	g.GET("/simulations", h.Simulations)
	g.GET("/archive", h.Archive)
	g.GET("/default-assets", h.DefaultAssets)
}

// Simulate runs one Monte Carlo simulation for the posted parameters.
func (h *SimulationHandler) Simulate(c echo.Context) error {
	start := time.Now()
	endpoint := "simulate"
	defer func() { metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP() + ":" + endpoint) {
		metrics.RateLimited.WithLabelValues(endpoint).Inc()
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("simulation rate limit exceeded, retry later"))
	}

	req := &models.SimulationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.sim.Simulate(c.Request().Context(), req)
	if err != nil {
		metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("simulate usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	return xhttp.SuccessResponse(c, res)
}

// Simulations lists recent runs, newest first.
func (h *SimulationHandler) Simulations(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	runs, err := h.history.Recent(c.Request().Context(), req.Limit)
	if err != nil {
		metrics.EndpointErrors.WithLabelValues("simulations").Inc()
		h.logger.Error("history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	return xhttp.ListResponse(c, runs, int64(len(runs)))
}

// Archive lists archived run summaries within a time window.
func (h *SimulationHandler) Archive(c echo.Context) error {
	req := &models.ArchiveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	from := time.Unix(0, 0).UTC()
	if req.From != "" {
		t, ok := util.ParseTime(req.From)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must be RFC3339 or unix seconds"))
		}
		from = t
	}

	to := time.Now().UTC()
	if req.To != "" {
		t, ok := util.ParseTime(req.To)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("to must be RFC3339 or unix seconds"))
		}
		to = t
	}

	rows, err := h.history.Archived(c.Request().Context(), from, to, req.Limit)
	if err != nil {
		metrics.EndpointErrors.WithLabelValues("archive").Inc()
		h.logger.Error("archive usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// DefaultAssets returns the documented default portfolio parameters.
func (h *SimulationHandler) DefaultAssets(c echo.Context) error {
	return xhttp.SuccessResponse(c, models.DefaultAssets())
}

// Root identifies the API.
func (h *SimulationHandler) Root(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{
		"message": "Investment Portfolio Analyzer API",
	})
}

// Health reports liveness plus dependency pings.
func (h *SimulationHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(h.health))
	for _, t := range h.health {
		if err := t.Check(ctx); err != nil {
			status = "degraded"
			checks[t.Name] = err.Error()
			continue
		}
		checks[t.Name] = "ok"
	}

	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
