package service

import (
	"context"

	"FolioSim/internal/domain/models"
)

// Simulator runs every trial of a request to completion and returns the
// ensemble, or an error and nothing at all. Progress callbacks receive
// monotonically increasing completed counts and may fire concurrently.
type Simulator interface {
	Run(ctx context.Context, req *models.SimulationRequest) (*models.Ensemble, error)
	RunWithProgress(ctx context.Context, req *models.SimulationRequest, progress func(completed, total int)) (*models.Ensemble, error)
}
