package repository

import (
	"context"
	"time"

	"FolioSim/internal/domain/models"
)

// HistoryStore is the short append-only log of recent runs behind the
// history endpoint. Appends never rewrite earlier entries; Recent returns
// newest first.
type HistoryStore interface {
	Append(ctx context.Context, rec *models.RunRecord) error
	Recent(ctx context.Context, limit int) ([]*models.RunRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// RunArchive is the analytical store of completed-run summaries.
type RunArchive interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, rec *models.RunRecord) error
	Query(ctx context.Context, from, to time.Time, limit int) ([]*models.RunSummary, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// Publisher emits run-completed events for downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, rec *models.RunRecord) error
	Close() error
}

type Metrics interface {
	RecordRun(mode string)
	RecordError(kind string)
	RecordLastMedian(mode string, value float64)
	RecordLatency(op string, seconds float64)
}
