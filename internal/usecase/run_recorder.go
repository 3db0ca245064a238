package usecase

import (
	"context"
	"fmt"
	"time"

	"FolioSim/internal/domain/models"
	drepo "FolioSim/internal/domain/repository"
)

// RunRecorder routes completed runs to the configured archive backend:
// straight into ClickHouse, or onto Kafka for the consumer to archive.
type RunRecorder struct {
	pub     drepo.Publisher
	archive drepo.RunArchive
	metrics drepo.Metrics
	backend string
}

// NewRunRecorder creates a new RunRecorder instance.
func NewRunRecorder(pub drepo.Publisher, archive drepo.RunArchive, metrics drepo.Metrics, backend string) *RunRecorder {
	return &RunRecorder{
		pub:     pub,
		archive: archive,
		metrics: metrics,
		backend: backend,
	}
}

// Record routes a single completed run to the configured backend.
func (r *RunRecorder) Record(ctx context.Context, rec *models.RunRecord) error {
	if rec == nil {
		return fmt.Errorf("run record is nil")
	}

	start := time.Now()
	var err error

	switch r.backend {
	case "kafka":
		err = r.pub.Publish(ctx, rec)
	case "clickhouse":
		err = r.archive.Store(ctx, rec)
	default:
		err = fmt.Errorf("unknown backend: %s", r.backend)
	}

	if err != nil {
		r.metrics.RecordError("record")
		return fmt.Errorf("record run: %w", err)
	}

	r.metrics.RecordLatency("record", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (r *RunRecorder) Close() {
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if r.archive != nil {
		_ = r.archive.Close()
	}
}
