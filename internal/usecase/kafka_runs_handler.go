package usecase

import (
	"context"
	"encoding/json"
	"time"

	"FolioSim/internal/domain/models"
	domrepo "FolioSim/internal/domain/repository"
	pkgkafka "FolioSim/pkg/kafka"
)

// KafkaRunsHandler consumes run-completed events and archives them.
type KafkaRunsHandler struct {
	topic   string
	archive domrepo.RunArchive
	metrics domrepo.Metrics
}

func NewKafkaRunsHandler(topic string, archive domrepo.RunArchive, metrics domrepo.Metrics) *KafkaRunsHandler {
	return &KafkaRunsHandler{topic: topic, archive: archive, metrics: metrics}
}

func (h *KafkaRunsHandler) Topic() string { return h.topic }

// Handle unmarshals one run-completed event and writes its archive row.
func (h *KafkaRunsHandler) Handle(ctx context.Context, b []byte) error {
	var rec models.RunRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if !rec.Timestamp.IsZero() {
		// E2E latency from run completion to archive (approx)
		h.metrics.RecordLatency("archive_e2e_seconds", time.Since(rec.Timestamp).Seconds())
	}

	start := time.Now()
	err := h.archive.Store(ctx, &rec)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaRunsHandler)(nil)
