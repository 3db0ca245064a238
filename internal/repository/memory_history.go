package repository

import (
	"context"
	"sync"

	"FolioSim/internal/domain/models"
	"FolioSim/internal/domain/repository"
)

// MemoryHistory is the in-process fallback history store used when Redis is
// disabled. Same contract as RedisHistory: capped, newest first.
type MemoryHistory struct {
	mu   sync.RWMutex
	max  int
	runs []*models.RunRecord // newest first
}

var _ repository.HistoryStore = (*MemoryHistory)(nil)

func NewMemoryHistory(max int) *MemoryHistory {
	if max <= 0 {
		max = 10
	}
	return &MemoryHistory{max: max}
}

func (h *MemoryHistory) Append(ctx context.Context, rec *models.RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.runs = append(h.runs, nil)
	copy(h.runs[1:], h.runs)
	h.runs[0] = rec
	if len(h.runs) > h.max {
		h.runs = h.runs[:h.max]
	}
	return nil
}

func (h *MemoryHistory) Recent(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.runs) {
		limit = len(h.runs)
	}
	out := make([]*models.RunRecord, limit)
	copy(out, h.runs[:limit])
	return out, nil
}

func (h *MemoryHistory) Health(ctx context.Context) error { return nil }

func (h *MemoryHistory) Close() error { return nil }
