package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"FolioSim/internal/domain/models"
	"FolioSim/internal/domain/repository"
)

const defaultHistoryKey = "foliosim:history:runs"

// RedisHistory keeps the recent-run log in a capped Redis list, newest first.
type RedisHistory struct {
	client *redis.Client
	key    string
	max    int
}

type RedisHistoryOption func(*RedisHistory)

// WithHistoryKey overrides the list key.
func WithHistoryKey(key string) RedisHistoryOption {
	return func(h *RedisHistory) {
		if key != "" {
			h.key = key
		}
	}
}

var _ repository.HistoryStore = (*RedisHistory)(nil)

// NewRedisHistory creates a Redis-backed history store capped at max entries.
func NewRedisHistory(client *redis.Client, max int, opts ...RedisHistoryOption) *RedisHistory {
	if max <= 0 {
		max = 10
	}
	h := &RedisHistory{client: client, key: defaultHistoryKey, max: max}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Append pushes the record to the head of the list and trims the tail, so
// the log stays capped without ever rewriting surviving entries.
func (h *RedisHistory) Append(ctx context.Context, rec *models.RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	pipe := h.client.TxPipeline()
	pipe.LPush(ctx, h.key, data)
	pipe.LTrim(ctx, h.key, 0, int64(h.max-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history append: %w", err)
	}
	return nil
}

func (h *RedisHistory) Recent(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	if limit <= 0 || limit > h.max {
		limit = h.max
	}
	vals, err := h.client.LRange(ctx, h.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("history range: %w", err)
	}

	records := make([]*models.RunRecord, 0, len(vals))
	for _, v := range vals {
		var rec models.RunRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal run record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, nil
}

func (h *RedisHistory) Health(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

func (h *RedisHistory) Close() error {
	return nil // client shared, closed by the app
}
