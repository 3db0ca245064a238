package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FolioSim/internal/domain/models"
)

func record(id string) *models.RunRecord {
	return &models.RunRecord{ID: id, Timestamp: time.Now().UTC()}
}

func TestMemoryHistoryNewestFirst(t *testing.T) {
	h := NewMemoryHistory(10)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, h.Append(ctx, record(fmt.Sprintf("run-%d", i))))
	}

	recent, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "run-3", recent[0].ID)
	assert.Equal(t, "run-1", recent[2].ID)
}

func TestMemoryHistoryCapsRetention(t *testing.T) {
	h := NewMemoryHistory(2)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, h.Append(ctx, record(fmt.Sprintf("run-%d", i))))
	}

	recent, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "run-5", recent[0].ID)
	assert.Equal(t, "run-4", recent[1].ID)
}

func TestMemoryHistoryLimit(t *testing.T) {
	h := NewMemoryHistory(10)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		require.NoError(t, h.Append(ctx, record(fmt.Sprintf("run-%d", i))))
	}

	recent, err := h.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "run-4", recent[0].ID)
}
