package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FolioSim/internal/domain/models"
)

func TestDirectDispatcherRejectsUnknownTypes(t *testing.T) {
	logger := testLogger(t)
	job := NewRunCompletedJob(NewWebhookClient("http://127.0.0.1:1", time.Second, 1), logger)
	d := NewDirectDispatcher(job, logger)

	err := d.PublishMessage(context.Background(), "price_update", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price_update")
}

func TestDirectDispatcherDeliversDetached(t *testing.T) {
	received := make(chan models.RunSummary, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var summary models.RunSummary
		if err := json.NewDecoder(r.Body).Decode(&summary); err == nil {
			received <- summary
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logger := testLogger(t)
	job := NewRunCompletedJob(NewWebhookClient(srv.URL, time.Second, 1), logger)
	d := NewDirectDispatcher(job, logger)

	// a canceled request context must not cancel the delivery
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.PublishMessage(ctx, TypeRunCompleted, &models.RunSummary{ID: "run-9", Mode: "drawdown"}))

	select {
	case summary := <-received:
		assert.Equal(t, "run-9", summary.ID)
		assert.Equal(t, "drawdown", summary.Mode)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was never called")
	}
}
