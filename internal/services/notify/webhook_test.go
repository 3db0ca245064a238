package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FolioSim/internal/domain/models"
	xlogger "FolioSim/pkg/logger"
)

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	return l
}

// countingServer fails the first failures requests with 502, then accepts.
type countingServer struct {
	mu       sync.Mutex
	failures int
	calls    int
	lastBody []byte
}

func (s *countingServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.calls <= s.failures {
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	body, _ := io.ReadAll(r.Body)
	s.lastBody = body
	w.WriteHeader(http.StatusOK)
}

func (s *countingServer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestWebhookSendRetriesTransientFailures(t *testing.T) {
	backend := &countingServer{failures: 2}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	client := NewWebhookClient(srv.URL, time.Second, 3)
	err := client.Send(context.Background(), &models.RunSummary{ID: "run-1", Mode: "growth"})
	require.NoError(t, err)
	assert.Equal(t, 3, backend.callCount())

	var summary models.RunSummary
	require.NoError(t, json.Unmarshal(backend.lastBody, &summary))
	assert.Equal(t, "run-1", summary.ID)
}

func TestWebhookSendFailsAfterMaxAttempts(t *testing.T) {
	backend := &countingServer{failures: 100}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	client := NewWebhookClient(srv.URL, time.Second, 2)
	err := client.Send(context.Background(), &models.RunSummary{ID: "run-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, backend.callCount())
}

func TestWebhookSendRequiresURL(t *testing.T) {
	client := NewWebhookClient("", 0, 0)
	err := client.Send(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestWebhookSendStopsOnCanceledContext(t *testing.T) {
	backend := &countingServer{failures: 100}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewWebhookClient(srv.URL, time.Second, 5)
	err := client.Send(ctx, &models.RunSummary{ID: "run-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, backend.callCount(), 5, "canceled context short-circuits retries")
}
