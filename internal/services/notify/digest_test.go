package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xlogger "FolioSim/pkg/logger"
)

func TestErrorDigestJobHandlesQueuePayloads(t *testing.T) {
	job := NewErrorDigestJob(testLogger(t))
	assert.Equal(t, TypeErrorDigest, job.Type())

	entries := []xlogger.AggregatedLogEntry{
		{Level: "error", Message: "clickhouse insert failed", Caller: "run_repository.go:42", Count: 17, FirstSeen: time.Now().Add(-time.Minute), LastSeen: time.Now()},
	}
	require.NoError(t, job.Handle(context.Background(), entries))

	// off the queue the payload arrives JSON-decoded into generic values
	raw, err := json.Marshal(entries)
	require.NoError(t, err)
	var generic []interface{}
	require.NoError(t, json.Unmarshal(raw, &generic))
	require.NoError(t, job.Handle(context.Background(), generic))
}

func TestErrorDigestJobRejectsBadPayloads(t *testing.T) {
	job := NewErrorDigestJob(testLogger(t))
	require.Error(t, job.Handle(context.Background(), 42))
}
