package notify

import (
	"context"
	"fmt"
	"time"

	xlogger "FolioSim/pkg/logger"
	"FolioSim/pkg/queue"
)

// TypeErrorDigest is the queue message type carrying aggregated error logs.
const TypeErrorDigest = "error_digest"

// ErrorDigestJob re-emits aggregated error entries flushed by the log
// collector as one warn line per unique error with its repeat count.
type ErrorDigestJob struct {
	logger *xlogger.Logger
}

var _ queue.Job = (*ErrorDigestJob)(nil)

// NewErrorDigestJob creates the digest job.
func NewErrorDigestJob(logger *xlogger.Logger) *ErrorDigestJob {
	return &ErrorDigestJob{logger: logger}
}

// Name returns the unique identifier of the job.
func (j *ErrorDigestJob) Name() string {
	return "error-log-digest"
}

// Type returns the message type the job consumes.
func (j *ErrorDigestJob) Type() string {
	return TypeErrorDigest
}

// Handle logs each aggregated entry. Warn level keeps the digest itself out
// of the collector, which only captures errors.
func (j *ErrorDigestJob) Handle(ctx context.Context, payload interface{}) error {
	entries, err := queue.ParsePayload[[]xlogger.AggregatedLogEntry](payload)
	if err != nil {
		return fmt.Errorf("parse error digest: %w", err)
	}

	for _, e := range *entries {
		j.logger.Warn("error digest",
			xlogger.String("message", e.Message),
			xlogger.String("caller", e.Caller),
			xlogger.Int("count", e.Count),
			xlogger.String("first_seen", e.FirstSeen.UTC().Format(time.RFC3339)),
			xlogger.String("last_seen", e.LastSeen.UTC().Format(time.RFC3339)),
		)
	}
	return nil
}
