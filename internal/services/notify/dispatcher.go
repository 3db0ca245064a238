package notify

import (
	"context"
	"fmt"
	"time"

	xlogger "FolioSim/pkg/logger"
	"FolioSim/pkg/queue"
)

const dispatchTimeout = 30 * time.Second

// DirectDispatcher runs notification jobs inline when no queue backend is
// configured. Deliveries are detached from the request context so a fast
// HTTP response does not cancel them.
type DirectDispatcher struct {
	job    queue.Job
	logger *xlogger.Logger
}

var _ queue.QueueService = (*DirectDispatcher)(nil)

// NewDirectDispatcher creates a dispatcher that invokes the job directly.
func NewDirectDispatcher(job queue.Job, logger *xlogger.Logger) *DirectDispatcher {
	return &DirectDispatcher{
		job:    job,
		logger: logger,
	}
}

// PublishMessage hands the payload straight to the registered job.
func (d *DirectDispatcher) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	if msgType != d.job.Type() {
		return fmt.Errorf("no job registered for message type: %s", msgType)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		if err := d.job.Handle(ctx, payload); err != nil {
			d.logger.Warn("notification delivery failed", xlogger.Error(err))
		}
	}()

	return nil
}
