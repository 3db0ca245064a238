package notify

import (
	"context"
	"fmt"

	"FolioSim/internal/domain/models"
	xlogger "FolioSim/pkg/logger"
	"FolioSim/pkg/queue"
)

// RunCompletedJob delivers run-completed notifications picked off the queue.
type RunCompletedJob struct {
	client *WebhookClient
	logger *xlogger.Logger
}

var _ queue.Job = (*RunCompletedJob)(nil)

// NewRunCompletedJob creates the webhook delivery job.
func NewRunCompletedJob(client *WebhookClient, logger *xlogger.Logger) *RunCompletedJob {
	return &RunCompletedJob{
		client: client,
		logger: logger,
	}
}

// Name returns the unique identifier of the job.
func (j *RunCompletedJob) Name() string {
	return "run-completed-webhook"
}

// Type returns the message type the job consumes.
func (j *RunCompletedJob) Type() string {
	return TypeRunCompleted
}

// Handle posts the run summary to the configured webhook.
func (j *RunCompletedJob) Handle(ctx context.Context, payload interface{}) error {
	summary, err := queue.ParsePayload[models.RunSummary](payload)
	if err != nil {
		return fmt.Errorf("parse run summary: %w", err)
	}

	if err := j.client.Send(ctx, summary); err != nil {
		return err
	}

	j.logger.Debug("run notification delivered",
		xlogger.String("run_id", summary.ID),
		xlogger.String("mode", summary.Mode),
	)
	return nil
}
