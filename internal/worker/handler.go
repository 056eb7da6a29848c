// Package worker implements the Lambda-side processing of asynchronous
// assessment jobs.
//
// The assess-worker Lambda consumes AssessmentJob messages from the SQS
// queue the API publishes to. Each record is processed independently and
// failures are reported through partial batch responses, so SQS retries
// only the records that actually failed.
//
// Retry policy per record:
//   - Malformed bodies and permanently-invalid jobs (bad coordinates,
//     unknown sites) are acknowledged and dropped; a retry cannot fix
//     them and redriving forever would only poison the queue.
//   - Transient failures (upstream providers down, database errors) go
//     into batchItemFailures for SQS to redeliver.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"bloomwatch/internal/assessment"
	"bloomwatch/internal/types"
)

// JobRunner is the slice of the assessment service the worker needs.
// *assessment.Service satisfies it.
type JobRunner interface {
	AssessJob(ctx context.Context, job types.AssessmentJob) (*assessment.Result, error)
}

// QueueMetrics is the slice of the telemetry surface the worker needs.
type QueueMetrics interface {
	RecordQueueLag(ctx context.Context, lag time.Duration)
}

// Config holds the configuration for creating a Handler.
type Config struct {
	Runner  JobRunner
	Metrics QueueMetrics
	Logger  *slog.Logger
	Clock   types.Clock
}

// Handler processes SQS assessment-job batches.
type Handler struct {
	runner  JobRunner
	metrics QueueMetrics
	logger  *slog.Logger
	clock   types.Clock
}

// NewHandler creates a Handler with the given configuration.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("worker: runner is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Handler{
		runner:  cfg.Runner,
		metrics: cfg.Metrics,
		logger:  logger,
		clock:   clock,
	}, nil
}

// Handle processes an SQS event containing one or more assessment jobs.
// Records that fail transiently are returned in batchItemFailures so SQS
// retries only those.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process assessment job",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processRecord runs a single queued job. A nil return acknowledges the
// record; an error sends it back to the queue.
func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) error {
	var job types.AssessmentJob
	if err := json.Unmarshal([]byte(record.Body), &job); err != nil {
		// Permanent parse failure; acknowledge so SQS does not redrive it.
		h.logger.ErrorContext(ctx, "dropping malformed assessment job",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	h.recordLag(ctx, record, job)

	logger := h.logger.With(
		"job_id", job.JobID,
		"site_key", job.SiteKey,
		"persist", job.Persist,
	)
	logger.InfoContext(ctx, "processing assessment job")

	started := h.clock.Now()
	result, err := h.runner.AssessJob(ctx, job)
	if err != nil {
		if isPermanent(err) {
			logger.ErrorContext(ctx, "dropping permanently-failing assessment job",
				"error", err.Error(),
			)
			return nil
		}
		return err
	}

	logger.InfoContext(ctx, "assessment job completed",
		"risk_score", result.Assessment.Score,
		"risk_level", string(result.Assessment.Level),
		"persisted", result.Persisted,
		"duration", h.clock.Now().Sub(started),
	)
	return nil
}

// recordLag emits the enqueue-to-processing delay. The SQS SentTimestamp
// attribute is authoritative; the job's own EnqueuedAt serves as the
// fallback when the attribute is missing.
func (h *Handler) recordLag(ctx context.Context, record events.SQSMessage, job types.AssessmentJob) {
	if h.metrics == nil {
		return
	}

	if raw, ok := record.Attributes["SentTimestamp"]; ok {
		if sent, err := parseMillisTimestamp(raw); err == nil {
			h.metrics.RecordQueueLag(ctx, h.clock.Now().Sub(sent))
			return
		}
	}
	if !job.EnqueuedAt.IsZero() {
		h.metrics.RecordQueueLag(ctx, h.clock.Now().Sub(job.EnqueuedAt))
	}
}

// isPermanent reports whether a job failure cannot be fixed by
// redelivery: any AppError the API would answer with a 4xx.
func isPermanent(err error) bool {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	status := appErr.HTTPStatus()
	return status >= 400 && status < 500
}

// parseMillisTimestamp converts an SQS millisecond-epoch attribute value.
func parseMillisTimestamp(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing SentTimestamp %q: %w", raw, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
