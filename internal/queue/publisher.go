// Package queue provides the SQS producer that dispatches asynchronous
// assessment jobs to the worker, plus the readiness probe for the queue.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"bloomwatch/internal/config"
	"bloomwatch/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher serializes AssessmentJobs onto the assessment queue. A zero
// queue URL disables it; the API then rejects async submissions.
type Publisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewPublisher creates a Publisher reading its queue URL from the AWS
// config.
func NewPublisher(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:   client,
		queueURL: awsCfg.AssessQueueURL,
		logger:   logger,
	}
}

// Enabled reports whether a queue URL is configured.
func (p *Publisher) Enabled() bool {
	return p.queueURL != ""
}

// Enqueue serializes the job to JSON and dispatches it. The requested_by
// attribute rides outside the body so operators can filter queue traffic
// without parsing payloads.
func (p *Publisher) Enqueue(ctx context.Context, job types.AssessmentJob) error {
	if !p.Enabled() {
		return types.NewAppError(types.ErrCodeInternalNotConfigured, "assessment queue is not configured", nil)
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal assessment job: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	}
	if job.RequestedBy != "" {
		input.MessageAttributes = map[string]sqsTypes.MessageAttributeValue{
			"requested_by": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.RequestedBy),
			},
		}
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send assessment job: %w", err)
	}

	p.logger.InfoContext(ctx, "assessment job enqueued",
		"job_id", job.JobID,
		"site_key", job.SiteKey,
		"has_coordinates", job.HasCoordinates(),
		"persist", job.Persist,
	)
	return nil
}

// SQSProber abstracts the SQS GetQueueAttributes operation used by the
// readiness probe.
type SQSProber interface {
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// Probe reports queue reachability for GET /readyz.
type Probe struct {
	client   SQSProber
	queueURL string
}

// NewProbe creates a queue readiness probe.
func NewProbe(client SQSProber, awsCfg config.AWSConfig) *Probe {
	return &Probe{client: client, queueURL: awsCfg.AssessQueueURL}
}

// Name identifies the probe in readiness reports.
func (p *Probe) Name() string { return "queue" }

// Check asks SQS for the queue's message count. Any response proves the
// queue exists and this process can reach it.
func (p *Probe) Check(ctx context.Context) error {
	_, err := p.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(p.queueURL),
		AttributeNames: []sqsTypes.QueueAttributeName{sqsTypes.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return fmt.Errorf("queue probe: %w", err)
	}
	return nil
}
