// Package metrics publishes operational telemetry to CloudWatch. Every
// emitter is fire-and-forget: a failed PutMetricData is logged and
// swallowed so telemetry can never take down an assessment.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"bloomwatch/internal/types"
)

// putTimeout bounds a single PutMetricData call. RecordRequest runs after
// the response is written, so it cannot borrow the request context.
const putTimeout = 2 * time.Second

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Recorder is the full telemetry surface of the system.
//
// Metrics emitted:
//   - APILatency: Dims {Endpoint} -- request duration in milliseconds
//   - AssessmentCompleted: Dims {Site, RiskLevel, Confidence} -- per run
//   - RiskScore: Dims {Site} -- the composite score of a completed run
//   - AssessmentFailed: Dims {Site} -- per aborted run
//   - SourceFailure: Dims {Source} -- per degraded upstream source
//   - Escalation: Dims {Site, RiskLevel} -- per webhook-worthy level rise
//   - PollCycleDuration: no dims -- full poller sweep in milliseconds
//   - QueueLag: no dims -- enqueue-to-processing delay in milliseconds
//   - CacheHit / CacheMiss: no dims -- observation cache lookups
type Recorder interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
	RecordAssessment(ctx context.Context, site string, level types.RiskLevel, confidence types.Confidence, score float64)
	RecordAssessmentFailure(ctx context.Context, site string)
	RecordSourceFailure(ctx context.Context, source string)
	RecordEscalation(ctx context.Context, site string, to types.RiskLevel)
	RecordPollCycle(ctx context.Context, duration time.Duration)
	RecordQueueLag(ctx context.Context, lag time.Duration)
	RecordCacheLookup(ctx context.Context, hit bool)
}

var _ Recorder = (*Collector)(nil)

// Collector implements Recorder against CloudWatch under the BloomWatch
// namespace.
type Collector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCollector creates a Collector publishing to the BloomWatch namespace.
func NewCollector(client CloudWatchClient, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

// RecordRequest emits request latency under a combined "METHOD /path"
// endpoint dimension. Status is part of the Recorder contract but is not
// emitted as a dimension.
func (c *Collector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()

	c.put(ctx, types.MetricAPILatency, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricAPILatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimEndpoint, method+" "+endpoint),
		},
	})
}

// RecordAssessment emits the completion count and the composite score of
// one finished pipeline run in a single PutMetricData call.
func (c *Collector) RecordAssessment(ctx context.Context, site string, level types.RiskLevel, confidence types.Confidence, score float64) {
	c.put(ctx, types.MetricAssessmentCompleted,
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAssessmentCompleted),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{
				dim(types.DimSite, site),
				dim(types.DimRiskLevel, string(level)),
				dim(types.DimConfidence, string(confidence)),
			},
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricRiskScore),
			Value:      aws.Float64(score),
			Unit:       cwtypes.StandardUnitNone,
			Dimensions: []cwtypes.Dimension{
				dim(types.DimSite, site),
			},
		})
}

func (c *Collector) RecordAssessmentFailure(ctx context.Context, site string) {
	c.put(ctx, types.MetricAssessmentFailed, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricAssessmentFailed),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimSite, site),
		},
	})
}

func (c *Collector) RecordSourceFailure(ctx context.Context, source string) {
	c.put(ctx, types.MetricSourceFailure, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricSourceFailure),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimSource, source),
		},
	})
}

func (c *Collector) RecordEscalation(ctx context.Context, site string, to types.RiskLevel) {
	c.put(ctx, types.MetricEscalation, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricEscalation),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimSite, site),
			dim(types.DimRiskLevel, string(to)),
		},
	})
}

func (c *Collector) RecordPollCycle(ctx context.Context, duration time.Duration) {
	c.put(ctx, types.MetricPollCycleDuration, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricPollCycleDuration),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

// RecordQueueLag tracks the time between SQS enqueue and worker
// processing start, including visibility timeout and backlog.
func (c *Collector) RecordQueueLag(ctx context.Context, lag time.Duration) {
	c.put(ctx, types.MetricQueueLag, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricQueueLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

func (c *Collector) RecordCacheLookup(ctx context.Context, hit bool) {
	name := types.MetricCacheMiss
	if hit {
		name = types.MetricCacheHit
	}
	c.put(ctx, name, cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
	})
}

func (c *Collector) put(ctx context.Context, name string, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(c.namespace),
		MetricData: data,
	}
	if _, err := c.client.PutMetricData(ctx, input); err != nil {
		c.logger.Error("failed to record metric",
			"metric", name,
			"error", err.Error(),
		)
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

var _ Recorder = Noop{}

// Noop discards all telemetry. Deployments without CloudWatch access
// (local runs, CI) wire this instead of a Collector.
type Noop struct{}

func (Noop) RecordRequest(_, _, _ string, _ time.Duration) {}
func (Noop) RecordAssessment(context.Context, string, types.RiskLevel, types.Confidence, float64) {
}
func (Noop) RecordAssessmentFailure(context.Context, string)           {}
func (Noop) RecordSourceFailure(context.Context, string)               {}
func (Noop) RecordEscalation(context.Context, string, types.RiskLevel) {}
func (Noop) RecordPollCycle(context.Context, time.Duration)            {}
func (Noop) RecordQueueLag(context.Context, time.Duration)             {}
func (Noop) RecordCacheLookup(context.Context, bool)                   {}
