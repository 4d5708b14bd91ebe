// Package telemetry emits sweep metrics to CloudWatch: per-task duration,
// processed item counts, and failures. Metric emission is best-effort; a
// CloudWatch outage never fails a sweep.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// SweepMetrics records per-task sweep outcomes.
type SweepMetrics interface {
	RecordTask(ctx context.Context, task string, success bool, items int, duration time.Duration)
	RecordSweep(ctx context.Context, success bool, duration time.Duration)
}

// CloudWatchSweepMetrics implements SweepMetrics against AWS CloudWatch.
//
// Metrics emitted:
//   - TaskResult:   Dims {Task, Result} -- one per task per sweep
//   - TaskItems:    Dims {Task}         -- processed item count
//   - TaskDuration: Dims {Task}         -- task wall clock, milliseconds
//   - SweepDuration: Dims {Result}      -- whole-sweep wall clock
type CloudWatchSweepMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// Compile-time assertion that CloudWatchSweepMetrics implements SweepMetrics.
var _ SweepMetrics = (*CloudWatchSweepMetrics)(nil)

// NewCloudWatchSweepMetrics creates a CloudWatchSweepMetrics publishing to
// the given namespace.
func NewCloudWatchSweepMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchSweepMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchSweepMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

func resultValue(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordTask emits the per-task result, item count, and duration metrics.
func (m *CloudWatchSweepMetrics) RecordTask(ctx context.Context, task string, success bool, items int, duration time.Duration) {
	taskDim := cwtypes.Dimension{
		Name:  aws.String("Task"),
		Value: aws.String(task),
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String("TaskResult"),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					taskDim,
					{
						Name:  aws.String("Result"),
						Value: aws.String(resultValue(success)),
					},
				},
			},
			{
				MetricName: aws.String("TaskItems"),
				Value:      aws.Float64(float64(items)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{taskDim},
			},
			{
				MetricName: aws.String("TaskDuration"),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{taskDim},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record task metrics",
			"error", err.Error(),
			"task", task,
		)
	}
}

// RecordSweep emits the whole-sweep duration metric.
func (m *CloudWatchSweepMetrics) RecordSweep(ctx context.Context, success bool, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String("SweepDuration"),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String("Result"),
						Value: aws.String(resultValue(success)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record sweep metric",
			"error", err.Error(),
		)
	}
}

// NopSweepMetrics is a SweepMetrics that records nothing, for local runs and
// tests.
type NopSweepMetrics struct{}

func (NopSweepMetrics) RecordTask(context.Context, string, bool, int, time.Duration) {}
func (NopSweepMetrics) RecordSweep(context.Context, bool, time.Duration)             {}

var _ SweepMetrics = NopSweepMetrics{}
