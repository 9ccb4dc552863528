package metrics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"posturewatch/internal/pipeline"
	"posturewatch/internal/types"
)

const (
	// DefaultFlushInterval is how often Run pushes aggregated data.
	DefaultFlushInterval = time.Minute

	// PutMetricData accepts at most this many datums per call.
	maxDatumsPerCall = 1000
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ pipeline.Metrics = (*CloudWatch)(nil)

type counterKey struct {
	name, dimName, dimValue string
}

// CloudWatch implements pipeline.Metrics by aggregating counts in memory.
// A frame loop at 30 fps would otherwise issue one API call per frame.
//
// Emitted on Flush:
//   - FramesProcessed, ClassificationFailure, AlertsGenerated, AlertPersistFailure: no dims
//   - FramesSkipped: Dims {Reason}
//   - Classifications: Dims {Label}
//   - ClassificationLatency: statistic set in milliseconds
type CloudWatch struct {
	client    CloudWatchClient
	namespace string
	clock     types.Clock
	logger    *slog.Logger

	mu       sync.Mutex
	counters map[counterKey]float64
	latency  latencyStats
}

type latencyStats struct {
	count, sum, min, max float64
}

func (s *latencyStats) add(ms float64) {
	if s.count == 0 || ms < s.min {
		s.min = ms
	}
	if s.count == 0 || ms > s.max {
		s.max = ms
	}
	s.count++
	s.sum += ms
}

// NewCloudWatch creates a recorder that publishes to namespace, or to
// types.MetricNamespace when empty.
func NewCloudWatch(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatch {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatch{
		client:    client,
		namespace: namespace,
		clock:     types.RealClock{},
		logger:    logger,
		counters:  map[counterKey]float64{},
	}
}

func (c *CloudWatch) inc(name, dimName, dimValue string) {
	c.mu.Lock()
	c.counters[counterKey{name, dimName, dimValue}]++
	c.mu.Unlock()
}

func (c *CloudWatch) FrameProcessed(context.Context) { c.inc(types.MetricFramesProcessed, "", "") }

func (c *CloudWatch) FrameSkipped(_ context.Context, reason string) {
	c.inc(types.MetricFramesSkipped, types.DimReason, reason)
}

func (c *CloudWatch) Classified(_ context.Context, label string, latency time.Duration) {
	c.mu.Lock()
	c.counters[counterKey{types.MetricClassifications, types.DimLabel, label}]++
	c.latency.add(float64(latency.Milliseconds()))
	c.mu.Unlock()
}

func (c *CloudWatch) ClassificationFailed(_ context.Context, latency time.Duration) {
	c.mu.Lock()
	c.counters[counterKey{types.MetricClassificationFailure, "", ""}]++
	c.latency.add(float64(latency.Milliseconds()))
	c.mu.Unlock()
}

func (c *CloudWatch) AlertGenerated(context.Context) { c.inc(types.MetricAlertsGenerated, "", "") }

func (c *CloudWatch) AlertPersistFailed(context.Context) {
	c.inc(types.MetricAlertPersistFailure, "", "")
}

// Flush publishes and resets the aggregated data. On failure the data is
// dropped and the error returned.
func (c *CloudWatch) Flush(ctx context.Context) error {
	c.mu.Lock()
	counters := c.counters
	latency := c.latency
	c.counters = map[counterKey]float64{}
	c.latency = latencyStats{}
	c.mu.Unlock()

	data := c.datums(counters, latency)
	for start := 0; start < len(data); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(data))
		_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: data[start:end],
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *CloudWatch) datums(counters map[counterKey]float64, latency latencyStats) []cwtypes.MetricDatum {
	now := c.clock.Now()

	keys := make([]counterKey, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].dimValue < keys[j].dimValue
	})

	data := make([]cwtypes.MetricDatum, 0, len(keys)+1)
	for _, k := range keys {
		d := cwtypes.MetricDatum{
			MetricName: aws.String(k.name),
			Value:      aws.Float64(counters[k]),
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  aws.Time(now),
		}
		if k.dimName != "" {
			d.Dimensions = []cwtypes.Dimension{{
				Name:  aws.String(k.dimName),
				Value: aws.String(k.dimValue),
			}}
		}
		data = append(data, d)
	}

	if latency.count > 0 {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricClassificationLatency),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Timestamp:  aws.Time(now),
			StatisticValues: &cwtypes.StatisticSet{
				SampleCount: aws.Float64(latency.count),
				Sum:         aws.Float64(latency.sum),
				Minimum:     aws.Float64(latency.min),
				Maximum:     aws.Float64(latency.max),
			},
		})
	}
	return data
}

// Run flushes every interval until ctx is done, then flushes once more with
// a short detached deadline.
func (c *CloudWatch) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := c.Flush(fctx); err != nil {
				c.logger.Error("final metrics flush failed", "error", err)
			}
			return nil
		case <-ticker.C:
			if err := c.Flush(ctx); err != nil {
				c.logger.Error("failed to flush pipeline metrics", "error", err, "namespace", c.namespace)
			}
		}
	}
}
