package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const metricsMaxAge = 24 * time.Hour

func metricKey(name string, bucket int64) string {
	return fmt.Sprintf("metrics:%s:%d", name, bucket)
}

func minuteBucket(t time.Time) int64 {
	return t.Unix() / 60
}

// RecordMetric increments the current one-minute bucket for a named metric.
// The atomic float-add makes concurrent increments from any node safe.
func (s *Service) RecordMetric(ctx context.Context, name string, value float64) error {
	if s.client == nil {
		return nil
	}
	key := metricKey(name, minuteBucket(time.Now()))
	if err := s.client.IncrByFloat(ctx, key, value).Err(); err != nil {
		return err
	}
	// Buckets also expire on their own in case the cleanup sweep never runs.
	return s.client.Expire(ctx, key, metricsMaxAge).Err()
}

// MetricPoint is one minute bucket of a metric, newest first.
type MetricPoint struct {
	Timestamp time.Time
	Value     float64
}

// Metrics returns the last n one-minute buckets for a metric, newest first.
// Missing buckets read as zero.
func (s *Service) Metrics(ctx context.Context, name string, minutes int) ([]MetricPoint, error) {
	if s.client == nil || minutes <= 0 {
		return nil, nil
	}

	now := time.Now()
	keys := make([]string, 0, minutes)
	for i := 0; i < minutes; i++ {
		keys = append(keys, metricKey(name, minuteBucket(now.Add(-time.Duration(i)*time.Minute))))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	points := make([]MetricPoint, 0, minutes)
	for i, v := range values {
		var f float64
		if str, ok := v.(string); ok {
			f, _ = strconv.ParseFloat(str, 64)
		}
		points = append(points, MetricPoint{
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
			Value:     f,
		})
	}
	return points, nil
}

// MetricSum sums the last n minutes of a metric.
func (s *Service) MetricSum(ctx context.Context, name string, minutes int) (float64, error) {
	points, err := s.Metrics(ctx, name, minutes)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, p := range points {
		total += p.Value
	}
	return total, nil
}

// CleanupMetrics deletes buckets older than 24 hours. Run periodically by
// the maintenance scheduler.
func (s *Service) CleanupMetrics(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	cutoff := minuteBucket(time.Now().Add(-metricsMaxAge))
	iter := s.client.Scan(ctx, 0, "metrics:*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		idx := strings.LastIndex(key, ":")
		if idx < 0 {
			continue
		}
		bucket, err := strconv.ParseInt(key[idx+1:], 10, 64)
		if err != nil {
			continue
		}
		if bucket < cutoff {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return err
			}
		}
	}
	return iter.Err()
}
