// Package metrics implements the aggregator (component I): on-read
// computation of uptime percentage and response-time percentiles, overall
// and per region, plus a graph series bucketed at a coarser granularity.
package metrics

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/hamed0406/uptimechecker/internal/domain"
	"github.com/hamed0406/uptimechecker/internal/repo"
)

// Granularity selects the bucket width for a graph series.
type Granularity int

const (
	Hourly Granularity = iota
	Daily
)

func (g Granularity) micros() uint64 {
	if g == Daily {
		return 24 * domain.TimeBucketWidthMicros
	}
	return domain.TimeBucketWidthMicros
}

// SingleMetrics is the response-time and uptime summary for one scope
// (overall or one region) over one window.
type SingleMetrics struct {
	UptimePercent         *float64 `json:"uptime_percent"`
	AvgResponseTimeMicros uint64   `json:"avg_response_time_micros"`
	P95ResponseTimeMicros uint64   `json:"p95_response_time_micros"`
	P99ResponseTimeMicros uint64   `json:"p99_response_time_micros"`
	MinResponseTimeMicros uint64   `json:"min_response_time_micros"`
	MaxResponseTimeMicros uint64   `json:"max_response_time_micros"`
}

// MetricsResponse is the shape a metrics read returns: by_region
// is a mapping, not an array, so it serializes as a JSON object keyed by
// region identifier.
type MetricsResponse struct {
	SingleMetrics
	ByRegion map[domain.Region]SingleMetrics `json:"by_region"`
}

// GraphPoint is one bucket of a metrics/graph series.
type GraphPoint struct {
	BucketStartMicros uint64                          `json:"bucket_start_micros"`
	ByRegion          map[domain.Region]SingleMetrics `json:"by_region"`
}

type Aggregator struct {
	Results repo.ResultStore
}

func New(results repo.ResultStore) *Aggregator {
	return &Aggregator{Results: results}
}

// GetMetrics fetches rows for the window and summarizes them overall and per region.
func (a *Aggregator) GetMetrics(ctx context.Context, checkID uuid.UUID, regions []domain.Region, fromMicros, toMicros uint64) (MetricsResponse, error) {
	rows, err := a.Results.ListResults(ctx, checkID, fromMicros, toMicros)
	if err != nil {
		return MetricsResponse{}, err
	}

	resp := MetricsResponse{
		SingleMetrics: summarize(rows),
		ByRegion:      make(map[domain.Region]SingleMetrics, len(regions)),
	}
	for _, region := range regions {
		var scoped []domain.CheckResult
		for _, r := range rows {
			if r.Region == region {
				scoped = append(scoped, r)
			}
		}
		resp.ByRegion[region] = summarize(scoped)
	}
	return resp, nil
}

// GetMetricsGraph partitions [from, to) into
// aligned buckets of the requested granularity and summarize each.
func (a *Aggregator) GetMetricsGraph(ctx context.Context, checkID uuid.UUID, regions []domain.Region, fromMicros, toMicros uint64, granularity Granularity) ([]GraphPoint, error) {
	rows, err := a.Results.ListResults(ctx, checkID, fromMicros, toMicros)
	if err != nil {
		return nil, err
	}

	width := granularity.micros()
	start := domain.Align(fromMicros, width)

	var points []GraphPoint
	for bucketStart := start; bucketStart < toMicros; bucketStart += width {
		bucketEnd := bucketStart + width
		var inBucket []domain.CheckResult
		for _, r := range rows {
			if r.ScheduledAtMicros >= bucketStart && r.ScheduledAtMicros < bucketEnd {
				inBucket = append(inBucket, r)
			}
		}

		point := GraphPoint{BucketStartMicros: bucketStart, ByRegion: make(map[domain.Region]SingleMetrics, len(regions))}
		for _, region := range regions {
			var scoped []domain.CheckResult
			for _, r := range inBucket {
				if r.Region == region {
					scoped = append(scoped, r)
				}
			}
			point.ByRegion[region] = summarize(scoped)
		}
		points = append(points, point)
	}
	return points, nil
}

// summarize computes uptime percentage and the avg/P95/P99/min/max
// response-time summary (OK rows only) for one slice of results, following
// the nearest-rank percentile definition: P(s) = S[ceil(p*n) - 1] on a
// 1-indexed sorted sample.
func summarize(rows []domain.CheckResult) SingleMetrics {
	n := len(rows)
	if n == 0 {
		return SingleMetrics{UptimePercent: nil}
	}

	ok := 0
	sample := make([]float64, 0, n)
	for _, r := range rows {
		if r.Outcome == domain.OutcomeOK {
			ok++
			sample = append(sample, float64(r.ResponseTimeMicros))
		}
	}

	uptime := 100 * float64(ok) / float64(n)
	m := SingleMetrics{UptimePercent: &uptime}

	if len(sample) == 0 {
		return m
	}

	sort.Float64s(sample)
	mean, _ := stats.Mean(stats.Float64Data(sample))
	m.AvgResponseTimeMicros = uint64(mean)
	m.P95ResponseTimeMicros = uint64(nearestRank(sample, 0.95))
	m.P99ResponseTimeMicros = uint64(nearestRank(sample, 0.99))
	m.MinResponseTimeMicros = uint64(sample[0])
	m.MaxResponseTimeMicros = uint64(sample[len(sample)-1])
	return m
}

// nearestRank returns S[ceil(p*n)-1] for a sorted sample S, 1-indexed.
func nearestRank(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := int(ceilf(p * float64(n)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}

func ceilf(f float64) float64 {
	i := float64(int64(f))
	if f > i {
		return i + 1
	}
	return i
}
