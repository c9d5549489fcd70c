package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/eraldohasanaj/lazyloop/internal/loop"
)

// Summary aggregates iteration outcomes and task latency for a final report.
type Summary struct {
	mu        sync.Mutex
	hist      *hdrhistogram.Histogram
	total     int64
	successes int64
	failures  int64
	errors    int64
}

// Stats is a point-in-time view of a Summary.
type Stats struct {
	Total     int64
	Successes int64
	Failures  int64
	Errors    int64
	P50       time.Duration
	P90       time.Duration
	P99       time.Duration
	Max       time.Duration
}

// NewSummary creates an empty Summary tracking latencies up to one hour.
func NewSummary() *Summary {
	return &Summary{
		hist: hdrhistogram.New(1, int64(time.Hour/time.Microsecond), 3),
	}
}

// IterationDone implements loop.Observer.
func (s *Summary) IterationDone(_ context.Context, it loop.Iteration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	switch Outcome(it) {
	case OutcomeSuccess:
		s.successes++
	case OutcomeFailure:
		s.failures++
	case OutcomeError:
		s.errors++
	}

	us := it.Elapsed.Microseconds()
	if us < s.hist.LowestTrackableValue() {
		us = s.hist.LowestTrackableValue()
	}
	if us > s.hist.HighestTrackableValue() {
		us = s.hist.HighestTrackableValue()
	}
	_ = s.hist.RecordValue(us)
}

// Stats returns the current aggregates.
func (s *Summary) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Total:     s.total,
		Successes: s.successes,
		Failures:  s.failures,
		Errors:    s.errors,
	}
	if s.hist.TotalCount() > 0 {
		stats.P50 = time.Duration(s.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90 = time.Duration(s.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99 = time.Duration(s.hist.ValueAtQuantile(99)) * time.Microsecond
		stats.Max = time.Duration(s.hist.Max()) * time.Microsecond
	}
	return stats
}

func (s Stats) String() string {
	return fmt.Sprintf("%d iterations: %d succeeded, %d failed, %d errored (p50 %s, p90 %s, p99 %s, max %s)",
		s.Total, s.Successes, s.Failures, s.Errors,
		s.P50.Round(time.Millisecond), s.P90.Round(time.Millisecond),
		s.P99.Round(time.Millisecond), s.Max.Round(time.Millisecond))
}
