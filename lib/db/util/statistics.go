// Statistics reported by GetInfo: summary stats over shard sizes and a
// histogram over encoded tensor sizes. Bucket bounds grow by a factor of four,
// so fifteen buckets cover a scalar (a few bytes) up to a 4 GB parameter block.

package util

import (
	"math"
	"sort"
	"sync"
)

// ----------------------------------------------------------------------------
// Summary statistics
// ----------------------------------------------------------------------------

type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes mean, population standard deviation, minimum and maximum of values
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	s := Stats{Min: math.Inf(1), Max: math.Inf(-1), MinMaxRatio: 1}
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - s.Mean) * (v - s.Mean)
	}
	s.StdDeviation = math.Sqrt(variance / float64(len(values)))

	if s.Max > 0 {
		s.MinMaxRatio = s.Min / s.Max
	}
	return s
}

type DistributionStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats rates how evenly entries are spread over the shards.
// The quality is 1 for a perfectly even spread and drops towards 0 as the
// coefficient of variation grows or the min/max ratio shrinks.
func NewDistributionStats(shardSizes []float64) DistributionStats {
	stats := NewStats(shardSizes)

	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: (1-math.Min(1, cv))/2 + stats.MinMaxRatio/2,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// sizeBounds are the inclusive upper bounds of all but the last bucket (16 B to 4 GB)
var sizeBounds = func() []int {
	var bounds []int
	for b := 16; b <= 1<<32; b *= 4 {
		bounds = append(bounds, b)
	}
	return bounds
}()

// SizeHistogram counts encoded tensor sizes in exponentially growing buckets.
// All methods are safe for concurrent use.
type SizeHistogram struct {
	mu      sync.RWMutex
	buckets []int64 // one per bound plus an overflow bucket
	count   int64
	sum     int64
}

func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{buckets: make([]int64, len(sizeBounds)+1)}
}

// AddSample records one value of size bytes
func (h *SizeHistogram) AddSample(size int) {
	i := sort.SearchInts(sizeBounds, size)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.buckets[i]++
	h.count++
	h.sum += int64(size)
}

// Count returns the number of samples
func (h *SizeHistogram) Count() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Average returns the exact mean of all samples
func (h *SizeHistogram) Average() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// Median estimates the median sample size
func (h *SizeHistogram) Median() int {
	return h.Percentile(50)
}

// Percentile estimates the sample size at percentile p (0-100) from the bucket
// containing it. Out of range percentiles return 0.
func (h *SizeHistogram) Percentile(p int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 || p < 0 || p > 100 {
		return 0
	}

	target := int64(math.Ceil(float64(h.count) * float64(p) / 100))
	var seen int64
	for i, n := range h.buckets {
		seen += n
		if seen >= target && n > 0 {
			return bucketEstimate(i)
		}
	}
	return int(h.sum / h.count)
}

// Distribution returns the bucket bounds and the share of samples (in percent)
// per bucket. The last share belongs to the overflow bucket.
func (h *SizeHistogram) Distribution() ([]int, []float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	shares := make([]float64, len(h.buckets))
	if h.count == 0 {
		return sizeBounds, shares
	}
	for i, n := range h.buckets {
		shares[i] = float64(n) * 100 / float64(h.count)
	}
	return sizeBounds, shares
}

// Reset drops all samples
func (h *SizeHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.buckets)
	h.count, h.sum = 0, 0
}

// bucketEstimate is the midpoint of bucket i (half the first bound for the
// first bucket, twice the last bound for the overflow bucket)
func bucketEstimate(i int) int {
	switch {
	case i == 0:
		return sizeBounds[0] / 2
	case i < len(sizeBounds):
		return (sizeBounds[i-1] + sizeBounds[i]) / 2
	default:
		return sizeBounds[len(sizeBounds)-1] * 2
	}
}
