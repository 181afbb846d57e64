package util

import (
	"math"
	"sort"
)

// ----------------------------------------------------------------------------
// Summary statistics
// ----------------------------------------------------------------------------

// Stats summarizes a sample of values.
type Stats struct {
	Samples      int     `json:"samples"`
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes the population statistics of values. An empty sample yields the zero
// Stats.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	s := Stats{Samples: len(values), Min: values[0], Max: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = sum / float64(len(values))

	var squares float64
	for _, v := range values {
		d := v - s.Mean
		squares += d * d
	}
	s.StdDeviation = math.Sqrt(squares / float64(len(values)))

	s.MinMaxRatio = 1
	if s.Max > 0 {
		s.MinMaxRatio = s.Min / s.Max
	}
	return s
}

// DistributionStats extends Stats with a quality score in [0, 1]. A score of 1 means all
// values are equal.
type DistributionStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats computes how evenly values are spread, e.g. the fan-out of the
// inner nodes of a trie.
func NewDistributionStats(values []float64) DistributionStats {
	stats := NewStats(values)

	// coefficient of variation
	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: (1-math.Min(1, cv))*0.5 + stats.MinMaxRatio*0.5,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// sizeBoundaries are the upper bounds of the histogram buckets. A final bucket holds
// everything larger than the last bound.
var sizeBoundaries = []int{
	16, 64, 256, 1024, 4096, // up to 4KB
	16384, 65536, 262144, 1048576, // up to 1MB
	4194304, 16777216, 67108864, // up to 64MB
	268435456, 1073741824, // up to 1GB
}

// SizeHistogram counts size samples in exponentially growing buckets. It is not safe for
// concurrent use.
type SizeHistogram struct {
	buckets []int64
	count   int64
	sum     int64
}

// NewSizeHistogram creates an empty histogram.
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{buckets: make([]int64, len(sizeBoundaries)+1)}
}

// AddSample records one size in bytes.
func (h *SizeHistogram) AddSample(size int) {
	h.buckets[sort.SearchInts(sizeBoundaries, size)]++
	h.count++
	h.sum += int64(size)
}

// Count returns the number of recorded samples.
func (h *SizeHistogram) Count() int64 {
	return h.count
}

// AverageSize returns the exact mean of all samples.
func (h *SizeHistogram) AverageSize() int {
	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// MedianEstimate is PercentileEstimate(50).
func (h *SizeHistogram) MedianEstimate() int {
	return h.PercentileEstimate(50)
}

// PercentileEstimate estimates the given percentile (0-100) from the bucket the
// percentile falls in: the midpoint of the bucket bounds, half the first bound for the
// first bucket and twice the last bound for the overflow bucket.
func (h *SizeHistogram) PercentileEstimate(percentile int) int {
	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	target := max(1, int64(math.Ceil(float64(h.count)*float64(percentile)/100)))
	var cumulative int64
	for i, n := range h.buckets {
		cumulative += n
		if cumulative < target {
			continue
		}
		switch {
		case i == 0:
			return sizeBoundaries[0] / 2
		case i < len(sizeBoundaries):
			return (sizeBoundaries[i-1] + sizeBoundaries[i]) / 2
		default:
			return sizeBoundaries[len(sizeBoundaries)-1] * 2
		}
	}
	return h.AverageSize()
}

// Distribution returns the bucket upper bounds and the share of samples (in percent) per
// bucket. The last share belongs to the overflow bucket.
func (h *SizeHistogram) Distribution() ([]int, []float64) {
	shares := make([]float64, len(h.buckets))
	if h.count == 0 {
		return sizeBoundaries, shares
	}
	for i, n := range h.buckets {
		shares[i] = float64(n) * 100 / float64(h.count)
	}
	return sizeBoundaries, shares
}
