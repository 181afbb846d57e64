package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStats(t *testing.T) {
	assert.Equal(t, Stats{}, NewStats(nil))

	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 8, s.Samples)
	assert.InDelta(t, 5, s.Mean, 1e-9)
	assert.InDelta(t, 2, s.StdDeviation, 1e-9)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.InDelta(t, 2.0/9.0, s.MinMaxRatio, 1e-9)
}

func TestDistributionStats(t *testing.T) {
	even := NewDistributionStats([]float64{3, 3, 3})
	assert.InDelta(t, 1, even.DistributionQuality, 1e-9)

	skewed := NewDistributionStats([]float64{1, 1, 1, 50})
	assert.Less(t, skewed.DistributionQuality, even.DistributionQuality)
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	assert.Zero(t, h.MedianEstimate())
	assert.Zero(t, h.AverageSize())

	for i := 0; i < 9; i++ {
		h.AddSample(10) // first bucket
	}
	h.AddSample(2000) // (1024, 4096]

	assert.EqualValues(t, 10, h.Count())
	assert.Equal(t, (9*10+2000)/10, h.AverageSize())
	assert.Equal(t, 8, h.MedianEstimate())
	assert.Equal(t, (1024+4096)/2, h.PercentileEstimate(100))
	assert.Zero(t, h.PercentileEstimate(101))

	h.AddSample(1 << 31)
	assert.Equal(t, 1073741824*2, h.PercentileEstimate(100))

	bounds, shares := h.Distribution()
	assert.Len(t, shares, len(bounds)+1)
	var total float64
	for _, s := range shares {
		total += s
	}
	assert.InDelta(t, 100, total, 1e-9)
}
