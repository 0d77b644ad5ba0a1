package util

import "testing"

func TestHashKeyDistribution(t *testing.T) {
	const (
		shards = 8
		keys   = 8000
	)

	seed := GenerateSeed()
	counts := make([]float64, shards)
	for k := 0; k < keys; k++ {
		counts[uint64(HashKey(k, seed))%shards]++
	}

	stats := NewDistributionStats(counts)
	if stats.Min < keys/shards/2 {
		t.Errorf("dense keys are badly distributed: %+v", stats)
	}
}

func TestHashKeyDeterministic(t *testing.T) {
	if HashKey(42, 7) != HashKey(42, 7) {
		t.Errorf("HashKey must be deterministic for the same seed")
	}
	if HashKey(42, 7) == HashKey(43, 7) {
		t.Errorf("neighbouring keys must not collide")
	}
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	for i := 0; i < 100; i++ {
		h.AddSample(100)
	}
	h.AddSample(1 << 20)

	if h.Count() != 101 {
		t.Errorf("expected 101 samples, got %d", h.Count())
	}
	if median := h.Median(); median < 64 || median > 256 {
		t.Errorf("median estimate %d is outside the 64..256 bucket", median)
	}
	if p100 := h.Percentile(100); p100 < 1<<19 {
		t.Errorf("p100 estimate %d is below the largest sample bucket", p100)
	}

	h.Reset()
	if h.Count() != 0 || h.Average() != 0 {
		t.Errorf("reset histogram should be empty")
	}
}

func TestNewStats(t *testing.T) {
	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Mean != 5 || s.StdDeviation != 2 || s.Min != 2 || s.Max != 9 {
		t.Errorf("unexpected stats %+v", s)
	}
	if empty := NewStats(nil); empty != (Stats{}) {
		t.Errorf("stats of no values should be zero, got %+v", empty)
	}

	even := NewDistributionStats([]float64{10, 10, 10})
	if even.DistributionQuality != 1 {
		t.Errorf("an even spread should have quality 1, got %v", even.DistributionQuality)
	}
}
