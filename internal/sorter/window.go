package sorter

import "sort"

// LatencyWindow keeps the most recent presentation latencies (ms) in a
// fixed ring buffer.
//
// Invariants:
//   - Count <= len(Samples)
//   - 0 <= Index < len(Samples)
type LatencyWindow struct {
	Samples [100]float64
	Index   int
	Count   int
}

// AddSample stores v, overwriting the oldest sample once full.
func (w *LatencyWindow) AddSample(v float64) {
	w.Samples[w.Index] = v
	w.Index = (w.Index + 1) % len(w.Samples)
	if w.Count < len(w.Samples) {
		w.Count++
	}
}

// GetStats returns mean, p95 and max over the stored samples.
// An empty window returns zeros.
func (w *LatencyWindow) GetStats() (mean, p95, max float64) {
	if w.Count == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, w.Count)
	copy(sorted, w.Samples[:w.Count])
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean = sum / float64(w.Count)
	idx := int(float64(w.Count-1) * 0.95)
	p95 = sorted[idx]
	max = sorted[w.Count-1]
	return mean, p95, max
}
