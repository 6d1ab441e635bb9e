package sink

import (
	"sort"
	"strings"
	"sync"
)

// Recorder is an in-memory HistogramSink and StructuredSink. It backs tests
// and the replay CLI summary.
//
// Thread-safety: Safe for concurrent use.
type Recorder struct {
	mu sync.Mutex

	samples map[string][]int64
	dropped map[string]int
	records []StructuredEvent
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		samples: make(map[string][]int64),
		dropped: make(map[string]int),
	}
}

// EmitHistogram implements HistogramSink.
func (r *Recorder) EmitHistogram(name string, value int64, droppedVariant bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[name] = append(r.samples[name], value)
	if droppedVariant {
		r.dropped[name]++
	}
}

// EmitStructuredEvent implements StructuredSink.
func (r *Recorder) EmitStructuredEvent(ev StructuredEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, ev)
}

// Count returns the number of samples recorded under name.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples[name])
}

// DroppedCount returns how many samples of name carried the dropped flag.
func (r *Recorder) DroppedCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped[name]
}

// Samples returns a copy of the values recorded under name, in order.
func (r *Recorder) Samples(name string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.samples[name]...)
}

// BucketCount returns the number of samples of name equal to value.
func (r *Recorder) BucketCount(name string, value int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.samples[name] {
		if v == value {
			n++
		}
	}
	return n
}

// Names returns the sorted recorded names that start with prefix.
func (r *Recorder) Names(prefix string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for name := range r.samples {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Counts returns name → sample count for names starting with prefix.
func (r *Recorder) Counts(prefix string) map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int)
	for name, s := range r.samples {
		if strings.HasPrefix(name, prefix) {
			out[name] = len(s)
		}
	}
	return out
}

// TotalCount returns the number of samples across names starting with prefix.
func (r *Recorder) TotalCount(prefix string) int {
	total := 0
	for _, n := range r.Counts(prefix) {
		total += n
	}
	return total
}

// StructuredEvents returns a copy of the structured records.
func (r *Recorder) StructuredEvents() []StructuredEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StructuredEvent(nil), r.records...)
}

// Reset clears all recorded data.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = make(map[string][]int64)
	r.dropped = make(map[string]int)
	r.records = nil
}
