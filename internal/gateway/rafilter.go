package gateway

// DefaultFilterSize is the RunningAverageFilter capacity used by streams.
const DefaultFilterSize = 20

// RunningAverageFilter averages the last N integer samples.
type RunningAverageFilter struct {
	values []int
	index  int
	count  int
	sum    int
}

// NewRunningAverageFilter returns a filter over the last size samples.
func NewRunningAverageFilter(size int) *RunningAverageFilter {
	if size < 1 {
		size = 1
	}
	return &RunningAverageFilter{values: make([]int, size)}
}

// Push replaces the oldest sample with v and returns the average over the
// samples seen so far, at most the capacity. Division truncates.
func (f *RunningAverageFilter) Push(v int) int {
	f.sum -= f.values[f.index]
	f.values[f.index] = v
	f.sum += v
	f.index = (f.index + 1) % len(f.values)
	if f.count < len(f.values) {
		f.count++
	}
	return f.sum / f.count
}

// Len returns the number of samples currently averaged.
func (f *RunningAverageFilter) Len() int {
	return f.count
}
