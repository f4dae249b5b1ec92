package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunningAverageFilter_FullWindow(t *testing.T) {
	f := NewRunningAverageFilter(DefaultFilterSize)

	var avg, sum int
	for v := 10; v <= 200; v += 10 {
		sum += v
		avg = f.Push(v)
	}
	assert.Equal(t, sum/20, avg)
	assert.Equal(t, 105, avg)

	// The 21st sample evicts 10.
	avg = f.Push(410)
	assert.Equal(t, (sum-10+410)/20, avg)
	assert.Equal(t, 20, f.Len())
}

func TestRunningAverageFilter_PartialWindow(t *testing.T) {
	f := NewRunningAverageFilter(20)

	assert.Equal(t, 7, f.Push(7))
	assert.Equal(t, 8, f.Push(10), "divides by the count, not the capacity")
	assert.Equal(t, 2, f.Len())
}

func TestRunningAverageFilter_Truncates(t *testing.T) {
	f := NewRunningAverageFilter(3)

	f.Push(1)
	assert.Equal(t, 1, f.Push(2)) // 3/2
	assert.Equal(t, 2, f.Push(4)) // 7/3
	assert.Equal(t, 4, f.Push(8)) // 14/3
}

func TestRunningAverageFilter_MinimumSize(t *testing.T) {
	f := NewRunningAverageFilter(0)
	assert.Equal(t, 5, f.Push(5))
	assert.Equal(t, 9, f.Push(9))
}
