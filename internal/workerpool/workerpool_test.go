package workerpool

import (
	"sync/atomic"
	"testing"
)

func TestSequentialRunsAllIndices(t *testing.T) {
	var sum int64
	Sequential(0, 10, func(i int) { atomic.AddInt64(&sum, int64(i)) })
	if sum != 45 {
		t.Fatalf("sum = %d, want 45", sum)
	}
}

func TestGoroutinesRunsAllIndices(t *testing.T) {
	var sum int64
	Goroutines(0, 100, func(i int) { atomic.AddInt64(&sum, int64(i)) })
	if sum != 4950 {
		t.Fatalf("sum = %d, want 4950", sum)
	}
}

func TestChunkedCoversFullRangeExactlyOnce(t *testing.T) {
	seen := make([]int32, 257)
	pf := Chunked(8)
	pf(0, 257, func(i int) { atomic.AddInt32(&seen[i], 1) })
	for i, count := range seen {
		if count != 1 {
			t.Fatalf("index %d visited %d times, want exactly 1", i, count)
		}
	}
}

func TestChunkedFallsBackToSequentialForSmallRanges(t *testing.T) {
	var sum int64
	pf := Chunked(16)
	pf(0, 3, func(i int) { atomic.AddInt64(&sum, int64(i)) })
	if sum != 3 {
		t.Fatalf("sum = %d, want 3", sum)
	}
}
