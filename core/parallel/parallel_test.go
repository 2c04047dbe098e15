package parallel

import (
	"sync/atomic"
	"testing"
)

func TestChunks(t *testing.T) {
	tests := []struct {
		items, workers int
		want           [][2]int
	}{
		{0, 4, nil},
		{3, 8, [][2]int{{0, 1}, {1, 2}, {2, 3}}},
		{10, 3, [][2]int{{0, 4}, {4, 8}, {8, 10}}},
		{5, 0, [][2]int{{0, 5}}},
	}
	for _, tt := range tests {
		got := chunks(tt.items, tt.workers)
		if len(got) != len(tt.want) {
			t.Fatalf("chunks(%d, %d) = %v, want %v", tt.items, tt.workers, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("chunks(%d, %d)[%d] = %v, want %v", tt.items, tt.workers, i, got[i], tt.want[i])
			}
		}
	}
}

func TestParallelizeCoversEveryItem(t *testing.T) {
	const n = 1000
	var visited [n]int32
	ParallelizeWithThreshold(n, 10, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&visited[i], 1)
		}
	})
	for i, v := range visited {
		if v != 1 {
			t.Fatalf("item %d visited %d times", i, v)
		}
	}

	called := false
	ParallelizeWithThreshold(0, 10, func(int, int) { called = true })
	if called {
		t.Error("fn called for an empty range")
	}
}

func TestSumChunks(t *testing.T) {
	values := make([]float64, 5000)
	for i := range values {
		values[i] = float64(i % 7)
	}
	var want [2]float64
	for _, v := range values {
		want[0] += v
		want[1] += v * v
	}

	for _, threshold := range []int{0, len(values)} {
		got := SumChunks(len(values), threshold, 2, func(start, end int, acc []float64) {
			for _, v := range values[start:end] {
				acc[0] += v
				acc[1] += v * v
			}
		})
		if got[0] != want[0] || got[1] != want[1] {
			t.Errorf("threshold %d: got %v, want %v", threshold, got, want)
		}
	}
}
