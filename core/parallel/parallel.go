// Package parallel splits row ranges across CPU cores.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// chunks divides [0, items) into at most workers contiguous ranges.
func chunks(items, workers int) [][2]int {
	if items <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > items {
		workers = items
	}
	size := (items + workers - 1) / workers

	out := make([][2]int, 0, workers)
	for start := 0; start < items; start += size {
		out = append(out, [2]int{start, min(start+size, items)})
	}
	return out
}

// Parallelize runs fn over chunks of [0, items), one goroutine per CPU core.
func Parallelize(items int, fn func(start, end int)) {
	var g errgroup.Group
	for _, c := range chunks(items, runtime.NumCPU()) {
		g.Go(func() error {
			fn(c[0], c[1])
			return nil
		})
	}
	_ = g.Wait()
}

// ParallelizeWithThreshold runs fn sequentially over the whole range when
// items does not exceed threshold.
func ParallelizeWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}

// SumChunks runs fn on each chunk with its own accumulator of length width
// and returns the element-wise sum of the accumulators. Chunks run
// concurrently only above threshold.
func SumChunks(items, threshold, width int, fn func(start, end int, acc []float64)) []float64 {
	total := make([]float64, width)
	if items <= threshold {
		if items > 0 {
			fn(0, items, total)
		}
		return total
	}

	ranges := chunks(items, runtime.NumCPU())
	partial := make([][]float64, len(ranges))
	Parallelize(len(ranges), func(start, end int) {
		for i := start; i < end; i++ {
			partial[i] = make([]float64, width)
			fn(ranges[i][0], ranges[i][1], partial[i])
		}
	})
	// Summing in chunk order keeps the result deterministic.
	for _, p := range partial {
		for j, v := range p {
			total[j] += v
		}
	}
	return total
}
