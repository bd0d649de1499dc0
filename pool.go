package canopywatch

import (
	"context"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/alitto/pond"
)

// chunkSize bounds how many pixels one pool task covers, balancing
// scheduling overhead against the per-worker IRLS workspace allocation
// cost (spec.md §5's "allocated inside the parallel region").
const chunkSize = 4096

// ParallelForPixels runs fn(start, end) for every contiguous, disjoint
// [start, end) pixel range covering [0, n), spread across a fixed pool of
// workers workers (the -j flag of spec.md §6; workers <= 0 falls back to
// 2*NumCPU). Grounded on the teacher's cmd/main.go convert_gsf_list
// (pond.New fixed pool, pool.Submit per unit of work, pool.StopAndWait()),
// generalized from "one task per file" to "one task per pixel range" to
// match spec.md §5's fork-join-over-pixels model (OpenMP's #pragma omp for).
func ParallelForPixels(n, workers int, fn func(start, end int)) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	pool := pond.New(workers, 0, pond.MinWorkers(workers), pond.Context(ctx))

	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		s, e := start, end
		pool.Submit(func() {
			fn(s, e)
		})
	}

	pool.StopAndWait()
}
