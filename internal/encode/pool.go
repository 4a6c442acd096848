// Package encode implements the §4.G pass-2 row-streaming worker pool: a
// batched, atomic-counter row scheduler grounded on
// deepteams/webp/internal/lossy/encode_parallel.go's row-pipelined
// parallel encoder, simplified since this pipeline's rows have no
// top/left context dependency the way WebP macroblocks do.
package encode

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrCancelled is returned by RunBatches when progress returns false.
var ErrCancelled = errors.New("encode: cancelled")

// RunBatches drives nrows rows of work through a pool of workers
// goroutines, in batches of up to `workers` rows at a time:
//
//  1. readRow(y) is called sequentially, in increasing y, for every row of
//     the batch -- this is the only point at which the single-threaded
//     image-set adapter is touched.
//  2. processRow(y) is then raced across the worker pool via an atomic
//     row-claim counter (any worker may process any row of the batch; the
//     only ordering guarantee is within step 1 and step 3).
//  3. commitRow(y) is called sequentially, in increasing y, for every row
//     of the batch, followed by progress(y); a false return cancels.
//
// This keeps "row y committed before row y+1" (§5) trivially true -- an
// entire batch finishes commit before the next batch's reads begin --
// while still parallelizing the actual per-pixel work within a batch.
func RunBatches(nrows, workers int, readRow, processRow, commitRow func(y int) error, progress func(y int) bool) error {
	if workers < 1 {
		workers = 1
	}

	for start := 0; start < nrows; start += workers {
		end := start + workers
		if end > nrows {
			end = nrows
		}

		for y := start; y < end; y++ {
			if err := readRow(y); err != nil {
				return err
			}
		}

		if err := processBatch(start, end, workers, processRow); err != nil {
			return err
		}

		for y := start; y < end; y++ {
			if err := commitRow(y); err != nil {
				return err
			}
			if progress != nil && !progress(y) {
				return ErrCancelled
			}
		}
	}
	return nil
}

// processBatch fans [start, end) out to the worker pool and waits for all
// rows to finish, returning the first error encountered (if any).
func processBatch(start, end, workers int, processRow func(y int) error) error {
	size := end - start
	if workers > size {
		workers = size
	}

	var next atomic.Int64
	next.Store(int64(start))

	errs := make([]error, size)
	var failed atomic.Bool

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				y := int(next.Add(1) - 1)
				if y >= end {
					return
				}
				if failed.Load() {
					return
				}
				if err := processRow(y); err != nil {
					errs[y-start] = err
					failed.Store(true)
					return
				}
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
