package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// CostEstimator reports the estimated cost of one work item (token count,
// serialized bytes, whatever the caller budgets on).
type CostEstimator[T any] func(item T) int

// Plan groups items into batches using greedy bin-packing: items are
// appended to the current batch until either the count cap or the
// cumulative cost cap would be exceeded. A single item whose cost exceeds
// maxCost forms its own batch. Concatenating the returned batches
// reproduces the input order exactly.
func Plan[T any](items []T, estimate CostEstimator[T], maxCount, maxCost int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if maxCount < 1 {
		maxCount = 1
	}

	var batches [][]T
	var current []T
	currentCost := 0

	for _, item := range items {
		cost := estimate(item)

		full := len(current) >= maxCount ||
			(len(current) > 0 && maxCost > 0 && currentCost+cost > maxCost)
		if full {
			batches = append(batches, current)
			current = nil
			currentCost = 0
		}

		current = append(current, item)
		currentCost += cost
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches
}

// Result carries the outcome of one batch's worker.
type Result struct {
	BatchIndex int
	Err        error
}

// Worker processes one batch; the index is the batch's position in the
// planned sequence.
type Worker[T any] func(ctx context.Context, batchIndex int, items []T) error

// RunBounded executes batches with at most `concurrency` workers in
// flight. A failing batch never aborts its siblings; every batch reports
// its own Result and the slice is ordered by batch index.
func RunBounded[T any](ctx context.Context, batches [][]T, worker Worker[T], concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	results := make([]Result, len(batches))

	var wg sync.WaitGroup
	for i, items := range batches {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled while waiting for a slot; remaining
			// batches are marked without running.
			for j := i; j < len(batches); j++ {
				results[j] = Result{BatchIndex: j, Err: err}
			}
			break
		}

		wg.Add(1)
		go func(idx int, batch []T) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx] = Result{BatchIndex: idx, Err: worker(ctx, idx, batch)}
		}(i, items)
	}

	wg.Wait()
	return results
}
