package pool

import (
	"context"
	"sync"
)

// MapFunc processes an item and produces a value.
type MapFunc[T, R any] func(ctx context.Context, item T) (R, error)

// Result pairs an input item with what the worker produced for it.
type Result[T, R any] struct {
	Item  T
	Value R
	Err   error
	// Skipped is set when the context was cancelled before the item ran.
	Skipped bool
}

// Map runs fn over items with at most numWorkers goroutines. Results are
// returned in input order. Items not started before ctx is cancelled are
// marked Skipped.
func Map[T, R any](ctx context.Context, items []T, numWorkers int, fn MapFunc[T, R]) []Result[T, R] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	results := make([]Result[T, R], len(items))
	for i, item := range items {
		results[i] = Result[T, R]{Item: item, Skipped: true}
	}

	var wg sync.WaitGroup
	taskChan := make(chan int, numWorkers)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range taskChan {
				select {
				case <-ctx.Done():
					continue
				default:
				}
				v, err := fn(ctx, items[idx])
				results[idx] = Result[T, R]{Item: items[idx], Value: v, Err: err}
			}
		}()
	}

OUT:
	for i := range items {
		select {
		case taskChan <- i:
		case <-ctx.Done():
			// Stop feeding tasks if the context is cancelled
			break OUT
		}
	}
	close(taskChan)

	wg.Wait()
	return results
}
