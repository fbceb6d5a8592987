package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	"voxid/pkg/platform/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	Conflicts int32
	NotFounds int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds
}

// RunConcurrent executes fn in parallel goroutines, released together, and
// buckets the outcomes. sentinel.ErrAlreadyExists counts as a conflict.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	successes, collected := RunConcurrentCollect(goroutines, fn)
	result := &ConcurrentResult{Successes: successes}
	for _, err := range collected {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyExists):
			result.Conflicts++
		case errors.Is(err, sentinel.ErrNotFound):
			result.NotFounds++
		default:
			result.Errors++
		}
	}
	return result
}

// RunConcurrentCollect executes fn in parallel and returns every error for
// callers that classify domain-specific failures themselves.
func RunConcurrentCollect(goroutines int, fn func(idx int) error) (successes int32, errs []error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var successCount atomic.Int32
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			if err := fn(idx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			successCount.Add(1)
		}(i)
	}

	close(start)
	wg.Wait()
	return successCount.Load(), errs
}
