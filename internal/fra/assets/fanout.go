package assets

import (
	"context"
	"sync"
	"time"
)

// fanOut runs work for n keys with at most limit in flight and collects what
// each emits, per key, in emission order. When budget elapses it stops
// waiting and returns what was collected; complete reports whether every
// worker finished first.
func fanOut[T any](ctx context.Context, n, limit int, budget time.Duration, work func(ctx context.Context, i int, emit func(T))) (results [][]T, complete bool) {
	results = make([][]T, n)
	if n == 0 {
		return results, true
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	budgetCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var (
		mu     sync.Mutex
		closed bool
		wg     sync.WaitGroup
		sem    = make(chan struct{}, limit)
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-budgetCtx.Done():
				return
			}
			defer func() { <-sem }()

			work(budgetCtx, i, func(item T) {
				mu.Lock()
				defer mu.Unlock()
				if !closed {
					results[i] = append(results[i], item)
				}
			})
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		complete = true
	case <-budgetCtx.Done():
	}

	mu.Lock()
	closed = true
	snapshot := make([][]T, n)
	for i := range results {
		snapshot[i] = append([]T(nil), results[i]...)
	}
	mu.Unlock()
	return snapshot, complete
}
