package nodes

import (
	"context"
	"sync"
)

// fanOut runs fn over items with at most workers goroutines and waits for
// every call to settle. Each call owns items[idx] exclusively for its
// duration; fn must confine its writes to that item (or its own slot in a
// caller-provided results slice). Context cancellation stops new work from
// starting but in-flight calls run to completion.
func fanOut[T any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, idx int, item T)) {
	if workers <= 0 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, it T) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, idx, it)
		}(i, item)
	}

	wg.Wait()
}
