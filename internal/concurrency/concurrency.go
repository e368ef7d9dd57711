// Package concurrency provides the bounded worker pool used for file
// copying.
package concurrency

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// NewPool returns a new pool where each task respects context cancellation.
// Task failures do not cancel sibling tasks; callers aggregate per-task
// results themselves.
func NewPool(ctx context.Context, maxGoroutines int) *pool.ContextPool {
	return pool.New().
		WithContext(ctx).
		WithMaxGoroutines(maxGoroutines)
}
