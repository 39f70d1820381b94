// Package bulk runs a list of independent operations (batch merges) on a
// bounded worker pool and summarizes the outcome.
package bulk

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Operation represents a bulk operation configuration
type Operation struct {
	Jobs            int
	ContinueOnError bool
	Ordered         bool
	// Log receives one line per finished item. Nil discards.
	Log io.Writer
}

// Result represents the result of a bulk operation
type Result struct {
	TotalItems int
	Succeeded  int
	Failed     int
	Skipped    int // not started because an earlier item failed
	Errors     []ItemError
}

// ItemError represents an error for a specific item
type ItemError struct {
	Index int
	Item  string
	Error error
}

// ItemFunc is the function to execute for item i
type ItemFunc func(ctx context.Context, i int) error

// Execute runs fn for every item. Items are labels used in logs and errors.
func (op *Operation) Execute(ctx context.Context, items []string, fn ItemFunc) *Result {
	if len(items) == 0 {
		return &Result{}
	}

	jobs := op.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	if jobs > len(items) {
		jobs = len(items)
	}
	if op.Ordered {
		jobs = 1
	}

	return op.execute(ctx, items, fn, jobs)
}

func (op *Operation) execute(ctx context.Context, items []string, fn ItemFunc, workers int) *Result {
	result := &Result{TotalItems: len(items)}

	work := make(chan int, len(items))
	for i := range items {
		work <- i
	}
	close(work)

	var (
		succeeded int32
		failed    int32
		started   int32
		stop      atomic.Bool
		mu        sync.Mutex
		wg        sync.WaitGroup
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				if stop.Load() || ctx.Err() != nil {
					continue
				}
				atomic.AddInt32(&started, 1)

				err := fn(ctx, i)
				if err != nil {
					atomic.AddInt32(&failed, 1)
					mu.Lock()
					result.Errors = append(result.Errors, ItemError{Index: i, Item: items[i], Error: err})
					op.logf("%s: error: %v\n", items[i], err)
					mu.Unlock()
					if !op.ContinueOnError {
						stop.Store(true)
					}
					continue
				}
				atomic.AddInt32(&succeeded, 1)
				mu.Lock()
				op.logf("%s: ok\n", items[i])
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Slice(result.Errors, func(a, b int) bool { return result.Errors[a].Index < result.Errors[b].Index })
	result.Succeeded = int(succeeded)
	result.Failed = int(failed)
	result.Skipped = len(items) - int(started)
	return result
}

func (op *Operation) logf(format string, args ...any) {
	if op.Log != nil {
		fmt.Fprintf(op.Log, format, args...)
	}
}

// ExitCode returns the appropriate exit code for the result
func (r *Result) ExitCode() int {
	if r.Failed == 0 && r.Skipped == 0 {
		return 0 // All succeeded
	}
	if r.Succeeded > 0 {
		return 5 // Partial success
	}
	return 1 // All failed
}

// PrintSummary prints a human-readable summary of the result
func (r *Result) PrintSummary(w io.Writer) {
	switch {
	case r.TotalItems == 0:
		fmt.Fprintf(w, "\nNothing to do\n")
	case r.Failed == 0 && r.Skipped == 0:
		fmt.Fprintf(w, "\n✓ All %d operations succeeded\n", r.TotalItems)
	case r.Succeeded == 0:
		fmt.Fprintf(w, "\n✗ No operations succeeded: %d failed, %d skipped\n", r.Failed, r.Skipped)
	default:
		fmt.Fprintf(w, "\n⚠ Partial success: %d succeeded, %d failed, %d skipped (out of %d)\n",
			r.Succeeded, r.Failed, r.Skipped, r.TotalItems)
	}

	shown := r.Errors
	if len(shown) > 10 {
		fmt.Fprintf(w, "\nShowing first 10 errors (of %d):\n", len(r.Errors))
		shown = shown[:10]
	} else if len(shown) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
	}
	for _, e := range shown {
		fmt.Fprintf(w, "  %s: %s\n", e.Item, strings.ReplaceAll(e.Error.Error(), "\n", "\n    "))
	}
}
