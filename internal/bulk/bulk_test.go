package bulk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("plan %d", i+1)
	}
	return out
}

func TestSequentialExecutionPreservesOrder(t *testing.T) {
	var executed []int
	var log bytes.Buffer
	op := &Operation{Jobs: 4, Ordered: true, Log: &log}

	result := op.Execute(context.Background(), labels(5), func(_ context.Context, i int) error {
		executed = append(executed, i)
		return nil
	})

	assert.Equal(t, []int{0, 1, 2, 3, 4}, executed)
	assert.Equal(t, 5, result.Succeeded)
	assert.Equal(t, 0, result.ExitCode())
	assert.Contains(t, log.String(), "plan 3: ok")
}

func TestParallelExecutionBoundsWorkers(t *testing.T) {
	var running, peak int32
	op := &Operation{Jobs: 3, ContinueOnError: true}

	result := op.Execute(context.Background(), labels(12), func(_ context.Context, _ int) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})

	assert.Equal(t, 12, result.Succeeded)
	assert.LessOrEqual(t, peak, int32(3))
}

func TestContinueOnError(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]bool{}
	op := &Operation{Jobs: 2, ContinueOnError: true}

	result := op.Execute(context.Background(), labels(6), func(_ context.Context, i int) error {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
		if i%2 == 1 {
			return errors.New("conflict")
		}
		return nil
	})

	assert.Len(t, seen, 6)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 3, result.Failed)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, []int{1, 3, 5}, []int{result.Errors[0].Index, result.Errors[1].Index, result.Errors[2].Index})
	assert.Equal(t, 5, result.ExitCode())
}

func TestStopOnFirstError(t *testing.T) {
	op := &Operation{Jobs: 1}

	result := op.Execute(context.Background(), labels(4), func(_ context.Context, i int) error {
		if i == 1 {
			return errors.New("protected")
		}
		return nil
	})

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 5, result.ExitCode())

	var out bytes.Buffer
	result.PrintSummary(&out)
	assert.Contains(t, out.String(), "1 succeeded, 1 failed, 2 skipped")
	assert.Contains(t, out.String(), "plan 2: protected")
}

func TestCancelledContextSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	op := &Operation{Jobs: 1, ContinueOnError: true}

	result := op.Execute(ctx, labels(3), func(_ context.Context, i int) error {
		cancel()
		return nil
	})

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 2, result.Skipped)
}

func TestEmptyInput(t *testing.T) {
	result := (&Operation{}).Execute(context.Background(), nil, func(context.Context, int) error { return nil })
	assert.Equal(t, 0, result.TotalItems)
	assert.Equal(t, 0, result.ExitCode())
}

func TestAllFailedExitCode(t *testing.T) {
	r := &Result{TotalItems: 2, Failed: 2}
	assert.Equal(t, 1, r.ExitCode())
}
