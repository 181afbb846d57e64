package path

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withPerfConfig(t *testing.T, ops, threads int) {
	oldOps, oldThreads, oldSkip := perfOps, perfNumThreads, perfSkip
	perfOps, perfNumThreads, perfSkip = ops, threads, nil
	t.Cleanup(func() {
		perfOps, perfNumThreads, perfSkip = oldOps, oldThreads, oldSkip
	})
}

func TestRunPerfTestCountsErrors(t *testing.T) {
	withPerfConfig(t, 100, 4)

	var calls atomic.Int64
	res, err := runPerfTest(context.Background(), perfTest{
		name: "odd",
		op: func(_ context.Context, i int) error {
			calls.Add(1)
			if i%2 == 1 {
				return errors.New("odd operation")
			}
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), calls.Load())
	assert.Equal(t, int64(50), res.errors)
	assert.Equal(t, int64(100), res.timer.Count())
}

func TestRunPerfTestCancelled(t *testing.T) {
	withPerfConfig(t, 1000, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	_, err := runPerfTest(ctx, perfTest{
		name: "cancel",
		op: func(_ context.Context, _ int) error {
			if calls.Add(1) == 10 {
				cancel()
			}
			return nil
		},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls.Load(), int64(1000))
}

func TestRunPerfTestSkipped(t *testing.T) {
	withPerfConfig(t, 10, 1)
	perfSkip = []string{"skipped"}

	res, err := runPerfTest(context.Background(), perfTest{
		name: "skipped",
		op: func(_ context.Context, _ int) error {
			t.Fatal("skipped benchmark must not run")
			return nil
		},
	})
	require.NoError(t, err)
	assert.True(t, res.skipped)
}
