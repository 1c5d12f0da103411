package exr

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipeline(workers, total int, progress Progress) *pipeline {
	return newPipeline(newOptions([]Option{WithWorkers(workers), WithProgress(progress)}), total)
}

func TestPipelineOrdered(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{-1, 1, 4} {
		p := testPipeline(workers, 50, nil)
		var got []int
		err := p.run(context.Background(), true,
			func(_ context.Context, i int) ([]byte, error) {
				time.Sleep(time.Duration((50-i)%4) * time.Millisecond)
				return []byte{byte(i)}, nil
			},
			func(i int, out []byte) error {
				assert.Equal(t, byte(i), out[0])
				got = append(got, i)
				return nil
			},
		)
		require.NoError(t, err)
		require.Len(t, got, 50)
		for i, v := range got {
			require.Equal(t, i, v, "workers %d", workers)
		}
	}
}

func TestPipelineUnorderedDeliversAll(t *testing.T) {
	t.Parallel()

	p := testPipeline(8, 200, nil)
	seen := make([]bool, 200)
	err := p.run(context.Background(), false,
		func(_ context.Context, i int) ([]byte, error) { return nil, nil },
		func(i int, _ []byte) error {
			require.False(t, seen[i])
			seen[i] = true
			return nil
		},
	)
	require.NoError(t, err)
	for i, ok := range seen {
		assert.True(t, ok, "job %d", i)
	}
}

func TestPipelineCancelBound(t *testing.T) {
	t.Parallel()

	const (
		total   = 200
		workers = 4
		stopAt  = 10
	)

	var started, reported atomic.Int64
	progress := ProgressFunc(func(float64) Signal {
		if reported.Add(1) >= stopAt {
			return Cancel
		}
		return Continue
	})

	p := testPipeline(workers, total, progress)
	err := p.run(context.Background(), false,
		func(_ context.Context, _ int) ([]byte, error) {
			started.Add(1)
			time.Sleep(time.Millisecond)
			return nil, nil
		},
		func(int, []byte) error { return nil },
	)
	require.ErrorIs(t, err, ErrCancelled)
	assert.LessOrEqual(t, started.Load(), int64(stopAt+workers-1))
}

func TestPipelineSequentialCancel(t *testing.T) {
	t.Parallel()

	var started atomic.Int64
	p := testPipeline(-1, 20, ProgressFunc(func(f float64) Signal {
		if f >= 0.25 {
			return Cancel
		}
		return Continue
	}))
	err := p.run(context.Background(), true,
		func(_ context.Context, _ int) ([]byte, error) {
			started.Add(1)
			return nil, nil
		},
		func(int, []byte) error { return nil },
	)
	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, int64(5), started.Load())
}

func TestPipelineContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{-1, 4} {
		p := testPipeline(workers, 10, nil)
		err := p.run(ctx, false,
			func(context.Context, int) ([]byte, error) { return nil, nil },
			func(int, []byte) error { return nil },
		)
		require.ErrorIs(t, err, ErrCancelled)
		require.ErrorIs(t, err, context.Canceled)
	}
}

func TestPipelineErrors(t *testing.T) {
	t.Parallel()

	errWork := errors.New("work failed")
	errCollect := errors.New("collect failed")

	for _, workers := range []int{-1, 3} {
		p := testPipeline(workers, 30, nil)
		err := p.run(context.Background(), true,
			func(_ context.Context, i int) ([]byte, error) {
				if i == 7 {
					return nil, errWork
				}
				return nil, nil
			},
			func(int, []byte) error { return nil },
		)
		require.ErrorIs(t, err, errWork, "workers %d", workers)

		p = testPipeline(workers, 30, nil)
		err = p.run(context.Background(), false,
			func(context.Context, int) ([]byte, error) { return nil, nil },
			func(i int, _ []byte) error {
				if i == 3 {
					return errCollect
				}
				return nil
			},
		)
		require.ErrorIs(t, err, errCollect, "workers %d", workers)
	}
}

func TestWorkerCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, newOptions([]Option{WithWorkers(-1)}).workerCount(100))
	assert.Equal(t, 0, newOptions([]Option{WithWorkers(8)}).workerCount(1))
	assert.Equal(t, 3, newOptions([]Option{WithWorkers(8)}).workerCount(3))
	assert.Positive(t, newOptions(nil).workerCount(100))
}
