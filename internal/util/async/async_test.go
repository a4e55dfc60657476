package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAll_Success(t *testing.T) {
	t.Parallel()
	var count atomic.Int32

	tasks := []Task[int]{
		{Name: "one", Func: func(_ context.Context) (int, error) { count.Add(1); return 1, nil }},
		{Name: "two", Func: func(_ context.Context) (int, error) { count.Add(1); return 2, nil }},
		{Name: "three", Func: func(_ context.Context) (int, error) { count.Add(1); return 3, nil }},
	}

	results := RunAll(context.Background(), tasks)

	require.Len(t, results, 3)
	assert.Equal(t, int32(3), count.Load())
	for i, res := range results {
		assert.Equal(t, tasks[i].Name, res.Name)
		assert.Equal(t, i+1, res.Value)
		assert.NoError(t, res.Err)
	}
}

func TestRunAll_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, RunAll[int](context.Background(), nil))
}

func TestRunAll_ErrorDoesNotStopOthers(t *testing.T) {
	t.Parallel()
	expected := errors.New("task failed")

	tasks := []Task[string]{
		{Name: "failing", Func: func(_ context.Context) (string, error) { return "", expected }},
		{Name: "slow", Func: func(_ context.Context) (string, error) {
			time.Sleep(20 * time.Millisecond)
			return "done", nil
		}},
	}

	results := RunAll(context.Background(), tasks)

	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, expected)
	assert.Equal(t, "done", results[1].Value)
	assert.NoError(t, results[1].Err)
	assert.GreaterOrEqual(t, results[1].Duration, 20*time.Millisecond)
}

func TestRunAll_RecoversPanics(t *testing.T) {
	t.Parallel()

	tasks := []Task[int]{
		{Name: "panicky", Func: func(_ context.Context) (int, error) { panic("kaboom") }},
		{Name: "fine", Func: func(_ context.Context) (int, error) { return 7, nil }},
	}

	results := RunAll(context.Background(), tasks)

	var panicErr *PanicError
	require.ErrorAs(t, results[0].Err, &panicErr)
	assert.Equal(t, "panicky", panicErr.Name())
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.Contains(t, results[0].Err.Error(), "kaboom")
	assert.Equal(t, 7, results[1].Value)
}

func TestRunAll_RunsConcurrently(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	var started atomic.Int32

	task := func(_ context.Context) (struct{}, error) {
		started.Add(1)
		<-release
		return struct{}{}, nil
	}
	tasks := []Task[struct{}]{{Name: "a", Func: task}, {Name: "b", Func: task}}

	done := make(chan struct{})
	go func() {
		RunAll(context.Background(), tasks)
		close(done)
	}()

	assert.Eventually(t, func() bool { return started.Load() == 2 }, time.Second, time.Millisecond)
	close(release)
	<-done
}
