// Package async provides utilities for parallel task execution.
//
// Tasks are started together and the caller receives one result per task once
// every task has finished. A failing or panicking task never stops the others.
package async

import (
	"context"
	"fmt"
	"time"
)

// Task represents an asynchronous operation with a name and function.
type Task[T any] struct {
	Name string
	Func func(context.Context) (T, error)
}

// Result is the outcome of a single Task.
type Result[T any] struct {
	Name     string
	Value    T
	Err      error
	Duration time.Duration
}

// PanicError is returned in a Result when the task panicked.
type PanicError struct {
	Task  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.Name(), e.Value)
}

// Name returns the name of the task that panicked.
func (e *PanicError) Name() string {
	return e.Task
}

// RunAll executes all tasks in parallel, one goroutine per task, and returns
// their results in task order after every task has completed.
//
// Results travel back over a channel so tasks never share mutable state.
//
// Example:
//
//	tasks := []Task[[]string]{
//	    {Name: "rhv-1", Func: lister.ListTemplates},
//	}
//	for _, res := range RunAll(ctx, tasks) {
//	    if res.Err != nil { ... }
//	}
func RunAll[T any](ctx context.Context, tasks []Task[T]) []Result[T] {
	if len(tasks) == 0 {
		return nil
	}

	type indexed struct {
		index int
		res   Result[T]
	}

	resultChan := make(chan indexed, len(tasks))

	for i, task := range tasks {
		go func() {
			resultChan <- indexed{index: i, res: run(ctx, task)}
		}()
	}

	results := make([]Result[T], len(tasks))
	for range len(tasks) {
		r := <-resultChan
		results[r.index] = r.res
	}

	return results
}

// run executes one task and converts a panic into a PanicError.
func run[T any](ctx context.Context, task Task[T]) (res Result[T]) {
	res.Name = task.Name
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if r := recover(); r != nil {
			var zero T
			res.Value = zero
			res.Err = &PanicError{Task: task.Name, Value: r}
		}
	}()

	res.Value, res.Err = task.Func(ctx)
	return res
}
