package processor

import (
	"context"
	"fmt"
	"sync"

	"fshuttle/internal/logger"
)

// Executor runs processor tasks. Do blocks until the task result is
// available or the context is done; concurrency across connections comes
// from many callers, not from Do being asynchronous.
type Executor interface {
	Do(ctx context.Context, task func() Result) (Result, error)

	// Close releases executor resources. Do must not be called after Close.
	Close()
}

// runSafe executes a task, converting a panic into a failure payload so no
// panic crosses the processor boundary.
func runSafe(task func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("processor task panic: %v", r)
			res = failure([]byte(fmt.Sprintf("Operation failed: %v", r)))
		}
	}()
	return task()
}

// inlineExecutor runs the task on the calling goroutine. Appropriate when
// operations are I/O-bound and handler goroutines are cheap.
type inlineExecutor struct{}

// NewInline returns an executor that runs tasks on the caller.
func NewInline() Executor {
	return inlineExecutor{}
}

func (inlineExecutor) Do(ctx context.Context, task func() Result) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return runSafe(task), nil
}

func (inlineExecutor) Close() {}

type poolTask struct {
	run  func() Result
	done chan Result
}

// poolExecutor runs tasks on a fixed set of worker goroutines, bounding how
// much storage work is in flight regardless of connection count.
type poolExecutor struct {
	tasks     chan poolTask
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool starts workers goroutines consuming a queue of queueSize pending
// tasks. Both values must be positive.
func NewPool(workers, queueSize int) Executor {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers
	}

	p := &poolExecutor{tasks: make(chan poolTask, queueSize)}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *poolExecutor) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		t.done <- runSafe(t.run)
	}
}

func (p *poolExecutor) Do(ctx context.Context, task func() Result) (Result, error) {
	t := poolTask{run: task, done: make(chan Result, 1)}

	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case res := <-t.done:
		return res, nil
	case <-ctx.Done():
		// The worker will still run the task; its buffered result is
		// dropped. The caller's connection is already gone.
		return Result{}, ctx.Err()
	}
}

func (p *poolExecutor) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
		p.wg.Wait()
	})
}
