package common

import (
	"fmt"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("common")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IExecutor defines the interface for submitting work to a pool of workers.
// Submit never runs the task on the calling goroutine.
type IExecutor interface {
	// Submit enqueues a task for asynchronous execution. It returns an
	// error if the executor has been closed.
	Submit(task func()) error
}

// -----------------------------------------------------------
// Worker Pool
// -----------------------------------------------------------

// WorkerPool is a fixed-size pool of worker goroutines draining a shared
// task queue. It implements IExecutor. A panic in a task is contained and
// logged, the worker keeps running.
type WorkerPool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a worker pool with the given number of workers and
// task queue size. Submit blocks while the queue is full.
func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 16
	}

	p := &WorkerPool{
		tasks: make(chan func(), queueSize),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IExecutor)
// --------------------------------------------------------------------------

func (p *WorkerPool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("worker pool is closed")
	}

	p.tasks <- task
	return nil
}

// Close shuts the pool down and waits for all workers to finish the tasks
// already queued. Close is idempotent.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// worker drains the task queue until it is closed
func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.runSafe(task)
	}
}

// runSafe executes a single task, containing panics
func (p *WorkerPool) runSafe(task func()) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("Recovered from panic in worker task: %v", r)
		}
	}()
	task()
}
