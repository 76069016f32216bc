package engine

import (
	"sync"
	"testing"
	"time"
)

func newTestReactor(t *testing.T) *Reactor {
	t.Helper()
	r, err := NewReactor(0, false)
	if err != nil {
		t.Fatalf("cannot start reactor: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestReactorExecutesTasksInSubmissionOrder(t *testing.T) {
	r := newTestReactor(t)

	const taskCount = 100
	var order []int
	var wg sync.WaitGroup
	wg.Add(taskCount)

	for i := 0; i < taskCount; i++ {
		i := i
		if err := r.Execute(func() {
			order = append(order, i)
			wg.Done()
		}); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
	}
	wg.Wait()

	// order is written only by the loop goroutine, no lock needed
	for i, got := range order {
		if got != i {
			t.Fatalf("task %d ran at position %d", got, i)
		}
	}
}

func TestReactorTasksRunOnEventloopGoroutine(t *testing.T) {
	r := newTestReactor(t)

	if r.OnEventloopGoroutine() {
		t.Fatal("test goroutine must not be the event loop goroutine")
	}

	result := make(chan bool, 1)
	if err := r.Execute(func() { result <- r.OnEventloopGoroutine() }); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !<-result {
		t.Error("task did not run on the event loop goroutine")
	}
}

func TestReactorSurvivesPanickingTask(t *testing.T) {
	r := newTestReactor(t)

	if err := r.Execute(func() { panic("boom") }); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	done := make(chan struct{})
	if err := r.Execute(func() { close(done) }); err != nil {
		t.Fatalf("Execute after panic failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not survive the panicking task")
	}
}

func TestReactorCloseIsIdempotent(t *testing.T) {
	r := newTestReactor(t)

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if err := r.Execute(func() {}); err != ErrReactorClosed {
		t.Errorf("Execute on a closed reactor: got %v, want ErrReactorClosed", err)
	}
}

func TestReactorCloseFromOwnLoop(t *testing.T) {
	r := newTestReactor(t)

	// closing from inside the loop must not deadlock
	if err := r.Execute(func() { _ = r.Close() }); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	select {
	case <-r.stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("reactor did not stop after closing itself")
	}
}

func TestReactorConcurrentSubmitters(t *testing.T) {
	r := newTestReactor(t)

	const submitters = 8
	const perSubmitter = 50

	var executed int
	var wg sync.WaitGroup
	wg.Add(submitters * perSubmitter)

	for i := 0; i < submitters; i++ {
		go func() {
			for j := 0; j < perSubmitter; j++ {
				for {
					err := r.Execute(func() {
						executed++
						wg.Done()
					})
					if err == nil {
						break
					}
					t.Errorf("Execute failed: %v", err)
					wg.Done()
					break
				}
			}
		}()
	}
	wg.Wait()

	check := make(chan int, 1)
	if err := r.Execute(func() { check <- executed }); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := <-check; got != submitters*perSubmitter {
		t.Errorf("executed %d tasks, expected %d", got, submitters*perSubmitter)
	}
}

func TestGoroutineIDIsStablePerGoroutine(t *testing.T) {
	if currentGoroutineID() != currentGoroutineID() {
		t.Fatal("goroutine ID changed between calls on the same goroutine")
	}

	other := make(chan int64, 1)
	go func() { other <- currentGoroutineID() }()
	if <-other == currentGoroutineID() {
		t.Fatal("two goroutines reported the same ID")
	}
}
