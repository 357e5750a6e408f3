// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package taskengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e := New(opts)
	t.Cleanup(e.Stop)
	return e
}

func TestSpawn_Success(t *testing.T) {
	e := newTestEngine(t, Options{MaxWorkers: 2, RetryAttempts: 3})

	res := e.Spawn(context.Background(), Task{
		Name:    "ok",
		Payload: 21,
		Handler: func(ctx context.Context, payload interface{}) (interface{}, error) {
			return payload.(int) * 2, nil
		},
	})

	if !res.Success {
		t.Fatalf("expected success, got error: %v", res.Err)
	}
	if res.Data.(int) != 42 {
		t.Errorf("Data = %v, want 42", res.Data)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if res.TaskName != "ok" {
		t.Errorf("TaskName = %q, want %q", res.TaskName, "ok")
	}
}

func TestSpawn_ConcurrencyBound(t *testing.T) {
	const maxWorkers = 3
	const numTasks = 12

	e := newTestEngine(t, Options{MaxWorkers: maxWorkers, RetryAttempts: 1})

	var current, peak int32
	tasks := make([]Task, numTasks)
	for i := range tasks {
		tasks[i] = Task{
			Name: fmt.Sprintf("task-%d", i),
			Handler: func(ctx context.Context, _ interface{}) (interface{}, error) {
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil, nil
			},
		}
	}

	results := e.SpawnBatch(context.Background(), tasks)
	for i, res := range results {
		if !res.Success {
			t.Errorf("task %d failed: %v", i, res.Err)
		}
	}
	if p := atomic.LoadInt32(&peak); p > maxWorkers {
		t.Errorf("peak concurrency = %d, want <= %d", p, maxWorkers)
	}
}

func TestSpawn_RetryThenSucceed(t *testing.T) {
	e := newTestEngine(t, Options{MaxWorkers: 1, RetryAttempts: 5, RetryDelay: time.Millisecond})

	var calls int32
	res := e.Spawn(context.Background(), Task{
		Name: "flaky",
		Handler: func(ctx context.Context, _ interface{}) (interface{}, error) {
			if atomic.AddInt32(&calls, 1) <= 2 {
				return nil, errors.New("transient")
			}
			return "ok", nil
		},
	})

	if !res.Success {
		t.Fatalf("expected eventual success, got %v", res.Err)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
}

func TestSpawn_ExhaustedRetries(t *testing.T) {
	const attempts = 3
	e := newTestEngine(t, Options{MaxWorkers: 1, RetryAttempts: attempts, RetryDelay: time.Millisecond})

	var calls int32
	res := e.Spawn(context.Background(), Task{
		Name: "doomed",
		Handler: func(ctx context.Context, _ interface{}) (interface{}, error) {
			atomic.AddInt32(&calls, 1)
			return nil, errors.New("always fails")
		},
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Attempts != attempts {
		t.Errorf("Attempts = %d, want %d", res.Attempts, attempts)
	}
	if got := atomic.LoadInt32(&calls); got != attempts {
		t.Errorf("handler called %d times, want %d", got, attempts)
	}
}

func TestSpawn_Timeout(t *testing.T) {
	const timeout = 100 * time.Millisecond
	e := newTestEngine(t, Options{MaxWorkers: 1, RetryAttempts: 1, Timeout: timeout})

	start := time.Now()
	res := e.Spawn(context.Background(), Task{
		Name: "stuck",
		Handler: func(ctx context.Context, _ interface{}) (interface{}, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	elapsed := time.Since(start)

	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if !errors.Is(res.Err, ErrTimeout) {
		t.Errorf("Err = %v, want ErrTimeout", res.Err)
	}
	if elapsed < timeout || elapsed > timeout+500*time.Millisecond {
		t.Errorf("elapsed = %s, want roughly %s", elapsed, timeout)
	}
}

func TestSpawn_TimeoutDoesNotBlockSlot(t *testing.T) {
	// One worker: a stuck task must release its slot at the deadline so a
	// following task can run.
	e := newTestEngine(t, Options{MaxWorkers: 1, RetryAttempts: 1, Timeout: 50 * time.Millisecond})

	block := make(chan struct{})
	defer close(block)
	results := e.SpawnBatch(context.Background(), []Task{
		{
			Name: "stuck",
			Handler: func(ctx context.Context, _ interface{}) (interface{}, error) {
				<-block // ignores ctx on purpose
				return nil, nil
			},
		},
		{
			Name: "quick",
			Handler: func(ctx context.Context, _ interface{}) (interface{}, error) {
				return "done", nil
			},
		},
	})

	if results[0].Success {
		t.Error("stuck task should have timed out")
	}
	if !results[1].Success {
		t.Errorf("quick task should have run after the timeout, got %v", results[1].Err)
	}
}

func TestSpawn_PanicRecovered(t *testing.T) {
	e := newTestEngine(t, Options{MaxWorkers: 1, RetryAttempts: 2, RetryDelay: time.Millisecond})

	res := e.Spawn(context.Background(), Task{
		Name: "panicky",
		Handler: func(ctx context.Context, _ interface{}) (interface{}, error) {
			panic("boom")
		},
	})

	if res.Success {
		t.Fatal("expected failure from panic")
	}
	if res.Err == nil || res.Attempts != 2 {
		t.Errorf("Err = %v, Attempts = %d; want error after 2 attempts", res.Err, res.Attempts)
	}
}

func TestSpawnBatch_PreservesOrder(t *testing.T) {
	e := newTestEngine(t, Options{MaxWorkers: 4, RetryAttempts: 1})

	const n = 20
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{
			Name: fmt.Sprintf("task-%d", i),
			Handler: func(ctx context.Context, _ interface{}) (interface{}, error) {
				// Vary completion order.
				time.Sleep(time.Duration(n-i) * time.Millisecond)
				if i%5 == 0 {
					return nil, fmt.Errorf("task %d failed", i)
				}
				return i, nil
			},
		}
	}

	results := e.SpawnBatch(context.Background(), tasks)
	if len(results) != n {
		t.Fatalf("got %d results, want %d", len(results), n)
	}
	for i, res := range results {
		if res.TaskName != fmt.Sprintf("task-%d", i) {
			t.Errorf("results[%d].TaskName = %q, out of order", i, res.TaskName)
		}
		if i%5 == 0 {
			if res.Success {
				t.Errorf("results[%d] should have failed", i)
			}
		} else if !res.Success {
			t.Errorf("results[%d] failed unexpectedly: %v", i, res.Err)
		} else if res.Data.(int) != i {
			t.Errorf("results[%d].Data = %v, want %d", i, res.Data, i)
		}
	}
}

func TestEngine_Stats(t *testing.T) {
	e := newTestEngine(t, Options{MaxWorkers: 2, RetryAttempts: 1})

	for i := 0; i < 3; i++ {
		e.Spawn(context.Background(), Task{
			Name: "ok",
			Handler: func(ctx context.Context, _ interface{}) (interface{}, error) {
				return nil, nil
			},
		})
	}
	e.Spawn(context.Background(), Task{
		Name: "bad",
		Handler: func(ctx context.Context, _ interface{}) (interface{}, error) {
			return nil, errors.New("nope")
		},
	})

	snap := e.Stats()
	if snap.TotalTasks != 4 || snap.CompletedTasks != 3 || snap.FailedTasks != 1 {
		t.Errorf("Stats = %+v, want total=4 completed=3 failed=1", snap)
	}

	e.ResetStats()
	snap = e.Stats()
	if snap.TotalTasks != 0 || snap.AverageDuration != 0 {
		t.Errorf("after Reset, Stats = %+v, want zeros", snap)
	}
}

func TestEngine_Signals(t *testing.T) {
	var mu sync.Mutex
	counts := map[string]int{}

	e := newTestEngine(t, Options{
		MaxWorkers:    2,
		RetryAttempts: 1,
		Signals: CallbackSink(func(sig Signal) {
			mu.Lock()
			counts[sig.Type]++
			mu.Unlock()
		}),
	})

	tasks := make([]Task, 5)
	for i := range tasks {
		tasks[i] = Task{
			Name: "signaled",
			Handler: func(ctx context.Context, _ interface{}) (interface{}, error) {
				return nil, nil
			},
		}
	}
	e.SpawnBatch(context.Background(), tasks)

	mu.Lock()
	defer mu.Unlock()
	if counts[SignalWorkerStart] != 5 || counts[SignalWorkerComplete] != 5 {
		t.Errorf("signal counts = %v, want 5 starts and 5 completes", counts)
	}
}

func TestEngine_SpawnAfterStop(t *testing.T) {
	e := New(Options{MaxWorkers: 1, RetryAttempts: 1})
	e.Stop()

	res := e.Spawn(context.Background(), Task{
		Name: "late",
		Handler: func(ctx context.Context, _ interface{}) (interface{}, error) {
			return nil, nil
		},
	})

	if !errors.Is(res.Err, ErrEngineStopped) {
		t.Errorf("Err = %v, want ErrEngineStopped", res.Err)
	}
}
