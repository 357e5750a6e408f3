// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

/*
Package taskengine implements the bounded-concurrency executor underneath
the ingestion pipeline. It is the only component that runs work in parallel;
everything above it is synchronous.

Contract:
  - At most MaxWorkers tasks execute concurrently. Excess submissions queue
    in FIFO order and start as worker slots free.
  - A failing task is retried up to RetryAttempts total attempts with a
    doubling delay between attempts. The attempt count is reported.
  - An attempt exceeding Timeout is abandoned and counted as a failed
    attempt; the worker slot is released at the deadline even if the
    handler goroutine has not returned.
  - SpawnBatch returns one result per input task, in input order. A failing
    task never aborts the rest of the batch.
  - Failures never cross the engine boundary as panics; every submission
    produces a SpawnResult.

Lifecycle signals (worker start/complete) are side-channel notifications
published through an optional watermill publisher and/or callback; callers
that do not need them incur no coupling.
*/
package taskengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eventscout/eventscout/internal/logging"
	"github.com/eventscout/eventscout/internal/metrics"
)

// ErrTimeout marks an attempt abandoned at its deadline.
var ErrTimeout = errors.New("task timed out")

// ErrEngineStopped is returned for submissions after Stop.
var ErrEngineStopped = errors.New("engine stopped")

// Task is an opaque unit of work. Identity is the submission slot, not a
// stored record: the engine keeps no task state after the result is
// delivered.
type Task struct {
	Name    string
	Payload interface{}
	Handler func(ctx context.Context, payload interface{}) (interface{}, error)
}

// SpawnResult is the outcome of one task. The engine always produces one,
// whatever happened inside the handler.
type SpawnResult struct {
	TaskName string
	Success  bool
	Data     interface{}
	Err      error
	Duration time.Duration
	Attempts int
}

// Options configures an Engine.
type Options struct {
	// MaxWorkers caps concurrent task execution. Minimum 1.
	MaxWorkers int

	// Timeout bounds each attempt. Zero disables the deadline.
	Timeout time.Duration

	// RetryAttempts is the total number of attempts per task. Minimum 1.
	RetryAttempts int

	// RetryDelay is the wait before the second attempt; it doubles after
	// each subsequent failure.
	RetryDelay time.Duration

	// Signals receives worker lifecycle notifications. Optional.
	Signals SignalSink
}

type submission struct {
	ctx    context.Context
	task   Task
	result chan SpawnResult
}

// Engine is a fixed-size worker pool fed by a FIFO queue.
type Engine struct {
	opts    Options
	queue   chan *submission
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	stats   Stats
}

// New creates an engine and starts its worker pool.
func New(opts Options) *Engine {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}

	e := &Engine{
		opts:  opts,
		queue: make(chan *submission),
	}
	e.wg.Add(opts.MaxWorkers)
	for i := 0; i < opts.MaxWorkers; i++ {
		go e.worker(i)
	}
	return e
}

// Spawn submits one task and blocks until its result is available.
func (e *Engine) Spawn(ctx context.Context, task Task) SpawnResult {
	sub := &submission{
		ctx:    ctx,
		task:   task,
		result: make(chan SpawnResult, 1),
	}
	if !e.enqueue(sub) {
		return SpawnResult{TaskName: task.Name, Err: ErrEngineStopped, Attempts: 0}
	}
	return <-sub.result
}

// SpawnBatch submits tasks in order and returns one result per task, in
// input order. Submission order is the FIFO admission order; execution
// overlap is bounded by MaxWorkers.
func (e *Engine) SpawnBatch(ctx context.Context, tasks []Task) []SpawnResult {
	subs := make([]*submission, len(tasks))
	for i, task := range tasks {
		subs[i] = &submission{
			ctx:    ctx,
			task:   task,
			result: make(chan SpawnResult, 1),
		}
	}

	results := make([]SpawnResult, len(tasks))
	accepted := make([]bool, len(tasks))
	for i, sub := range subs {
		accepted[i] = e.enqueue(sub)
	}
	for i, sub := range subs {
		if !accepted[i] {
			results[i] = SpawnResult{TaskName: tasks[i].Name, Err: ErrEngineStopped}
			continue
		}
		results[i] = <-sub.result
	}
	return results
}

// Stop drains the queue and waits for in-flight tasks to finish.
// Submissions after Stop fail with ErrEngineStopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.queue)
	e.mu.Unlock()

	e.wg.Wait()
}

// Stats returns a snapshot of the engine's lifetime counters.
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.Snapshot()
}

// ResetStats zeroes the lifetime counters.
func (e *Engine) ResetStats() {
	e.stats.Reset()
}

// enqueue hands a submission to the worker pool. Returns false if the
// engine has been stopped.
func (e *Engine) enqueue(sub *submission) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return false
	}
	e.queue <- sub
	return true
}

func (e *Engine) worker(id int) {
	defer e.wg.Done()
	for sub := range e.queue {
		e.runTask(id, sub)
	}
}

// runTask drives one submission through its retry budget and delivers the
// result. It never panics: handler panics are converted to errors.
func (e *Engine) runTask(workerID int, sub *submission) {
	start := time.Now()
	e.emit(Signal{Type: SignalWorkerStart, TaskName: sub.task.Name, WorkerID: workerID, Time: start})
	metrics.TasksInFlight.Inc()
	defer metrics.TasksInFlight.Dec()

	var (
		data     interface{}
		err      error
		attempts int
	)
	delay := e.opts.RetryDelay

	for attempt := 1; attempt <= e.opts.RetryAttempts; attempt++ {
		attempts = attempt
		data, err = e.runAttempt(sub.ctx, sub.task)
		if err == nil {
			break
		}
		if attempt == e.opts.RetryAttempts {
			break
		}

		metrics.TaskRetries.Inc()
		logging.Debug().Str("task", sub.task.Name).Int("attempt", attempt).
			Int("max_attempts", e.opts.RetryAttempts).Err(err).Msg("Task attempt failed, retrying")

		select {
		case <-time.After(delay):
		case <-sub.ctx.Done():
			err = sub.ctx.Err()
			attempt = e.opts.RetryAttempts // exit loop
		}
		delay *= 2
	}

	duration := time.Since(start)
	result := SpawnResult{
		TaskName: sub.task.Name,
		Success:  err == nil,
		Data:     data,
		Err:      err,
		Duration: duration,
		Attempts: attempts,
	}

	e.stats.record(result)
	switch {
	case err == nil:
		metrics.ObserveTask("success", duration)
	case errors.Is(err, ErrTimeout):
		metrics.ObserveTask("timeout", duration)
	default:
		metrics.ObserveTask("failure", duration)
	}

	e.emit(Signal{
		Type:     SignalWorkerComplete,
		TaskName: sub.task.Name,
		WorkerID: workerID,
		Time:     time.Now(),
		Success:  err == nil,
		Duration: duration,
	})

	sub.result <- result
}

// runAttempt executes the handler once under the configured deadline.
// The worker abandons the attempt at the deadline; the handler goroutine
// is expected to honor ctx and unwind shortly after.
func (e *Engine) runAttempt(ctx context.Context, task Task) (interface{}, error) {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if e.opts.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	type outcome struct {
		data interface{}
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("task %q panicked: %v", task.Name, r)}
			}
		}()
		data, err := task.Handler(attemptCtx, task.Payload)
		done <- outcome{data: data, err: err}
	}()

	select {
	case out := <-done:
		return out.data, out.err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("task %q: %w after %s", task.Name, ErrTimeout, e.opts.Timeout)
		}
		return nil, attemptCtx.Err()
	}
}

// emit delivers a lifecycle signal to the configured sink, if any.
func (e *Engine) emit(sig Signal) {
	if e.opts.Signals == nil {
		return
	}
	e.opts.Signals.Emit(sig)
}
