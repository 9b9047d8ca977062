// Package tasks runs background work on a supervised pool: panics are recovered,
// failures are logged and published on an error channel.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrPoolClosed is returned by Submit after Shutdown has started
var ErrPoolClosed = errors.New("task pool is shut down")

// Task is a unit of background work. ctx is the pool's root context, not the
// context of whoever submitted the task.
type Task func(ctx context.Context) error

// TaskError describes a failed or panicked task
type TaskError struct {
	Name     string
	Panicked bool
	Cause    error
}

func (e *TaskError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("task %s panicked: %v", e.Name, e.Cause)
	}
	return fmt.Sprintf("task %s failed: %v", e.Name, e.Cause)
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}

// Pool bounds concurrent background tasks
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	errs   chan *TaskError
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a pool running at most workers tasks at once. Its root context
// derives from parent without inheriting cancellation, so tasks outlive the
// request that submitted them until Shutdown.
func NewPool(parent context.Context, workers int, logger zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &Pool{
		ctx:    ctx,
		cancel: cancel,
		sem:    make(chan struct{}, workers),
		errs:   make(chan *TaskError, 64),
		logger: logger.With().Str("component", "task_pool").Logger(),
	}
}

// Submit schedules task. It never blocks; tasks wait for a free worker slot.
func (p *Pool) Submit(name string, task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.wg.Add(1)
	go p.run(name, task)
	return nil
}

// Errors publishes every task failure. The channel is closed when Shutdown
// completes. Failures are dropped (but still logged) when nobody drains it.
func (p *Pool) Errors() <-chan *TaskError {
	return p.errs
}

func (p *Pool) run(name string, task Task) {
	defer p.wg.Done()

	select {
	case p.sem <- struct{}{}:
	case <-p.ctx.Done():
		p.report(&TaskError{Name: name, Cause: p.ctx.Err()})
		return
	}
	defer func() { <-p.sem }()

	start := time.Now()
	err := p.safeRun(name, task)
	if err != nil {
		p.report(err)
		return
	}
	p.logger.Debug().Str("task", name).Dur("duration", time.Since(start)).Msg("task completed")
}

func (p *Pool) safeRun(name string, task Task) (taskErr *TaskError) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("task", name).
				Str("stack", string(debug.Stack())).
				Msgf("panic recovered: %v", r)
			taskErr = &TaskError{Name: name, Panicked: true, Cause: fmt.Errorf("%v", r)}
		}
	}()

	if err := task(p.ctx); err != nil {
		return &TaskError{Name: name, Cause: err}
	}
	return nil
}

func (p *Pool) report(err *TaskError) {
	p.logger.Error().Err(err.Cause).Str("task", err.Name).Bool("panicked", err.Panicked).Msg("background task failed")
	select {
	case p.errs <- err:
	default:
		p.logger.Warn().Str("task", err.Name).Msg("error channel full, dropping task error")
	}
}

// Shutdown stops accepting tasks and waits for running ones. If ctx expires
// first, the root context is cancelled and Shutdown still waits for tasks to
// return before reporting ctx's error.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		p.cancel()
		<-done
	}
	p.cancel()
	close(p.errs)
	return err
}
