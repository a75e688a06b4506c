package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"skeditor/internal/ports"
	"skeditor/internal/types"
)

// TaskScheduler runs processes on a re-creatable worker pool. Tasks are
// either started immediately with Run or parked with Schedule until
// ReleaseAll. Each task's output goes to the console named after it.
type TaskScheduler struct {
	Runner   ports.ProcessRunnerPort
	Consoles ports.ConsolePort

	baseCtx context.Context
	mu      sync.Mutex
	pending []types.ScheduledTask
	pool    *workerPool
}

// NewTaskScheduler binds the scheduler to ctx for logging only; pool
// lifetime is controlled through the shutdown methods.
func NewTaskScheduler(ctx context.Context, runner ports.ProcessRunnerPort, consoles ports.ConsolePort) *TaskScheduler {
	return &TaskScheduler{
		Runner:   runner,
		Consoles: consoles,
		baseCtx:  context.WithoutCancel(ctx),
	}
}

func (s *TaskScheduler) Schedule(task types.ScheduledTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, task)
}

func (s *TaskScheduler) Pending() []types.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ScheduledTask(nil), s.pending...)
}

// ReleaseAll submits every pending task in insertion order, clears the
// pending list and returns how many tasks were released.
func (s *TaskScheduler) ReleaseAll() int {
	s.mu.Lock()
	tasks := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, task := range tasks {
		s.Run(task)
	}
	return len(tasks)
}

// Discard drops pending tasks without running them.
func (s *TaskScheduler) Discard() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	s.pending = nil
	return n
}

// Run starts task on the pool, creating a new pool if the previous one was
// shut down.
func (s *TaskScheduler) Run(task types.ScheduledTask) {
	for {
		pool := s.activePool()
		if pool.Go(func(ctx context.Context) { s.execute(ctx, task) }) {
			return
		}
	}
}

// ShutdownGraceful stops accepting work and waits up to timeout for running
// tasks to finish. It returns true when the pool is idle. A done ctx ends
// the wait early.
func (s *TaskScheduler) ShutdownGraceful(ctx context.Context, timeout time.Duration) bool {
	pool := s.currentPool()
	if pool == nil {
		return true
	}
	pool.close()
	select {
	case <-pool.idle:
		return true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-pool.idle:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// ShutdownForced interrupts every running task and waits until all of
// them have returned.
func (s *TaskScheduler) ShutdownForced() bool {
	pool := s.currentPool()
	if pool == nil {
		return true
	}
	pool.close()
	pool.cancel()
	<-pool.idle
	return true
}

func (s *TaskScheduler) activePool() *workerPool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool == nil || s.pool.isClosed() {
		s.pool = newWorkerPool(s.baseCtx)
	}
	return s.pool
}

func (s *TaskScheduler) currentPool() *workerPool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool
}

func (s *TaskScheduler) execute(ctx context.Context, task types.ScheduledTask) {
	logger := log.Ctx(ctx).With().Str("task", task.Name).Str("task_id", task.ID).Logger()
	console := s.Consoles.Open(task.Name)
	fmt.Fprintf(console, "%s started\n", task.Name)
	logger.Debug().Str("command", task.Command).Msg("task started")

	code, err := s.Runner.Run(ctx, types.Command{
		Name:    task.Name,
		Line:    task.Command,
		Dir:     task.Dir,
		Console: console,
	})
	switch {
	case err != nil:
		err = types.NewLaunchError(types.ErrorKindSupervision, task.Name, err)
		fmt.Fprintf(console, "%s failed: %s\n", task.Name, errorMessage(err))
		logger.Error().Err(err).Str("error_kind", string(types.ErrorKindSupervision)).Msg("task failed")
	case code == types.ExitInterrupted:
		fmt.Fprintf(console, "%s interrupted\n", task.Name)
		logger.Debug().Msg("task interrupted")
	default:
		fmt.Fprintf(console, "%s ended with exit code %d\n", task.Name, code)
		logger.Debug().Int("exit_code", code).Msg("task ended")
	}
}

type workerPool struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
	idle   chan struct{}

	mu     sync.Mutex
	closed bool
}

func newWorkerPool(parent context.Context) *workerPool {
	ctx, cancel := context.WithCancel(parent)
	return &workerPool{ctx: ctx, cancel: cancel, idle: make(chan struct{})}
}

// Go runs fn on the pool. It reports false once the pool is closed.
func (p *workerPool) Go(fn func(ctx context.Context)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Go(func() { fn(p.ctx) })
	return true
}

func (p *workerPool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// close is idempotent. The first call starts the waiter that closes idle
// once every submitted task has returned; task panics are logged there.
func (p *workerPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	go func() {
		if recovered := p.wg.WaitAndRecover(); recovered != nil {
			log.Ctx(p.ctx).Error().Interface("panic", recovered.Value).Msg("task panicked")
		}
		p.cancel()
		close(p.idle)
	}()
}
