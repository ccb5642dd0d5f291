package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"subscription-billing/internal/infra/metrics"
	"subscription-billing/internal/infra/worker"
)

// Task describes one independently scheduled, independently failing job.
type Task struct {
	Name         string
	Interval     time.Duration
	InitialDelay time.Duration
	Handler      func(ctx context.Context) error
}

// Runner executes tasks on their own tickers and hands each tick to a small
// fixed-size worker pool. A failure (or panic) inside one task's tick cannot
// cancel or delay the other tasks' schedules: the ticker goroutines only
// submit work, and the pool recovers panics per execution.
type Runner struct {
	tasks  []Task
	pool   *worker.Pool
	log    *zerolog.Logger
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(tasks []Task, pool *worker.Pool, logger *zerolog.Logger) *Runner {
	l := logger.With().Str("component", "ReconciliationRunner").Logger()
	return &Runner{tasks: tasks, pool: pool, log: &l}
}

// Start begins every task's schedule. Calling Start twice has no effect.
func (r *Runner) Start(parentCtx context.Context) {
	if r.stop != nil {
		return
	}
	// Schedules stop via r.stop; the handler context stays live until the
	// shutdown grace period has passed, so in-flight ticks can finish.
	ctx, cancel := context.WithCancel(parentCtx)
	r.cancel = cancel
	r.stop = make(chan struct{})

	r.pool.Start(ctx)
	for _, t := range r.tasks {
		if t.Interval <= 0 || t.Handler == nil {
			r.log.Warn().Str("task", t.Name).Msg("skipping misconfigured task")
			continue
		}
		r.wg.Add(1)
		go r.loop(ctx, t)
	}
}

func (r *Runner) loop(ctx context.Context, t Task) {
	defer r.wg.Done()

	// Initial delay keeps every task from firing at process boot.
	select {
	case <-ctx.Done():
		return
	case <-r.stop:
		return
	case <-time.After(t.InitialDelay):
	}
	r.log.Info().Str("task", t.Name).Dur("interval", t.Interval).Msg("task scheduled")

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	r.submit(t)
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Str("task", t.Name).Msg("task schedule stopped")
			return
		case <-r.stop:
			r.log.Info().Str("task", t.Name).Msg("task schedule stopped")
			return
		case <-ticker.C:
			r.submit(t)
		}
	}
}

// submit hands one tick to the pool, fire-and-forget.
func (r *Runner) submit(t Task) {
	err := r.pool.Submit(func(ctx context.Context) error {
		defer func() {
			if rec := recover(); rec != nil {
				metrics.IncTick(t.Name, "panic")
				r.log.Error().Str("task", t.Name).Interface("panic", rec).Msg("tick panicked")
			}
		}()
		if err := t.Handler(ctx); err != nil {
			metrics.IncTick(t.Name, "error")
			r.log.Error().Str("task", t.Name).Err(err).Msg("tick failed")
			return nil // already accounted; keep the pool log quiet
		}
		metrics.IncTick(t.Name, "ok")
		return nil
	})
	if err != nil {
		metrics.IncTick(t.Name, "dropped")
		r.log.Warn().Str("task", t.Name).Err(err).Msg("tick dropped")
	}
}

// Stop halts all schedules, then waits for in-flight ticks with their context
// still live, bounded by grace. The context is cancelled only after the drain,
// so a tick caught mid-batch can finish instead of erroring out on every
// remaining call. It is idempotent.
func (r *Runner) Stop(grace time.Duration) {
	if r.stop == nil {
		return
	}
	close(r.stop)
	r.wg.Wait()
	if !r.pool.StopWait(grace) {
		r.log.Warn().Dur("grace", grace).Msg("in-flight ticks did not finish before deadline")
	}
	r.cancel()
	r.stop = nil
	r.cancel = nil
	r.log.Info().Msg("runner stopped")
}
