package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/GNHua/oneclaw-sub005/db"
	"github.com/GNHua/oneclaw-sub005/errors"
	"github.com/GNHua/oneclaw-sub005/task"
)

// Runner executes one claimed trigger's job end to end. The execution
// coordinator implements this.
type Runner interface {
	Run(ctx context.Context, job *task.Job, trigger *Trigger) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, job *task.Job, trigger *Trigger) error

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, job *task.Job, trigger *Trigger) error {
	return f(ctx, job, trigger)
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	Workers      int
	PollInterval time.Duration
	RetryBackoff time.Duration
}

// DefaultPoolConfig returns sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:      1,
		PollInterval: 5 * time.Second,
		RetryBackoff: 30 * time.Second,
	}
}

// memoryPressureThreshold is the used-memory percentage above which the
// pool warns that the worker count may be too high for the host.
const memoryPressureThreshold = 90.0

// WorkerPool drains the trigger queue. Workers poll on a ticker, claim one
// trigger at a time, and hand it to the runner. Failed executions are
// re-queued with exponential backoff until the trigger's attempt budget is
// spent.
type WorkerPool struct {
	jobs   *task.Store
	queue  *Store
	runner Runner
	cfg    PoolConfig
	log    *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerPool creates a stopped pool.
func NewWorkerPool(ctx context.Context, jobs *task.Store, queue *Store, runner Runner, cfg PoolConfig, log *zap.SugaredLogger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	workerCtx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		jobs:   jobs,
		queue:  queue,
		runner: runner,
		cfg:    cfg,
		log:    log,
		ctx:    workerCtx,
		cancel: cancel,
	}
}

// Start recovers orphaned triggers and launches the workers.
func (p *WorkerPool) Start() {
	recovered, err := p.queue.RecoverOrphans()
	if err != nil {
		p.log.Warnw("Failed to recover orphaned triggers", "error", err)
	} else if recovered > 0 {
		p.log.Infow("Recovered orphaned triggers from previous run", "count", recovered)
	}

	p.checkMemoryPressure()

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Infow("Worker pool started", "workers", p.cfg.Workers)
}

// Stop cancels the workers and waits for in-flight runs to finish.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.log.Infow("Worker pool stopped")
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.processNext(); err != nil {
				select {
				case <-p.ctx.Done():
					return
				default:
				}
				if db.IsDatabaseClosed(err) {
					return
				}
				p.log.Errorw("Worker failed to process trigger", "worker_id", id, "error", err)
			}
		}
	}
}

// processNext claims and executes at most one trigger.
func (p *WorkerPool) processNext() error {
	trigger, err := p.queue.ClaimNext(time.Now())
	if err != nil {
		return err
	}
	if trigger == nil {
		return nil
	}

	job, err := p.jobs.GetJob(trigger.JobID)
	if err != nil {
		if errors.IsNotFound(err) {
			// Job deleted between enqueue and claim. Expected race.
			p.log.Debugw("Trigger job vanished, completing without run", "trigger_id", trigger.ID)
			return p.queue.Complete(trigger.ID)
		}
		return err
	}

	// Automatic triggers re-check the enabled gate at execution time; a
	// manual trigger on a paused job still runs.
	if !job.Enabled && trigger.Source != SourceManual {
		p.log.Debugw("Trigger job disabled, completing without run", "trigger_id", trigger.ID)
		return p.queue.Complete(trigger.ID)
	}

	runErr := p.runner.Run(p.ctx, job, trigger)
	if runErr == nil || errors.IsNotFound(runErr) || errors.IsDisabled(runErr) {
		return p.queue.Complete(trigger.ID)
	}

	return p.handleFailure(trigger, runErr)
}

// handleFailure retries with exponential backoff until the attempt budget
// is spent, then parks the trigger as dead.
func (p *WorkerPool) handleFailure(trigger *Trigger, runErr error) error {
	trigger.Attempts++
	if trigger.Exhausted() {
		p.log.Errorw("Trigger exhausted retries",
			"trigger_id", trigger.ID, "job_id", trigger.JobID,
			"attempts", trigger.Attempts, "error", runErr)
		return p.queue.MarkDead(trigger.ID, runErr.Error())
	}

	backoff := p.cfg.RetryBackoff << (trigger.Attempts - 1)
	nextAttempt := time.Now().Add(backoff)
	p.log.Warnw("Trigger failed, retrying with backoff",
		"trigger_id", trigger.ID, "job_id", trigger.JobID,
		"attempt", trigger.Attempts, "max_attempts", trigger.MaxAttempts,
		"backoff", backoff, "error", runErr)
	return p.queue.Retry(trigger, runErr.Error(), nextAttempt)
}

// checkMemoryPressure warns when host memory is already tight at startup.
func (p *WorkerPool) checkMemoryPressure() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		p.log.Debugw("Could not read host memory stats", "error", err)
		return
	}
	if vm.UsedPercent > memoryPressureThreshold {
		p.log.Warnw("High memory pressure at worker pool start",
			"used_percent", vm.UsedPercent, "workers", p.cfg.Workers)
	}
}
