// Package run executes one trigger end to end: isolated session, tool
// snapshot, agent invocation, result postback, and lifecycle accounting.
package run

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GNHua/oneclaw-sub005/agent"
	"github.com/GNHua/oneclaw-sub005/config"
	"github.com/GNHua/oneclaw-sub005/convo"
	"github.com/GNHua/oneclaw-sub005/dispatch"
	"github.com/GNHua/oneclaw-sub005/errors"
	"github.com/GNHua/oneclaw-sub005/notify"
	"github.com/GNHua/oneclaw-sub005/task"
	"github.com/GNHua/oneclaw-sub005/tools"
)

// ScheduleCanceller removes a job's backend schedules when it auto-disables
// at its execution ceiling. The scheduling adapter implements this.
type ScheduleCanceller interface {
	CancelSchedules(jobID string)
}

// Coordinator runs jobs. It implements dispatch.Runner.
type Coordinator struct {
	jobs      *task.Store
	logs      *task.LogStore
	convos    *convo.Store
	registry  *tools.Registry
	executor  agent.Executor
	scheduler ScheduleCanceller
	notifier  notify.Notifier

	prompts agent.PromptSource
	skills  agent.SkillSource
	memory  agent.MemorySource

	agentCfg config.AgentConfig
	log      *zap.SugaredLogger
}

// Sources bundles the optional instruction-context providers.
type Sources struct {
	Prompts agent.PromptSource
	Skills  agent.SkillSource
	Memory  agent.MemorySource
}

// NewCoordinator wires the coordinator. notifier and the sources may be nil.
func NewCoordinator(
	jobs *task.Store,
	logs *task.LogStore,
	convos *convo.Store,
	registry *tools.Registry,
	executor agent.Executor,
	scheduler ScheduleCanceller,
	notifier notify.Notifier,
	sources Sources,
	agentCfg config.AgentConfig,
	log *zap.SugaredLogger,
) *Coordinator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Coordinator{
		jobs:      jobs,
		logs:      logs,
		convos:    convos,
		registry:  registry,
		executor:  executor,
		scheduler: scheduler,
		notifier:  notifier,
		prompts:   sources.Prompts,
		skills:    sources.Skills,
		memory:    sources.Memory,
		agentCfg:  agentCfg,
		log:       log,
	}
}

// Run executes one trigger for the given job. The returned error drives the
// worker pool's retry classification; every run, however it ends, leaves a
// completed log row, and the ephemeral session and tool snapshot are
// released exactly once even when the executor panics.
func (c *Coordinator) Run(ctx context.Context, job *task.Job, trigger *dispatch.Trigger) error {
	startedAt := time.Now()
	logID, err := c.logs.InsertStarted(job.ID, startedAt)
	if err != nil {
		return err
	}

	session, err := c.convos.CreateEphemeral("scheduled: " + job.Title)
	if err != nil {
		c.completeLog(logID, task.LogFailed, "", err.Error())
		return err
	}

	executor := c.registry.Snapshot()

	// Cleanup must run exactly once whether the run succeeds, fails, or
	// panics. The defer covers the panic path; sync.Once keeps a future
	// explicit call from double-releasing.
	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			executor.Release()
			if delErr := c.convos.Delete(session.ID); delErr != nil {
				c.log.Warnw("Failed to delete ephemeral session",
					"conversation_id", session.ID, "error", delErr)
			}
		})
	}
	defer cleanup()

	c.log.Infow("Run starting",
		"job_id", job.ID, "title", job.Title,
		"trigger_source", trigger.Source, "session_id", session.ID)

	result, runErr := c.invoke(ctx, job, session.ID, executor)
	if runErr != nil {
		c.completeLog(logID, statusForError(ctx, runErr), "", runErr.Error())
		c.log.Warnw("Run failed", "job_id", job.ID, "error", runErr)
		return runErr
	}

	if job.OriginConversationID != "" && result.Output != "" {
		if _, postErr := c.convos.AppendMessage(job.OriginConversationID, convo.RoleAssistant, result.Output); postErr != nil {
			// The origin conversation may have been deleted since the job
			// was created; losing the postback does not fail the run
			c.log.Warnw("Failed to post result to origin conversation",
				"job_id", job.ID, "conversation_id", job.OriginConversationID, "error", postErr)
		}
	}

	c.completeLog(logID, task.LogSuccess, result.Summary, "")
	c.finishLifecycle(job, result)

	c.log.Infow("Run complete",
		"job_id", job.ID, "iterations", result.Iterations,
		"duration", time.Since(startedAt))
	return nil
}

// invoke resolves the run configuration, assembles the instruction context,
// and calls the agent executor. Executor panics are converted to execution
// errors here so nothing propagates past the run.
func (c *Coordinator) invoke(ctx context.Context, job *task.Job, sessionID string, toolExec *tools.Executor) (result agent.Result, runErr error) {
	defer func() {
		if r := recover(); r != nil {
			result = agent.Result{}
			runErr = errors.Wrapf(errors.ErrExecution, "executor panic: %v", r)
		}
	}()

	cfg := agent.ResolveRunConfig(job.Profile, c.agentCfg)
	instruction := agent.BuildInstruction(ctx, job.Instruction, c.prompts, c.skills, c.memory)

	result, runErr = c.executor.Execute(ctx, agent.Request{
		Instruction:    instruction,
		ConversationID: sessionID,
		Tools:          toolExec,
		Scheduled:      true,
		Config:         cfg,
	})
	if runErr != nil && !errors.IsAny(runErr, errors.ErrExecution, errors.ErrNotFound, errors.ErrDisabled) {
		runErr = errors.Wrap(errors.ErrExecution, runErr.Error())
	}
	return result, runErr
}

// finishLifecycle records the completed run against the job: execution
// counters, one-shot and ceiling-based auto-disable, and the completion
// notification.
func (c *Coordinator) finishLifecycle(job *task.Job, result agent.Result) {
	if err := c.jobs.UpdateLastExecution(job.ID, time.Now()); err != nil {
		c.log.Errorw("Failed to record execution", "job_id", job.ID, "error", err)
	}
	job.ExecutionCount++

	// One-shot jobs are spent after their single run; disabling them keeps
	// a later restore from firing the overdue timer again.
	if job.Exhausted() || job.Schedule.Kind == task.ScheduleOneTime {
		if err := c.jobs.UpdateEnabled(job.ID, false); err != nil {
			c.log.Errorw("Failed to auto-disable job", "job_id", job.ID, "error", err)
		}
		if c.scheduler != nil {
			c.scheduler.CancelSchedules(job.ID)
		}
		c.log.Infow("Job auto-disabled",
			"job_id", job.ID,
			"execution_count", job.ExecutionCount,
			"one_shot", job.Schedule.Kind == task.ScheduleOneTime)
	}

	if job.NotifyOnCompletion && c.notifier != nil {
		c.notifier.NotifyCompletion(job, result)
	}
}

func (c *Coordinator) completeLog(logID int64, status task.LogStatus, summary, errMsg string) {
	if err := c.logs.Complete(logID, status, summary, errMsg); err != nil {
		c.log.Errorw("Failed to complete execution log", "log_id", logID, "error", err)
	}
}

func statusForError(ctx context.Context, err error) task.LogStatus {
	if ctx.Err() != nil || errors.IsAny(err, context.Canceled, context.DeadlineExceeded) {
		return task.LogCancelled
	}
	return task.LogFailed
}
