package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GNHua/oneclaw-sub005/agent"
	"github.com/GNHua/oneclaw-sub005/convo"
	"github.com/GNHua/oneclaw-sub005/dispatch"
	"github.com/GNHua/oneclaw-sub005/logger"
	"github.com/GNHua/oneclaw-sub005/notify"
	"github.com/GNHua/oneclaw-sub005/run"
	"github.com/GNHua/oneclaw-sub005/sched"
	"github.com/GNHua/oneclaw-sub005/task"
	"github.com/GNHua/oneclaw-sub005/tools"
)

// ServeCmd runs the scheduler daemon.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler daemon",
	Long: `Run the scheduler daemon in foreground mode.

The daemon will:
- Restore schedules for all enabled jobs from the database
- Fire overdue one-shot jobs that were missed while the process was down
- Recover triggers orphaned by a previous crash
- Drain the trigger queue with a worker pool
- Run until interrupted (Ctrl+C) with graceful shutdown`,
	RunE: func(cmd *cobra.Command, args []string) error {
		workers, _ := cmd.Flags().GetInt("workers")

		database, cfg, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		if workers <= 0 {
			workers = cfg.Scheduler.Workers
		}

		jobs := task.NewStore(database)
		logs := task.NewLogStore(database)
		convos := convo.NewStore(database)
		queue := dispatch.NewStore(database)
		registry := tools.NewRegistry()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dispatcher := dispatch.NewDispatcher(jobs, queue,
			cfg.Scheduler.TriggersPerSecond, cfg.Scheduler.MaxAttempts, logger.Logger)

		connectivity := sched.AlwaysOnline
		if cfg.Scheduler.ConnectivityProbeURL != "" {
			connectivity = sched.NewProbeChecker(cfg.Scheduler.ConnectivityProbeURL, logger.Logger)
		}

		alarms := sched.NewAlarmBackend(logger.Logger)
		periodic := sched.NewPeriodicBackend(connectivity, logger.Logger)
		adapter := sched.NewAdapter(jobs, alarms, periodic, dispatcher, cfg.Scheduler, logger.Logger)

		var notifier notify.Notifier
		if cfg.Notify.Enabled {
			notifier = notify.NewLogNotifier(logger.Logger)
		}

		coordinator := run.NewCoordinator(
			jobs, logs, convos, registry,
			newLoopbackExecutor(),
			adapter,
			notifier,
			run.Sources{Prompts: agent.StaticPrompt(scheduledRunPrompt)},
			cfg.Agent,
			logger.Logger,
		)

		poolCfg := dispatch.PoolConfig{
			Workers:      workers,
			PollInterval: time.Duration(cfg.Scheduler.PollIntervalSeconds) * time.Second,
			RetryBackoff: time.Duration(cfg.Scheduler.RetryBackoffSeconds) * time.Second,
		}
		pool := dispatch.NewWorkerPool(ctx, jobs, queue, coordinator, poolCfg, logger.Logger)

		pool.Start()
		periodic.Start()
		if err := adapter.Restore(); err != nil {
			logger.Errorw("Schedule restore failed", "error", err)
		}

		fmt.Println("Scheduler daemon started")
		fmt.Printf("  Database: %s\n", cfg.Database.Path)
		fmt.Printf("  Workers: %d\n", workers)
		fmt.Printf("  Poll interval: %v\n", poolCfg.PollInterval)
		fmt.Println("\nPress Ctrl+C for graceful shutdown")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		fmt.Println("\nShutting down...")

		// Stop in reverse order of startup: no new firings, then drain workers
		adapter.Stop()
		pool.Stop()
		cancel()

		fmt.Println("Scheduler daemon stopped")
		return nil
	},
}

const scheduledRunPrompt = `You are an autonomous agent executing a scheduled task. ` +
	`Complete the instruction without asking clarifying questions and produce ` +
	`a concise final result.`

// newLoopbackExecutor returns the built-in executor used when no reasoning
// engine is attached: it records the instruction in the run session and
// reports it back. Host applications replace this with a real engine via
// run.NewCoordinator.
func newLoopbackExecutor() agent.Executor {
	return agent.ExecutorFunc(func(ctx context.Context, req agent.Request) (agent.Result, error) {
		logger.Infow("Executing scheduled instruction",
			"conversation_id", req.ConversationID,
			"model", req.Config.Model,
			"scheduled", req.Scheduled)
		return agent.Result{
			Summary:    "instruction dispatched (no reasoning engine attached)",
			Output:     req.Instruction,
			Iterations: 1,
		}, nil
	})
}

func init() {
	ServeCmd.Flags().Int("workers", 0, "Number of concurrent workers (default from configuration)")
}
