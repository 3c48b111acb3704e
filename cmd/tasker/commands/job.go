package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/GNHua/oneclaw-sub005/dispatch"
	"github.com/GNHua/oneclaw-sub005/errors"
	"github.com/GNHua/oneclaw-sub005/task"
)

// JobCmd groups the job management subcommands.
var JobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage scheduled jobs",
	Long: `Manage scheduled jobs.

Examples:
  tasker job add "Briefing" "Summarize my inbox" --every 60
  tasker job add "Reminder" "Ping me about the review" --at 2026-09-02T09:00:00Z
  tasker job add "Weekly digest" "Compile the week" --cron "0 9 * * 1"
  tasker job ls
  tasker job show <id>
  tasker job pause <id>
  tasker job run <id>
  tasker job runs <id>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var (
	addAtFlag            string
	addEveryFlag         int
	addCronFlag          string
	addDescriptionFlag   string
	addMaxExecutionsFlag int
	addNotifyFlag        bool
	addNetworkFlag       bool
	addOriginFlag        string

	runsLimitFlag int
)

var jobAddCmd = &cobra.Command{
	Use:   "add <title> <instruction>",
	Short: "Add a new scheduled job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		schedule, err := scheduleFromFlags()
		if err != nil {
			return err
		}

		job := task.NewJob(args[0], args[1], schedule)
		job.Description = addDescriptionFlag
		job.NotifyOnCompletion = addNotifyFlag
		job.Constraints.RequiresNetwork = addNetworkFlag
		job.OriginConversationID = addOriginFlag
		if addMaxExecutionsFlag > 0 {
			job.MaxExecutions = &addMaxExecutionsFlag
		}

		if err := job.Validate(time.Now()); err != nil {
			return err
		}
		if job.Schedule.Kind == task.ScheduleCron {
			if _, err := cron.ParseStandard(job.Schedule.CronExpression); err != nil {
				return errors.NewValidation("invalid cron expression %q: %v", job.Schedule.CronExpression, err)
			}
		}

		database, _, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		if err := task.NewStore(database).CreateJob(job); err != nil {
			return err
		}

		pterm.Success.Printf("Job created: %s\n", job.ID)
		pterm.Info.Println("The daemon installs the schedule at startup; restart it if it is already running")
		return nil
	},
}

// scheduleFromFlags maps the mutually exclusive schedule flags onto a
// schedule definition.
func scheduleFromFlags() (task.Schedule, error) {
	set := 0
	if addAtFlag != "" {
		set++
	}
	if addEveryFlag > 0 {
		set++
	}
	if addCronFlag != "" {
		set++
	}
	if set != 1 {
		return task.Schedule{}, errors.NewValidation("exactly one of --at, --every, --cron is required")
	}

	switch {
	case addAtFlag != "":
		at, err := time.Parse(time.RFC3339, addAtFlag)
		if err != nil {
			return task.Schedule{}, errors.NewValidation("invalid --at time %q, want RFC3339: %v", addAtFlag, err)
		}
		return task.OneTime(at), nil
	case addCronFlag != "":
		return task.Cron(addCronFlag), nil
	default:
		return task.Every(addEveryFlag), nil
	}
}

var jobLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		jobs, err := task.NewStore(database).ListAll()
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			pterm.Info.Println("No jobs")
			return nil
		}

		rows := pterm.TableData{{"ID", "Title", "Schedule", "State", "Runs", "Last Run"}}
		for _, job := range jobs {
			rows = append(rows, []string{
				shortID(job.ID),
				job.Title,
				describeSchedule(job.Schedule),
				jobState(job),
				fmt.Sprintf("%d%s", job.ExecutionCount, maxSuffix(job)),
				formatLastRun(job.LastExecutedAt),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

var jobShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a job's full definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		job, err := task.NewStore(database).GetJob(args[0])
		if err != nil {
			return err
		}

		pterm.DefaultSection.Println(job.Title)
		pterm.Printf("ID:           %s\n", job.ID)
		if job.Description != "" {
			pterm.Printf("Description:  %s\n", job.Description)
		}
		pterm.Printf("Instruction:  %s\n", job.Instruction)
		pterm.Printf("Schedule:     %s\n", describeSchedule(job.Schedule))
		pterm.Printf("State:        %s\n", jobState(job))
		pterm.Printf("Created:      %s\n", job.CreatedAt.Format(time.RFC3339))
		pterm.Printf("Executions:   %d%s\n", job.ExecutionCount, maxSuffix(job))
		pterm.Printf("Last run:     %s\n", formatLastRun(job.LastExecutedAt))
		if job.Constraints.RequiresNetwork {
			pterm.Printf("Constraints:  requires network\n")
		}
		if job.Profile != nil {
			pterm.Printf("Profile:      model=%s\n", job.Profile.Model)
		}
		if job.NotifyOnCompletion {
			pterm.Printf("Notify:       on completion\n")
		}
		if job.OriginConversationID != "" {
			pterm.Printf("Origin:       %s\n", job.OriginConversationID)
		}
		return nil
	},
}

var jobRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a job and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		if err := task.NewStore(database).DeleteJob(args[0]); err != nil {
			return err
		}
		pterm.Success.Printf("Job deleted: %s\n", args[0])
		return nil
	},
}

var jobPauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Disable a job without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(args[0], false) },
}

var jobResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Re-enable a paused job",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(args[0], true) },
}

func setEnabled(id string, enabled bool) error {
	database, _, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	if err := task.NewStore(database).UpdateEnabled(id, enabled); err != nil {
		return err
	}
	if enabled {
		pterm.Success.Printf("Job resumed: %s\n", id)
	} else {
		pterm.Success.Printf("Job paused: %s\n", id)
	}
	return nil
}

var jobRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Trigger a job now",
	Long: `Enqueue a manual trigger for the job. The trigger is durable: the
daemon's worker pool picks it up on its next poll, even if the daemon
starts later. Manual triggers run paused jobs too.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, cfg, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		jobs := task.NewStore(database)
		queue := dispatch.NewStore(database)
		d := dispatch.NewDispatcher(jobs, queue,
			cfg.Scheduler.TriggersPerSecond, cfg.Scheduler.MaxAttempts, nil)

		if err := d.RunNow(args[0]); err != nil {
			return err
		}
		pterm.Success.Printf("Trigger enqueued for job %s\n", args[0])
		return nil
	},
}

var jobRunsCmd = &cobra.Command{
	Use:   "runs <id>",
	Short: "Show a job's execution history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		entries, err := task.NewLogStore(database).ForJob(args[0], runsLimitFlag)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			pterm.Info.Println("No runs recorded")
			return nil
		}

		rows := pterm.TableData{{"Started", "Status", "Duration", "Result"}}
		for _, entry := range entries {
			duration := "-"
			if entry.CompletedAt != nil {
				duration = entry.CompletedAt.Sub(entry.StartedAt).Round(time.Second).String()
			}
			detail := entry.ResultSummary
			if entry.ErrorMessage != "" {
				detail = entry.ErrorMessage
			}
			rows = append(rows, []string{
				entry.StartedAt.Format("2006-01-02 15:04:05"),
				string(entry.Status),
				duration,
				detail,
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

func describeSchedule(s task.Schedule) string {
	switch s.Kind {
	case task.ScheduleOneTime:
		if s.ExecuteAt != nil {
			return "once at " + s.ExecuteAt.Format(time.RFC3339)
		}
		return "once"
	case task.ScheduleInterval:
		return fmt.Sprintf("every %dm", s.IntervalMinutes)
	case task.ScheduleCron:
		return "cron " + s.CronExpression
	case task.ScheduleConditional:
		return "conditional (fallback recurring)"
	default:
		return string(s.Kind)
	}
}

func jobState(job *task.Job) string {
	if !job.Enabled {
		return "paused"
	}
	return "enabled"
}

func maxSuffix(job *task.Job) string {
	if job.MaxExecutions == nil {
		return ""
	}
	return fmt.Sprintf("/%d", *job.MaxExecutions)
}

func formatLastRun(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	jobAddCmd.Flags().StringVar(&addAtFlag, "at", "", "One-shot execution time (RFC3339)")
	jobAddCmd.Flags().IntVar(&addEveryFlag, "every", 0, "Recurring interval in minutes (min 15)")
	jobAddCmd.Flags().StringVar(&addCronFlag, "cron", "", "Cron expression (5-field)")
	jobAddCmd.Flags().StringVar(&addDescriptionFlag, "description", "", "Optional description")
	jobAddCmd.Flags().IntVar(&addMaxExecutionsFlag, "max-executions", 0, "Auto-disable after this many runs (0 = unlimited)")
	jobAddCmd.Flags().BoolVar(&addNotifyFlag, "notify", false, "Notify on completion")
	jobAddCmd.Flags().BoolVar(&addNetworkFlag, "network", false, "Require network connectivity")
	jobAddCmd.Flags().StringVar(&addOriginFlag, "origin", "", "Conversation ID to post results back to")

	jobRunsCmd.Flags().IntVar(&runsLimitFlag, "limit", 20, "Number of runs to show")

	JobCmd.AddCommand(jobAddCmd)
	JobCmd.AddCommand(jobLsCmd)
	JobCmd.AddCommand(jobShowCmd)
	JobCmd.AddCommand(jobRmCmd)
	JobCmd.AddCommand(jobPauseCmd)
	JobCmd.AddCommand(jobResumeCmd)
	JobCmd.AddCommand(jobRunCmd)
	JobCmd.AddCommand(jobRunsCmd)
}
