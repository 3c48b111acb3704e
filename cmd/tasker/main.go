package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GNHua/oneclaw-sub005/cmd/tasker/commands"
	"github.com/GNHua/oneclaw-sub005/logger"
)

var rootCmd = &cobra.Command{
	Use:   "tasker",
	Short: "Tasker - autonomous agent task scheduler",
	Long: `Tasker - schedule natural-language tasks for autonomous agent execution.

Jobs are persisted in SQLite and installed on one of two scheduling
backends: an exact timer for one-shot jobs and a cron runner for
recurring work. Fired schedules enqueue durable triggers that a worker
pool executes against the agent.

Examples:
  tasker serve                                    # Run the scheduler daemon
  tasker job add "Briefing" "Summarize my inbox" --every 60
  tasker job ls                                   # List jobs
  tasker job run <id>                             # Trigger a job now
  tasker db stats                                 # Queue and job statistics`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json-logs")
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.InitializeWithVerbosity(jsonOutput, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs instead of console output")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.JobCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
