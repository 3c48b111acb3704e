package commands

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GNHua/oneclaw-sub005/dispatch"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the tasker database",
	Long: `Manage database operations including migrations and statistics.

Examples:
  tasker db migrate               # Apply pending schema migrations
  tasker db stats                 # Show job, queue, and run statistics`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long:  "Open the database and apply any schema migrations it is missing. Opening the database migrates it as a side effect; this command exists to do so explicitly.",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, cfg, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		var version string
		if err := database.QueryRow(`SELECT COALESCE(MAX(version), '000') FROM schema_migrations`).Scan(&version); err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		fmt.Printf("Database %s is at schema version %s\n", cfg.Database.Path, version)
		return nil
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job, queue, and run statistics",
	RunE:  runDbStats,
}

func runDbStats(cmd *cobra.Command, args []string) error {
	database, cfg, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	var totalJobs, enabledJobs int
	err = database.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(enabled), 0) FROM jobs
	`).Scan(&totalJobs, &enabledJobs)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to query job stats: %w", err)
	}

	queueStats, err := dispatch.NewStore(database).QueueStats()
	if err != nil {
		return fmt.Errorf("failed to query queue stats: %w", err)
	}

	var totalRuns, succeeded, failed int
	err = database.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(status = 'success'), 0),
			COALESCE(SUM(status = 'failed'), 0)
		FROM execution_log
	`).Scan(&totalRuns, &succeeded, &failed)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to query run stats: %w", err)
	}

	fmt.Printf("Database Statistics\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path:  %s\n", cfg.Database.Path)
	fmt.Printf("Jobs:           %d total, %d enabled\n", totalJobs, enabledJobs)
	fmt.Println()

	fmt.Printf("Trigger Queue:\n")
	fmt.Printf("  Pending:      %d\n", queueStats.Pending)
	fmt.Printf("  Running:      %d\n", queueStats.Running)
	fmt.Printf("  Done:         %d\n", queueStats.Done)
	fmt.Printf("  Dead:         %d\n", queueStats.Dead)
	fmt.Println()

	fmt.Printf("Execution Log:\n")
	fmt.Printf("  Total runs:   %d\n", totalRuns)
	fmt.Printf("  Succeeded:    %d\n", succeeded)
	fmt.Printf("  Failed:       %d\n", failed)

	return nil
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}
