package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"serverbackup/internal/backup"
)

var runDryRunRetention bool

func init() {
	rootCmd.AddCommand(createRunCommand())
}

// createRunCommand creates the run subcommand
func createRunCommand() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a full backup cycle followed by a retention sweep",
		Long: `Run executes one complete backup cycle: database dumps, directory
copies, archiving, and the optional encryption and upload stages. The
retention sweep always runs afterwards, even when the backup itself
failed, so that the partial slot left behind is cleaned up immediately.`,
		RunE: runBackup,
	}
	runCmd.Flags().BoolVar(&runDryRunRetention, "dry-run-retention", false, "report retention deletions without performing them")
	return runCmd
}

// runBackup executes the backup lifecycle and the retention sweep
func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := buildLogger()
	if err != nil {
		return backup.NewConfigError("failed to initialize logger", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lifecycle := backup.NewLifecycleManager(cfg, logger)
	result, runErr := lifecycle.Run(ctx)

	// The sweep runs regardless of the run outcome: a failed run leaves a
	// markerless staging directory that must not linger.
	retention := backup.NewRetentionManager(cfg, logger)
	sweep, sweepErr := retention.Apply(ctx, runDryRunRetention)

	printRunSummary(cfg.Name, result, runErr, sweep)

	if runErr != nil {
		return runErr
	}
	if sweepErr != nil {
		return sweepErr
	}
	if sweep != nil && len(sweep.Errors) > 0 {
		return backup.NewRetentionError(
			fmt.Sprintf("backup succeeded but %d slot(s) could not be cleaned up", len(sweep.Errors)),
			sweep.Errors[0],
		)
	}

	return nil
}

// printRunSummary writes the human-readable run summary to stdout
func printRunSummary(name string, result *backup.RunResult, runErr error, sweep *backup.RetentionResult) {
	if quiet {
		return
	}

	success, failure, warning := summaryPrinters()

	fmt.Println()
	if runErr != nil {
		failure.Printf("Backup %q failed\n", name)
		fmt.Printf("  Error: %v\n", runErr)
	} else {
		success.Printf("Backup %q completed\n", name)
	}

	if result != nil {
		fmt.Printf("  State: %s\n", result.State)
		if len(result.DumpedDatabases) > 0 {
			fmt.Printf("  Databases dumped: %d\n", len(result.DumpedDatabases))
		}
		if len(result.CopiedDirectories) > 0 {
			fmt.Printf("  Directories copied: %d\n", len(result.CopiedDirectories))
		}
		if result.ArtifactPath != "" {
			fmt.Printf("  Artifact: %s\n", result.ArtifactPath)
		}
		if result.Uploaded {
			fmt.Println("  Uploaded: yes")
		}
		fmt.Printf("  Duration: %s\n", result.Duration)
	}

	if sweep != nil {
		fmt.Printf("  Retention: %d deleted, %d kept\n", len(sweep.Deleted), len(sweep.Kept))
		if len(sweep.Errors) > 0 {
			warning.Printf("  Retention errors: %d\n", len(sweep.Errors))
		}
	}
}
