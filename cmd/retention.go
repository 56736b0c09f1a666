package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"serverbackup/internal/backup"
)

var retentionDryRun bool

func init() {
	rootCmd.AddCommand(createRetentionCommand())
}

// createRetentionCommand creates the retention subcommand group
func createRetentionCommand() *cobra.Command {
	retentionCmd := &cobra.Command{
		Use:   "retention",
		Short: "Manage local backup retention",
	}

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Run a retention sweep against the local backup slots",
		Long: `Apply removes every partial slot and enforces the configured retention
policy on the complete ones: with max_local_copies the newest N complete
backups survive, with max_age_days backups older than the limit are
deleted. With --dry-run the sweep only reports what it would delete.`,
		RunE: applyRetention,
	}
	applyCmd.Flags().BoolVar(&retentionDryRun, "dry-run", false, "report deletions without performing them")

	retentionCmd.AddCommand(applyCmd)
	return retentionCmd
}

// applyRetention runs a standalone retention sweep
func applyRetention(cmd *cobra.Command, args []string) error {
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

	manager := backup.NewRetentionManager(cfg, logger)
	result, err := manager.Apply(ctx, retentionDryRun)
	if err != nil {
		return err
	}

	if !quiet {
		verb := "deleted"
		if result.DryRun {
			verb = "would delete"
		}
		fmt.Printf("Retention sweep %s %d slot(s), kept %d\n", verb, len(result.Deleted), len(result.Kept))
		for _, slot := range result.Deleted {
			fmt.Printf("  - %s (%s)\n", slot.ID, slot.Status)
		}
	}

	if len(result.Errors) > 0 {
		return backup.NewRetentionError(
			fmt.Sprintf("%d slot(s) could not be cleaned up", len(result.Errors)),
			result.Errors[0],
		)
	}

	return nil
}
