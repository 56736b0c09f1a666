package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"serverbackup/internal/backup"
	"serverbackup/internal/config"
	"serverbackup/internal/logging"
)

// Exit codes reported to the scheduler
const (
	exitSuccess   = 0
	exitBackup    = 1
	exitConfig    = 2
	exitRetention = 3
)

// CLI flag variables
var (
	cfgFile   string
	verbose   bool
	quiet     bool
	logFile   string
	logFormat string
	noColor   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "serverbackup",
	Short: "Scheduled MySQL and directory backup tool with retention and object storage upload",
	Long: `serverbackup runs a full backup cycle for a host: it dumps the configured
MySQL databases, copies the configured directories into a staging area,
packages everything into a single compressed archive, and optionally
encrypts the archive and uploads it to object storage (S3, GCS, or Azure).

After each run a retention sweep removes partial backups left by failed
runs and applies the configured count-based or age-based policy to the
remaining local copies.

Examples:
  # Run a full backup cycle with the default config file
  serverbackup run

  # Run with an explicit config file and verbose logging
  serverbackup run --config=/etc/myhost-backup.conf --verbose

  # Inspect the local backup slots
  serverbackup slots list --format=json

  # Preview what the retention policy would delete
  serverbackup retention apply --dry-run`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and maps the failure class to the exit
// code contract: 0 success, 1 backup failure, 2 configuration failure,
// 3 retention-only errors.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(exitCodeFor(err))
}

// exitCodeFor classifies an error into the exit code contract
func exitCodeFor(err error) int {
	var validationErrs config.ValidationErrors
	if errors.As(err, &validationErrs) {
		return exitConfig
	}

	if errType, ok := backup.ErrorType(err); ok {
		switch errType {
		case backup.BackupErrorTypeConfig:
			return exitConfig
		case backup.BackupErrorTypeRetention:
			return exitRetention
		}
	}

	return exitBackup
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is %s)", config.DefaultConfigFile))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to file in addition to stdout")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")

	rootCmd.AddCommand(createVersionCommand())
}

// loadConfig loads and validates the backup configuration
func loadConfig() (*config.Config, error) {
	if verbose && quiet {
		return nil, backup.NewConfigError("--verbose and --quiet flags are mutually exclusive", nil)
	}

	path := cfgFile
	if path == "" {
		path = config.DefaultConfigFile
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, backup.NewConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// buildLogger creates the logger from the persistent CLI flags
func buildLogger() (*logging.Logger, error) {
	level := logging.LogLevelNormal
	if verbose {
		level = logging.LogLevelVerbose
	}
	if quiet {
		level = logging.LogLevelQuiet
	}

	return logging.NewLogger(logging.Config{
		Level:   level,
		Format:  logFormat,
		LogFile: logFile,
	})
}

// colorsEnabled reports whether summary output should be colorized
func colorsEnabled() bool {
	if noColor {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// summaryPrinters returns the colored printers used by the human-readable
// summaries, falling back to plain text when colors are disabled
func summaryPrinters() (success, failure, warning *color.Color) {
	success = color.New(color.FgGreen, color.Bold)
	failure = color.New(color.FgRed, color.Bold)
	warning = color.New(color.FgYellow)

	if !colorsEnabled() {
		for _, c := range []*color.Color{success, failure, warning} {
			c.DisableColor()
		}
	}

	return success, failure, warning
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("serverbackup version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
			fmt.Printf("Go version: %s\n", goVersion)
		},
	}
}
