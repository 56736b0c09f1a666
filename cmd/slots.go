package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"serverbackup/internal/backup"
)

var slotsFormat string

func init() {
	rootCmd.AddCommand(createSlotsCommand())
}

// createSlotsCommand creates the slots subcommand group
func createSlotsCommand() *cobra.Command {
	slotsCmd := &cobra.Command{
		Use:   "slots",
		Short: "Inspect local backup slots",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the backup slots under the backup root",
		Long: `List enumerates every slot belonging to the configured backup and shows
its status: COMPLETE slots carry a final artifact or the completion
marker, PARTIAL slots were left behind by failed runs and will be
removed by the next retention sweep.`,
		RunE: listSlots,
	}
	listCmd.Flags().StringVar(&slotsFormat, "format", "table", "output format (table, json, yaml)")

	slotsCmd.AddCommand(listCmd)
	return slotsCmd
}

// slotRow is the serializable view of one slot
type slotRow struct {
	ID        string `json:"id" yaml:"id"`
	Status    string `json:"status" yaml:"status"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
	Artifact  string `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Staging   string `json:"staging,omitempty" yaml:"staging,omitempty"`
}

// listSlots lists the slots of the configured backup
func listSlots(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slots, err := backup.ListSlots(cfg.BackupRoot, cfg.Name)
	if err != nil {
		return err
	}

	rows := make([]slotRow, 0, len(slots))
	for _, slot := range slots {
		artifact := slot.ArtifactPath
		if artifact == "" {
			artifact = slot.EncryptedArtifact
		}
		rows = append(rows, slotRow{
			ID:        slot.ID,
			Status:    string(slot.Status),
			CreatedAt: slot.CreatedAt.Format(time.RFC3339),
			SizeBytes: slot.Size,
			Artifact:  artifact,
			Staging:   slot.StagingPath,
		})
	}

	switch slotsFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rows)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(rows)
	case "table":
		printSlotsTable(rows)
		return nil
	default:
		return backup.NewConfigError(
			fmt.Sprintf("invalid output format %q, must be 'table', 'json', or 'yaml'", slotsFormat),
			nil,
		)
	}
}

// printSlotsTable renders the slot list as an aligned table
func printSlotsTable(rows []slotRow) {
	if len(rows) == 0 {
		fmt.Println("No backup slots found")
		return
	}

	success, failure, _ := summaryPrinters()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tSIZE")
	for _, row := range rows {
		status := row.Status
		switch row.Status {
		case string(backup.SlotStatusComplete):
			status = success.Sprint(row.Status)
		case string(backup.SlotStatusPartial):
			status = failure.Sprint(row.Status)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", row.ID, status, row.CreatedAt, row.SizeBytes)
	}
	w.Flush()
}
