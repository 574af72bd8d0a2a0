package commands

import (
	"context"
	"os"

	"github.com/dyluth/warren/internal/runview"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events REQUEST_ID",
	Short: "Show a run's audit trail",
	Long: `Show the append-only audit trail of a run: every lock, unlock,
transition, pause, resume, approval, and rejection in order.

Examples:
  warren events 4f7c...`,
	Args: cobra.ExactArgs(1),
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	requestID := args[0]

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	events, err := client.ReadAudit(ctx, requestID)
	if err != nil {
		return err
	}

	runview.FormatAuditTable(os.Stdout, events, requestID)

	return nil
}
