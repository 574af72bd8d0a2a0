package commands

import (
	"context"

	"github.com/dyluth/warren/internal/conductor"
	"github.com/dyluth/warren/internal/printer"
	"github.com/spf13/cobra"
)

var beginCmd = &cobra.Command{
	Use:   "begin",
	Short: "Start a new pipeline run",
	Long: `Start a new pipeline run at the initial stage.

The run is created unlocked and not awaiting a human. Producers advance it
stage by stage; every artifact they create waits for your approval before
the next stage can read it.

Examples:
  # Start a run and note the request ID
  warren begin

  # Then inspect it
  warren status <REQUEST_ID>`,
	RunE: runBegin,
}

func init() {
	rootCmd.AddCommand(beginCmd)
}

func runBegin(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	requestID, err := conductor.New(client).StartRun(ctx)
	if err != nil {
		return printer.Error(
			"failed to start run",
			err.Error(),
			[]string{"Check that Redis is reachable at the configured address"},
		)
	}

	printer.Success("Run started\n")
	printer.Info("Request ID: %s\n", requestID)

	return nil
}
