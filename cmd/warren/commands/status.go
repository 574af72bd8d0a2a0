package commands

import (
	"context"
	"os"

	"github.com/dyluth/warren/internal/conductor"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/runview"
	"github.com/spf13/cobra"
)

var statusOutputFormat string

var statusCmd = &cobra.Command{
	Use:   "status REQUEST_ID",
	Short: "Show a run's orchestration state",
	Long: `Show the current stage, lock state, and human-approval gate of a run.

Examples:
  # Human-readable status
  warren status 4f7c...

  # JSON for scripting
  warren status 4f7c... --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutputFormat, "output", "o", "default", "Output format: default or json")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	requestID := args[0]

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	snap, err := conductor.New(client).Snapshot(ctx, requestID)
	if err != nil {
		if conductor.IsNotFound(err) {
			return printer.Error(
				"run not found",
				err.Error(),
				[]string{"List a run's artifacts with: warren artifacts <REQUEST_ID>"},
			)
		}
		return err
	}

	if statusOutputFormat == "json" {
		return runview.FormatSingleJSON(os.Stdout, snap)
	}

	printer.Info("Run:            %s\n", snap.RequestID)
	printer.Info("Stage:          %s\n", snap.CurrentStage)
	if snap.Locked {
		printer.Warning("Locked by:      %s\n", snap.LockHolder)
	} else {
		printer.Info("Locked:         no\n")
	}
	if snap.AwaitingHuman {
		printer.Warning("Awaiting human: %s\n", snap.PauseMessage)
	} else {
		printer.Info("Awaiting human: no\n")
	}
	if snap.LastAgent != "" {
		printer.Info("Last agent:     %s\n", snap.LastAgent)
	}

	next := conductor.Successors(snap.CurrentStage)
	if len(next) > 0 {
		printer.Info("Next stages:    ")
		for i, s := range next {
			if i > 0 {
				printer.Info(", ")
			}
			printer.Info("%s", s)
		}
		printer.Info("\n")
	}

	return nil
}
