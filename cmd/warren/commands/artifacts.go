package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/runview"
	"github.com/dyluth/warren/pkg/pipeline"
	"github.com/spf13/cobra"
)

var (
	artifactsOutputFormat string
	artifactsStatusFilter string
	artifactsGetID        string
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts REQUEST_ID",
	Short: "Inspect a run's artifacts",
	Long: `Inspect a run's artifacts in list or get mode.

List Mode (default):
  Displays every artifact version of every kind, grouped by kind in
  pipeline order, as a table or JSONL.

Get Mode (--id):
  Displays complete details of a single artifact as pretty-printed JSON.

Examples:
  # List all artifacts of a run
  warren artifacts 4f7c...

  # Only approved artifacts, as JSONL for jq
  warren artifacts 4f7c... --status approved --output json

  # Full detail of one artifact
  warren artifacts 4f7c... --id abc123-...`,
	Args: cobra.ExactArgs(1),
	RunE: runArtifacts,
}

func init() {
	artifactsCmd.Flags().StringVarP(&artifactsOutputFormat, "output", "o", "default", "Output format: default or json")
	artifactsCmd.Flags().StringVarP(&artifactsStatusFilter, "status", "s", "", "Filter by status: draft, awaiting_approval, approved, rejected")
	artifactsCmd.Flags().StringVar(&artifactsGetID, "id", "", "Show full detail of a single artifact ID")
	rootCmd.AddCommand(artifactsCmd)
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	requestID := args[0]

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	// Get mode
	if artifactsGetID != "" {
		if err := runview.GetArtifact(ctx, client, artifactsGetID, os.Stdout); err != nil {
			if runview.IsNotFound(err) {
				return printer.Error(
					"artifact not found",
					err.Error(),
					[]string{fmt.Sprintf("List artifacts with: warren artifacts %s", requestID)},
				)
			}
			return err
		}
		return nil
	}

	// List mode
	statusFilter := pipeline.ArtifactStatus(artifactsStatusFilter)
	if statusFilter != "" {
		if err := statusFilter.Validate(); err != nil {
			return printer.Error(
				"invalid status filter",
				err.Error(),
				[]string{"Valid statuses: draft, awaiting_approval, approved, rejected"},
			)
		}
	}

	artifacts, err := runview.ListRunArtifacts(ctx, client, requestID, statusFilter)
	if err != nil {
		return err
	}

	switch artifactsOutputFormat {
	case "default":
		runview.FormatArtifactTable(os.Stdout, artifacts, requestID)
	case "json":
		return runview.FormatArtifactsJSONL(os.Stdout, artifacts)
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", artifactsOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	return nil
}
