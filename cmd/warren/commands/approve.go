package commands

import (
	"context"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/producer"
	"github.com/dyluth/warren/pkg/pipeline"
	"github.com/spf13/cobra"
)

var approveKind string

var approveCmd = &cobra.Command{
	Use:   "approve REQUEST_ID",
	Short: "Approve a pending artifact",
	Long: `Approve the artifact currently awaiting your decision.

Approval computes the authoritative content digest, locks it, and marks the
artifact immutable. If the artifact is the last one required by its stage,
the run advances to the next stage.

An already-approved artifact cannot be approved again; its hash is locked
and is never recomputed.

Examples:
  # Approve the pending master plan
  warren approve 4f7c... --kind master_plan`,
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

func init() {
	approveCmd.Flags().StringVarP(&approveKind, "kind", "k", "", "Artifact kind to approve (required)")
	approveCmd.MarkFlagRequired("kind")
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	requestID := args[0]
	kind := pipeline.ArtifactKind(approveKind)

	if err := kind.Validate(); err != nil {
		return printer.Error(
			"invalid artifact kind",
			err.Error(),
			[]string{"Valid kinds: base_prompt, master_plan, screen_index, screen_definition, visual_contract"},
		)
	}

	cfg, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	p, err := producerForKind(cfg, client, kind)
	if err != nil {
		return err
	}

	artifact, err := p.Approve(ctx, requestID)
	if err != nil {
		if producer.IsAlreadyApproved(err) {
			return printer.Error(
				"artifact already approved",
				err.Error(),
				[]string{"Approved artifacts are immutable; regenerate to create a new version"},
			)
		}
		return err
	}

	printer.Success("%s v%d approved\n", artifact.Kind, artifact.Version)
	printer.Info("Content hash: %s\n", artifact.ContentHash)

	return nil
}
