package commands

import (
	"context"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/producer"
	"github.com/dyluth/warren/pkg/pipeline"
	"github.com/spf13/cobra"
)

var (
	rejectKind   string
	rejectReason string
)

var rejectCmd = &cobra.Command{
	Use:   "reject REQUEST_ID",
	Short: "Reject a pending artifact",
	Long: `Reject the artifact currently awaiting your decision.

The draft is kept with status rejected and is never hashed; the next
producer run for the same kind supersedes it with a fresh version. The
run's stage does not change.

Rejecting an approved artifact is always refused, for every kind:
immutability is absolute once an artifact is approved.

Examples:
  # Reject the pending screen index with a reason
  warren reject 4f7c... --kind screen_index --reason "missing settings screen"`,
	Args: cobra.ExactArgs(1),
	RunE: runReject,
}

func init() {
	rejectCmd.Flags().StringVarP(&rejectKind, "kind", "k", "", "Artifact kind to reject (required)")
	rejectCmd.Flags().StringVarP(&rejectReason, "reason", "r", "", "Reason for rejection (recorded in the audit trail)")
	rejectCmd.MarkFlagRequired("kind")
	rootCmd.AddCommand(rejectCmd)
}

func runReject(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	requestID := args[0]
	kind := pipeline.ArtifactKind(rejectKind)

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

	if err := p.Reject(ctx, requestID, rejectReason); err != nil {
		if producer.IsRejectApproved(err) {
			return printer.Error(
				"cannot reject an approved artifact",
				err.Error(),
				[]string{"Approved artifacts are immutable; regenerate to supersede one"},
			)
		}
		return err
	}

	printer.Success("%s rejected\n", kind)

	return nil
}
