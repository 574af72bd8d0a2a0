package commands

import (
	"context"

	"github.com/dyluth/warren/internal/contract"
	"github.com/dyluth/warren/internal/hashchain"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/runview"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify REQUEST_ID",
	Short: "Verify a run's hash chain",
	Long: `Recompute the content digest of every approved artifact in a run and
compare it against the stored hash, then check that each artifact's parent
hashes match the stored hashes of its upstream artifacts.

A mismatch means the store was tampered with or corrupted. Mismatches are
reported, never repaired.

Examples:
  warren verify 4f7c...`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	requestID := args[0]

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	artifacts, err := runview.ListRunArtifacts(ctx, client, requestID, "")
	if err != nil {
		return err
	}

	if len(artifacts) == 0 {
		printer.Info("No artifacts found for run '%s'\n", requestID)
		return nil
	}

	// Every approved hash of a kind is a legitimate parent, not just the
	// current version's: a downstream artifact generated before an upstream
	// was superseded still chains to the older approved hash.
	approved := hashchain.ApprovedHashes(artifacts)

	mismatches := 0
	for _, a := range artifacts {
		schema, err := contract.SchemaFor(a.Kind)
		if err != nil {
			return err
		}

		if err := hashchain.Verify(a, schema); err != nil {
			printer.Warning("%s\n", err.Error())
			mismatches++
			continue
		}

		for _, lerr := range hashchain.VerifyLineage(a, approved) {
			printer.Warning("%s\n", lerr.Error())
			mismatches++
		}
	}

	if mismatches > 0 {
		return printer.Error(
			"hash chain verification failed",
			"One or more artifacts do not match their stored digests.",
			[]string{"Inspect the artifacts with: warren artifacts " + requestID},
		)
	}

	printer.Success("Hash chain verified: %d artifacts consistent\n", len(artifacts))

	return nil
}
