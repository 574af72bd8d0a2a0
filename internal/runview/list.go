package runview

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/warren/pkg/pipeline"
	"github.com/google/uuid"
)

// kindOrder is the display order for artifact kinds, upstream first.
var kindOrder = []pipeline.ArtifactKind{
	pipeline.KindBasePrompt,
	pipeline.KindMasterPlan,
	pipeline.KindScreenIndex,
	pipeline.KindScreenDefinition,
	pipeline.KindVisualContract,
}

// ListRunArtifacts returns every artifact version of every kind for a run,
// grouped by kind in pipeline order, versions oldest first within a kind.
func ListRunArtifacts(ctx context.Context, client *pipeline.Client, requestID string, statusFilter pipeline.ArtifactStatus) ([]*pipeline.Artifact, error) {
	var all []*pipeline.Artifact

	for _, kind := range kindOrder {
		artifacts, err := client.ListArtifacts(ctx, requestID, kind, statusFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s artifacts: %w", kind, err)
		}
		all = append(all, artifacts...)
	}

	return all, nil
}

// GetArtifact retrieves a single artifact by ID and writes it as
// pretty-printed JSON to the writer.
// Uses ArtifactNotFoundError to distinguish "not found" from other failures.
func GetArtifact(ctx context.Context, client *pipeline.Client, artifactID string, w io.Writer) error {
	if _, err := uuid.Parse(artifactID); err != nil {
		return fmt.Errorf("invalid artifact ID format: must be a valid UUID")
	}

	artifact, err := client.GetArtifact(ctx, artifactID)
	if err != nil {
		if pipeline.IsNotFound(err) {
			return &ArtifactNotFoundError{ArtifactID: artifactID}
		}
		return fmt.Errorf("failed to fetch artifact: %w", err)
	}

	if err := FormatSingleJSON(w, artifact); err != nil {
		return fmt.Errorf("failed to format artifact: %w", err)
	}

	return nil
}

// ArtifactNotFoundError represents a specific "artifact not found" error.
type ArtifactNotFoundError struct {
	ArtifactID string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("artifact with ID '%s' not found", e.ArtifactID)
}

// IsNotFound returns true if the error is an ArtifactNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*ArtifactNotFoundError)
	return ok
}
