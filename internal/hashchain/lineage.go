package hashchain

import (
	"errors"
	"fmt"

	"github.com/dyluth/warren/pkg/pipeline"
)

// LineageError indicates a stored parent hash that matches no approved hash
// of the parent kind: the recorded lineage points at content that was never
// approved in this run. Reported, never repaired.
type LineageError struct {
	ArtifactID string
	ParentKind pipeline.ArtifactKind
	ParentHash string
}

func (e *LineageError) Error() string {
	return fmt.Sprintf("artifact %s: parent %s hash %s matches no approved %s artifact",
		e.ArtifactID, e.ParentKind, e.ParentHash, e.ParentKind)
}

// IsLineageError returns true if the error is a LineageError.
func IsLineageError(err error) bool {
	var target *LineageError
	return errors.As(err, &target)
}

// ApprovedHashes collects every locked content hash in a set of artifacts,
// keyed by kind. Every approved version counts, not just the current one: an
// older approved artifact remains a legitimate parent for the artifacts that
// were generated from it before it was superseded.
func ApprovedHashes(artifacts []*pipeline.Artifact) map[pipeline.ArtifactKind]map[string]bool {
	approved := make(map[pipeline.ArtifactKind]map[string]bool)
	for _, a := range artifacts {
		if a.ContentHash == "" {
			continue
		}
		if approved[a.Kind] == nil {
			approved[a.Kind] = make(map[string]bool)
		}
		approved[a.Kind][a.ContentHash] = true
	}
	return approved
}

// VerifyLineage checks each of an artifact's parent hashes for membership in
// the approved hashes of the parent kind. Kinds with no approved hashes at
// all are skipped - their artifacts may have been removed by operator
// cleanup. Returns one LineageError per dangling parent.
func VerifyLineage(a *pipeline.Artifact, approved map[pipeline.ArtifactKind]map[string]bool) []error {
	var errs []error
	for kind, hash := range a.ParentHashes {
		hashes := approved[kind]
		if len(hashes) == 0 {
			continue
		}
		if !hashes[hash] {
			errs = append(errs, &LineageError{ArtifactID: a.ID, ParentKind: kind, ParentHash: hash})
		}
	}
	return errs
}
