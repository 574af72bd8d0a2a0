package producer

import (
	"errors"
	"fmt"

	"github.com/dyluth/warren/pkg/pipeline"
)

// StageMismatchError indicates a producer invoked against a run that is not
// in the producer's stage. Programmer/caller error, never retried.
type StageMismatchError struct {
	RequestID string
	Expected  pipeline.Stage
	Actual    pipeline.Stage
}

func (e *StageMismatchError) Error() string {
	return fmt.Sprintf("run %s is at stage %q, producer expects %q",
		e.RequestID, e.Actual, e.Expected)
}

// AlreadyApprovedError indicates an approval call against an artifact that
// is already approved. Approval is not idempotent re-hashing: the stored
// hash is locked and a second approval is refused.
type AlreadyApprovedError struct {
	ArtifactID string
	Kind       pipeline.ArtifactKind
}

func (e *AlreadyApprovedError) Error() string {
	return fmt.Sprintf("%s artifact %s is already approved", e.Kind, e.ArtifactID)
}

// RejectApprovedError indicates an attempt to reject an approved artifact.
// This is always illegal, for every artifact kind: immutability is absolute
// once approved, so rejection is only reachable from awaiting_approval.
type RejectApprovedError struct {
	ArtifactID string
	Kind       pipeline.ArtifactKind
}

func (e *RejectApprovedError) Error() string {
	return fmt.Sprintf("cannot reject %s artifact %s: artifact is approved and immutable",
		e.Kind, e.ArtifactID)
}

// GenerationFailedError indicates the generate/validate loop exhausted its
// retry bound. The run is left unlocked and a human-visible failure event is
// recorded before this error propagates.
type GenerationFailedError struct {
	RequestID string
	Kind      pipeline.ArtifactKind
	Attempts  int
	Last      error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("failed to generate %s artifact for run %s after %d attempts: %v",
		e.Kind, e.RequestID, e.Attempts, e.Last)
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Last
}

// IsStageMismatch returns true if the error is a StageMismatchError.
func IsStageMismatch(err error) bool {
	var target *StageMismatchError
	return errors.As(err, &target)
}

// IsAlreadyApproved returns true if the error is an AlreadyApprovedError.
func IsAlreadyApproved(err error) bool {
	var target *AlreadyApprovedError
	return errors.As(err, &target)
}

// IsRejectApproved returns true if the error is a RejectApprovedError.
func IsRejectApproved(err error) bool {
	var target *RejectApprovedError
	return errors.As(err, &target)
}

// IsGenerationFailed returns true if the error is a GenerationFailedError.
func IsGenerationFailed(err error) bool {
	var target *GenerationFailedError
	return errors.As(err, &target)
}
