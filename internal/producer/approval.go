package producer

import (
	"context"
	"fmt"
	"log"

	"github.com/dyluth/warren/internal/contract"
	"github.com/dyluth/warren/internal/hashchain"
	"github.com/dyluth/warren/pkg/pipeline"
)

// Approve relays an explicit human approval of this producer's pending
// artifact. It computes the authoritative content digest, locks it, flips
// the artifact to approved, resumes the run, and - if this producer's
// artifact is the last required artifact of its stage - advances the stage.
//
// Approving an already-approved artifact fails with AlreadyApprovedError;
// the locked hash is never recomputed.
func (p *Producer) Approve(ctx context.Context, requestID string) (*pipeline.Artifact, error) {
	if err := p.conductor.Lock(ctx, requestID, p.spec.Name+":approve"); err != nil {
		return nil, err
	}
	defer func() {
		if err := p.conductor.Unlock(ctx, requestID); err != nil {
			log.Printf("[Producer %s] Failed to unlock run %s: %v", p.spec.Name, requestID, err)
		}
	}()

	artifact, err := p.pendingArtifact(ctx, requestID)
	if err != nil {
		return nil, err
	}

	schema, err := contract.SchemaFor(p.spec.Kind)
	if err != nil {
		return nil, err
	}

	// The authoritative digest: computed exactly once, here, and locked.
	digest, err := hashchain.Digest(artifact.Content, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to compute content digest: %w", err)
	}

	artifact.Status = pipeline.StatusApproved
	artifact.ContentHash = digest
	if err := p.client.UpdateArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to approve artifact: %w", err)
	}

	// The approval event is the side effect of record: unlike routine
	// state-machine events, a failed write here fails the operation.
	if err := p.client.AppendAudit(ctx, &pipeline.AuditEvent{
		RequestID: requestID,
		Type:      "approve",
		Agent:     "human",
		Message:   fmt.Sprintf("%s v%d approved, hash %s", artifact.Kind, artifact.Version, digest),
	}); err != nil {
		return nil, fmt.Errorf("approval not recorded in audit log: %w", err)
	}

	if err := p.conductor.ResumeAfterHuman(ctx, requestID); err != nil {
		return nil, err
	}

	if p.spec.TerminalForStage {
		if err := p.conductor.Transition(ctx, requestID, p.spec.Next, p.spec.Name); err != nil {
			return nil, err
		}
	}

	return artifact, nil
}

// Reject relays an explicit human rejection of this producer's pending
// artifact. The draft is marked rejected (never hashed) and superseded by
// the next generation's version; the run resumes with no stage transition.
//
// Rejecting an approved artifact always fails, for every artifact kind:
// immutability is absolute once approved.
func (p *Producer) Reject(ctx context.Context, requestID, reason string) error {
	if err := p.conductor.Lock(ctx, requestID, p.spec.Name+":reject"); err != nil {
		return err
	}
	defer func() {
		if err := p.conductor.Unlock(ctx, requestID); err != nil {
			log.Printf("[Producer %s] Failed to unlock run %s: %v", p.spec.Name, requestID, err)
		}
	}()

	artifact, err := p.client.CurrentArtifact(ctx, requestID, p.spec.Kind)
	if pipeline.IsNotFound(err) {
		return fmt.Errorf("no %s artifact exists for run %s", p.spec.Kind, requestID)
	}
	if err != nil {
		return err
	}

	if artifact.Status == pipeline.StatusApproved {
		return &RejectApprovedError{ArtifactID: artifact.ID, Kind: artifact.Kind}
	}
	if artifact.Status != pipeline.StatusAwaitingApproval {
		return fmt.Errorf("%s artifact %s has status %q, only awaiting_approval can be rejected",
			artifact.Kind, artifact.ID, artifact.Status)
	}

	artifact.Status = pipeline.StatusRejected
	if err := p.client.UpdateArtifact(ctx, artifact); err != nil {
		return fmt.Errorf("failed to reject artifact: %w", err)
	}

	// Load-bearing, like the approval event.
	if err := p.client.AppendAudit(ctx, &pipeline.AuditEvent{
		RequestID: requestID,
		Type:      "reject",
		Agent:     "human",
		Message:   fmt.Sprintf("%s v%d rejected: %s", artifact.Kind, artifact.Version, reason),
	}); err != nil {
		return fmt.Errorf("rejection not recorded in audit log: %w", err)
	}

	return p.conductor.ResumeAfterHuman(ctx, requestID)
}

// pendingArtifact fetches the producer's current artifact and checks it is
// approvable.
func (p *Producer) pendingArtifact(ctx context.Context, requestID string) (*pipeline.Artifact, error) {
	artifact, err := p.client.CurrentArtifact(ctx, requestID, p.spec.Kind)
	if pipeline.IsNotFound(err) {
		return nil, fmt.Errorf("no %s artifact exists for run %s", p.spec.Kind, requestID)
	}
	if err != nil {
		return nil, err
	}

	if artifact.Status == pipeline.StatusApproved {
		return nil, &AlreadyApprovedError{ArtifactID: artifact.ID, Kind: artifact.Kind}
	}
	if artifact.Status != pipeline.StatusAwaitingApproval {
		return nil, fmt.Errorf("%s artifact %s has status %q, not awaiting_approval",
			artifact.Kind, artifact.ID, artifact.Status)
	}

	return artifact, nil
}
