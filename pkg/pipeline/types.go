package pipeline

import (
	"fmt"

	"github.com/google/uuid"
)

// Stage is a named point in the fixed pipeline graph. The conductor owns the
// legal-edge set; stages themselves are just enum values.
type Stage string

const (
	// StageIdea is the initial stage of every run.
	StageIdea Stage = "idea"

	// StageBasePromptReady indicates the base prompt artifact is approved.
	StageBasePromptReady Stage = "base_prompt_ready"

	// StagePlanning indicates master-plan generation is in progress or done.
	StagePlanning Stage = "planning"

	// StageScreensDefined indicates the screen index is approved.
	StageScreensDefined Stage = "screens_defined"

	// StageScreensGenerated indicates all per-screen definitions are approved.
	StageScreensGenerated Stage = "screens_generated"

	// StageVisualsLocked indicates the visual contract is approved.
	// Reachable from both screens_defined and screens_generated: a run whose
	// screen index needs no per-screen expansion skips screens_generated.
	StageVisualsLocked Stage = "visuals_locked"

	// StageComplete is the terminal stage.
	StageComplete Stage = "complete"
)

// Validate checks if the Stage is a valid enum value.
func (s Stage) Validate() error {
	switch s {
	case StageIdea, StageBasePromptReady, StagePlanning, StageScreensDefined,
		StageScreensGenerated, StageVisualsLocked, StageComplete:
		return nil
	default:
		return fmt.Errorf("unknown stage: %q", s)
	}
}

// ArtifactKind discriminates the concrete contract shape carried by an
// artifact. One producer owns each kind.
type ArtifactKind string

const (
	// KindBasePrompt is the refined prompt derived from the raw idea.
	KindBasePrompt ArtifactKind = "base_prompt"

	// KindMasterPlan is the top-level planning document.
	KindMasterPlan ArtifactKind = "master_plan"

	// KindScreenIndex is the ordered index of screens derived from the plan.
	KindScreenIndex ArtifactKind = "screen_index"

	// KindScreenDefinition is a single screen's detailed definition.
	KindScreenDefinition ArtifactKind = "screen_definition"

	// KindVisualContract is the locked visual specification for the run.
	KindVisualContract ArtifactKind = "visual_contract"
)

// Validate checks if the ArtifactKind is a valid enum value.
func (k ArtifactKind) Validate() error {
	switch k {
	case KindBasePrompt, KindMasterPlan, KindScreenIndex, KindScreenDefinition, KindVisualContract:
		return nil
	default:
		return fmt.Errorf("unknown artifact kind: %q", k)
	}
}

// ArtifactStatus is the lifecycle state of an artifact. The only admissible
// read state for downstream producers is approved (with a locked hash).
type ArtifactStatus string

const (
	// StatusDraft is a generated contract not yet submitted for approval.
	StatusDraft ArtifactStatus = "draft"

	// StatusAwaitingApproval is a validated draft waiting on a human decision.
	// The content hash is still unset in this state.
	StatusAwaitingApproval ArtifactStatus = "awaiting_approval"

	// StatusApproved is a hash-locked, immutable artifact.
	StatusApproved ArtifactStatus = "approved"

	// StatusRejected is a discarded draft, superseded by a later version.
	StatusRejected ArtifactStatus = "rejected"
)

// Validate checks if the ArtifactStatus is a valid enum value.
func (s ArtifactStatus) Validate() error {
	switch s {
	case StatusDraft, StatusAwaitingApproval, StatusApproved, StatusRejected:
		return nil
	default:
		return fmt.Errorf("unknown artifact status: %q", s)
	}
}

// PipelineRun is the per-request pipeline state. One exists per top-level
// request; it is created at StageIdea and never deleted mid-run (the terminal
// state is a stage value, not deletion).
//
// Locked is not stored on the run hash itself: the lock is a dedicated Redis
// key claimed with SET NX so that acquisition is an atomic test-and-set. The
// conductor's Snapshot combines both sources.
type PipelineRun struct {
	RequestID     string `json:"request_id"`     // UUID - primary key for all artifacts in this run
	CurrentStage  Stage  `json:"current_stage"`  // Position in the fixed stage graph
	AwaitingHuman bool   `json:"awaiting_human"` // True while a draft needs a human decision
	PauseMessage  string `json:"pause_message"`  // Human-readable reason for the pause (audit/UI)
	LastAgent     string `json:"last_agent"`     // Producer that performed the most recent transition (audit only)
	CreatedAtMs   int64  `json:"created_at_ms"`  // Unix timestamp in milliseconds when the run was created
}

// Validate checks if the PipelineRun has valid field values.
func (r *PipelineRun) Validate() error {
	if !isValidUUID(r.RequestID) {
		return fmt.Errorf("invalid request ID: not a valid UUID")
	}

	if err := r.CurrentStage.Validate(); err != nil {
		return fmt.Errorf("invalid current stage: %w", err)
	}

	return nil
}

// Artifact is a single versioned output of one pipeline stage.
//
// Invariants, enforced by the store client:
//   - ContentHash is empty while Status != approved, and immutable once set.
//   - ParentHashes values are the exact content hashes of the upstream
//     artifacts read at generation time - never content, never mutable.
//   - Once approved, Content, ContentHash, and ParentHashes never change;
//     any further change requires a new version, not a mutation.
type Artifact struct {
	ID           string                  `json:"id"`            // UUID - unique identifier for this artifact
	RequestID    string                  `json:"request_id"`    // UUID of the owning run
	Kind         ArtifactKind            `json:"kind"`          // Discriminator for the contract shape
	Content      Contract                `json:"content"`       // Typed contract payload
	Status       ArtifactStatus          `json:"status"`        // Lifecycle state
	Version      int                     `json:"version"`       // Incrementing per (run, kind), starts at 1
	ContentHash  string                  `json:"content_hash"`  // Digest, set exactly once at approval ("" before)
	ParentHashes map[ArtifactKind]string `json:"parent_hashes"` // Upstream kind -> locked hash (the hash chain)
	ProducedBy   string                  `json:"produced_by"`   // Producer name (audit)
	CreatedAtMs  int64                   `json:"created_at_ms"` // Unix timestamp in milliseconds
}

// Validate checks if the Artifact has valid field values.
func (a *Artifact) Validate() error {
	if !isValidUUID(a.ID) {
		return fmt.Errorf("invalid artifact ID: not a valid UUID")
	}

	if !isValidUUID(a.RequestID) {
		return fmt.Errorf("invalid request ID: not a valid UUID")
	}

	if err := a.Kind.Validate(); err != nil {
		return fmt.Errorf("invalid kind: %w", err)
	}

	if err := a.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	if a.Version < 1 {
		return fmt.Errorf("invalid version: must be >= 1, got %d", a.Version)
	}

	if a.Content == nil {
		return fmt.Errorf("artifact content cannot be nil")
	}

	if a.Content.Kind() != a.Kind {
		return fmt.Errorf("content kind %q does not match artifact kind %q", a.Content.Kind(), a.Kind)
	}

	// A hash may only exist on an approved artifact.
	if a.ContentHash != "" && a.Status != StatusApproved {
		return fmt.Errorf("content hash set on non-approved artifact (status %q)", a.Status)
	}

	if a.ProducedBy == "" {
		return fmt.Errorf("produced_by cannot be empty")
	}

	for kind := range a.ParentHashes {
		if err := kind.Validate(); err != nil {
			return fmt.Errorf("invalid parent hash key: %w", err)
		}
		if a.ParentHashes[kind] == "" {
			return fmt.Errorf("parent hash for kind %q cannot be empty", kind)
		}
	}

	return nil
}

// AuditEvent is one append-only log entry for a run. Events are written at
// every lock/unlock/transition/pause/resume/approve/reject.
type AuditEvent struct {
	RequestID string `json:"request_id"`
	Type      string `json:"type"`    // e.g. "lock", "transition", "approve"
	Agent     string `json:"agent"`   // Acting producer or "human"
	Message   string `json:"message"` // Human-readable detail
	Timestamp int64  `json:"timestamp"`
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
