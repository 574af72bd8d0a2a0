// Package producer implements the abstract protocol every pipeline producer
// follows: acquire the conductor lock, read hash-verified upstream context,
// generate and validate a draft with a bounded retry policy, persist it
// awaiting approval, and pause for a human. The generation step itself is an
// injected collaborator; this package only owns the orchestration around it.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dyluth/warren/internal/conductor"
	"github.com/dyluth/warren/internal/contract"
	"github.com/dyluth/warren/internal/hashchain"
	"github.com/dyluth/warren/internal/isolation"
	"github.com/dyluth/warren/pkg/pipeline"
	"github.com/google/uuid"
)

const (
	// defaultMaxAttempts bounds the generate/validate loop when the spec
	// does not set its own limit.
	defaultMaxAttempts = 3

	// defaultInitialBackoff is the first delay of the exponential schedule.
	defaultInitialBackoff = 500 * time.Millisecond
)

// GenerateFunc is the external generation collaborator. It receives the
// isolated upstream context and returns a draft contract. The core imposes
// no retry or timeout contract on it beyond eventually returning or failing;
// it is the only long-latency call in the pipeline and the run lock is held
// for its entire duration by design.
type GenerateFunc func(ctx context.Context, ic *isolation.IsolatedContext) (pipeline.Contract, error)

// JustificationFilter is a pluggable, best-effort check that a draft is
// justified by upstream content (e.g. vocabulary extraction over upstream
// text). It returns advisory warnings, never errors: it is a heuristic, not
// a correctness gate.
type JustificationFilter func(ic *isolation.IsolatedContext, draft pipeline.Contract) []string

// Spec is the static configuration of one producer.
type Spec struct {
	// Name identifies the producer in locks and audit events.
	Name string

	// Stage the run must be in for this producer to operate.
	Stage pipeline.Stage

	// Kind of artifact this producer creates.
	Kind pipeline.ArtifactKind

	// Requires lists the upstream kinds loaded into the isolated context.
	Requires []pipeline.ArtifactKind

	// Next is the stage the run advances to once this producer's artifact
	// is approved, if TerminalForStage is set.
	Next pipeline.Stage

	// TerminalForStage marks this producer's artifact as the last required
	// artifact of its stage: approval triggers the stage transition.
	TerminalForStage bool

	// MaxAttempts bounds the generate/validate loop (default 3).
	MaxAttempts int

	// InitialBackoff seeds the exponential retry schedule (default 500ms).
	InitialBackoff time.Duration

	// Generate produces a draft contract from the isolated context.
	Generate GenerateFunc

	// Justify optionally screens drafts against upstream vocabulary.
	Justify JustificationFilter
}

// Producer drives one pipeline stage from "no draft" to "awaiting approval",
// and relays the human approval or rejection decision.
type Producer struct {
	spec      Spec
	client    *pipeline.Client
	conductor *conductor.Conductor
	loader    *isolation.Loader
}

// New creates a producer from its spec.
func New(client *pipeline.Client, cond *conductor.Conductor, spec Spec) (*Producer, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("producer name cannot be empty")
	}
	if err := spec.Stage.Validate(); err != nil {
		return nil, fmt.Errorf("invalid producer stage: %w", err)
	}
	if err := spec.Kind.Validate(); err != nil {
		return nil, fmt.Errorf("invalid producer kind: %w", err)
	}
	if spec.TerminalForStage {
		if err := spec.Next.Validate(); err != nil {
			return nil, fmt.Errorf("invalid next stage: %w", err)
		}
	}
	for _, kind := range spec.Requires {
		if err := kind.Validate(); err != nil {
			return nil, fmt.Errorf("invalid required kind: %w", err)
		}
	}

	if spec.MaxAttempts <= 0 {
		spec.MaxAttempts = defaultMaxAttempts
	}
	if spec.InitialBackoff <= 0 {
		spec.InitialBackoff = defaultInitialBackoff
	}

	return &Producer{
		spec:      spec,
		client:    client,
		conductor: cond,
		loader:    isolation.NewLoader(client),
	}, nil
}

// Name returns the producer's name.
func (p *Producer) Name() string { return p.spec.Name }

// Kind returns the artifact kind this producer creates.
func (p *Producer) Kind() pipeline.ArtifactKind { return p.spec.Kind }

// Run executes the producer protocol for one run:
//
//	snapshot -> stage guard -> lock -> load context -> generate+validate
//	(bounded retries) -> persist awaiting_approval -> pause for human
//
// The run lock is held for the whole sequence, including the generation
// call, and released via deferred cleanup on every path - the conductor
// never auto-unlocks, so a missing release here would wedge the run.
// The persisted artifact has no content hash; hashing happens at approval.
func (p *Producer) Run(ctx context.Context, requestID string) (*pipeline.Artifact, error) {
	// Approval-only producers (e.g. CLI-side relays) have no generator.
	if p.spec.Generate == nil {
		return nil, fmt.Errorf("producer %s has no generate function", p.spec.Name)
	}

	snap, err := p.conductor.Snapshot(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if snap.CurrentStage != p.spec.Stage {
		return nil, &StageMismatchError{
			RequestID: requestID,
			Expected:  p.spec.Stage,
			Actual:    snap.CurrentStage,
		}
	}

	if err := p.conductor.Lock(ctx, requestID, p.spec.Name); err != nil {
		return nil, err
	}
	defer func() {
		if err := p.conductor.Unlock(ctx, requestID); err != nil {
			log.Printf("[Producer %s] Failed to unlock run %s: %v", p.spec.Name, requestID, err)
		}
	}()

	ic, err := p.loader.Load(ctx, requestID, p.spec.Requires...)
	if err != nil {
		return nil, err
	}

	schema, err := contract.SchemaFor(p.spec.Kind)
	if err != nil {
		return nil, err
	}

	draft, err := p.generateValidated(ctx, requestID, ic, schema)
	if err != nil {
		return nil, err
	}

	// Debug-only digest: computed during generation for logging and
	// discarded. The authoritative digest is computed at approval.
	if debugDigest, err := hashchain.Digest(draft, schema); err == nil {
		p.logEvent("draft_generated", map[string]interface{}{
			"request_id":   requestID,
			"kind":         string(p.spec.Kind),
			"debug_digest": debugDigest,
		})
	}

	if p.spec.Justify != nil {
		for _, warning := range p.spec.Justify(ic, draft) {
			log.Printf("[Producer %s] Justification warning for run %s: %s",
				p.spec.Name, requestID, warning)
		}
	}

	version, err := p.client.NextVersion(ctx, requestID, p.spec.Kind)
	if err != nil {
		return nil, err
	}

	artifact := &pipeline.Artifact{
		ID:           uuid.New().String(),
		RequestID:    requestID,
		Kind:         p.spec.Kind,
		Content:      draft,
		Status:       pipeline.StatusAwaitingApproval,
		Version:      version,
		ParentHashes: ic.ParentHashes(),
		ProducedBy:   p.spec.Name,
		CreatedAtMs:  time.Now().UnixMilli(),
	}

	if err := p.client.CreateArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to persist draft artifact: %w", err)
	}

	message := fmt.Sprintf("%s v%d awaiting approval", p.spec.Kind, version)
	if err := p.conductor.PauseForHuman(ctx, requestID, message); err != nil {
		return nil, err
	}

	return artifact, nil
}

// generateValidated runs the generate/validate loop under the spec's bounded
// exponential-backoff policy. On exhaustion it records a fatal human-visible
// audit event and returns GenerationFailedError; the deferred unlock in Run
// guarantees the run is not left wedged.
func (p *Producer) generateValidated(ctx context.Context, requestID string, ic *isolation.IsolatedContext, schema *contract.Schema) (pipeline.Contract, error) {
	var draft pipeline.Contract
	attempts := 0

	operation := func() error {
		attempts++

		generated, err := p.spec.Generate(ctx, ic)
		if err != nil {
			return fmt.Errorf("generation attempt %d failed: %w", attempts, err)
		}

		if err := contract.Validate(generated, schema); err != nil {
			return fmt.Errorf("validation attempt %d failed: %w", attempts, err)
		}

		draft = generated
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(p.retrySchedule(), uint64(p.spec.MaxAttempts-1)),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		genErr := &GenerationFailedError{
			RequestID: requestID,
			Kind:      p.spec.Kind,
			Attempts:  attempts,
			Last:      err,
		}

		// Fatal, human-visible failure event. Best effort: the error below
		// carries the same information if the audit write fails too.
		if auditErr := p.client.AppendAudit(ctx, &pipeline.AuditEvent{
			RequestID: requestID,
			Type:      "generation_failed",
			Agent:     p.spec.Name,
			Message:   genErr.Error(),
		}); auditErr != nil {
			log.Printf("[Producer %s] Failed to record generation failure: %v", p.spec.Name, auditErr)
		}

		return nil, genErr
	}

	return draft, nil
}

func (p *Producer) retrySchedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.spec.InitialBackoff
	return b
}

// logEvent logs a structured event in JSON format.
func (p *Producer) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "producer"
	data["producer"] = p.spec.Name
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Producer %s] Failed to marshal log event: %v", p.spec.Name, err)
		return
	}

	log.Println(string(jsonData))
}
