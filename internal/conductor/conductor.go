// Package conductor implements the single-writer state machine that owns a
// pipeline run's current stage, lock state, and human-approval gate. All
// producers must acquire the conductor's lock before mutating run state and
// must request stage transitions through it; no component mutates stage or
// lock fields directly.
package conductor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/dyluth/warren/pkg/pipeline"
	"github.com/google/uuid"
)

// StateSnapshot is a read-only view of a run's orchestration state.
type StateSnapshot struct {
	RequestID     string         `json:"request_id"`
	CurrentStage  pipeline.Stage `json:"current_stage"`
	Locked        bool           `json:"locked"`
	LockHolder    string         `json:"lock_holder,omitempty"`
	AwaitingHuman bool           `json:"awaiting_human"`
	PauseMessage  string         `json:"pause_message,omitempty"`
	LastAgent     string         `json:"last_agent,omitempty"`
}

// Conductor serializes access to per-run pipeline state. It is safe for
// concurrent use across runs; within one run the lock discipline guarantees
// a single writer.
type Conductor struct {
	client *pipeline.Client
}

// New creates a conductor over a pipeline store client.
func New(client *pipeline.Client) *Conductor {
	return &Conductor{client: client}
}

// StartRun creates a new pipeline run in the initial stage, unlocked and not
// awaiting a human. Returns the generated request ID.
func (c *Conductor) StartRun(ctx context.Context) (string, error) {
	run := &pipeline.PipelineRun{
		RequestID:    uuid.New().String(),
		CurrentStage: InitialStage,
		CreatedAtMs:  time.Now().UnixMilli(),
	}

	if err := c.client.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	c.audit(ctx, run.RequestID, "run_created", "conductor", string(InitialStage))

	return run.RequestID, nil
}

// Snapshot returns the current orchestration state of a run.
// Read-only; never blocks. Returns NotFoundError if the run does not exist.
func (c *Conductor) Snapshot(ctx context.Context, requestID string) (*StateSnapshot, error) {
	run, err := c.getRun(ctx, requestID)
	if err != nil {
		return nil, err
	}

	holder, err := c.client.RunLockHolder(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock state: %w", err)
	}

	return &StateSnapshot{
		RequestID:     run.RequestID,
		CurrentStage:  run.CurrentStage,
		Locked:        holder != "",
		LockHolder:    holder,
		AwaitingHuman: run.AwaitingHuman,
		PauseMessage:  run.PauseMessage,
		LastAgent:     run.LastAgent,
	}, nil
}

// Lock acquires exclusive mutation rights for a run. The claim is a single
// atomic test-and-set: if the lock is held, the call fails immediately with
// AlreadyLockedError - there is no queueing and no blocking wait. A producer
// that cannot acquire the lock must not proceed, because a second concurrent
// writer for the same run would corrupt the hash chain.
func (c *Conductor) Lock(ctx context.Context, requestID, reason string) error {
	if _, err := c.getRun(ctx, requestID); err != nil {
		return err
	}

	acquired, err := c.client.AcquireRunLock(ctx, requestID, reason)
	if err != nil {
		return fmt.Errorf("failed to claim run lock: %w", err)
	}

	if !acquired {
		holder, _ := c.client.RunLockHolder(ctx, requestID)
		return &AlreadyLockedError{RequestID: requestID, Holder: holder}
	}

	c.audit(ctx, requestID, "lock", reason, "")

	return nil
}

// Unlock releases the run lock unconditionally. Idempotent: unlocking an
// already-unlocked run is a no-op. The conductor never unlocks on its own;
// producers are responsible for releasing via guaranteed cleanup.
func (c *Conductor) Unlock(ctx context.Context, requestID string) error {
	if err := c.client.ReleaseRunLock(ctx, requestID); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}

	c.audit(ctx, requestID, "unlock", "", "")

	return nil
}

// PauseForHuman marks the run as awaiting a human decision and records a
// human-readable message. The caller must hold the run lock; calling without
// it is a protocol violation (NotLockedError). Pausing does not unlock -
// producers still release the lock themselves.
func (c *Conductor) PauseForHuman(ctx context.Context, requestID, message string) error {
	run, err := c.getRun(ctx, requestID)
	if err != nil {
		return err
	}

	holder, err := c.client.RunLockHolder(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to read lock state: %w", err)
	}
	if holder == "" {
		return &NotLockedError{RequestID: requestID, Operation: "PauseForHuman"}
	}

	run.AwaitingHuman = true
	run.PauseMessage = message
	if err := c.client.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to pause run: %w", err)
	}

	c.audit(ctx, requestID, "pause_for_human", holder, message)

	return nil
}

// ResumeAfterHuman clears the awaiting-human gate. Idempotent.
func (c *Conductor) ResumeAfterHuman(ctx context.Context, requestID string) error {
	run, err := c.getRun(ctx, requestID)
	if err != nil {
		return err
	}

	if !run.AwaitingHuman {
		return nil
	}

	run.AwaitingHuman = false
	run.PauseMessage = ""
	if err := c.client.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to resume run: %w", err)
	}

	c.audit(ctx, requestID, "resume_after_human", "", "")

	return nil
}

// Transition advances the run to newStage, validating the edge against the
// static stage graph. Fails with IllegalTransitionError if the edge does not
// exist; illegal transitions are fatal to the caller and never clamped to a
// nearby legal stage. The run is refetched immediately before the write to
// prevent double-transition races.
func (c *Conductor) Transition(ctx context.Context, requestID string, newStage pipeline.Stage, agentName string) error {
	if err := newStage.Validate(); err != nil {
		return err
	}

	// Refetch directly before writing so a stale caller cannot replay a
	// transition that already happened.
	run, err := c.getRun(ctx, requestID)
	if err != nil {
		return err
	}

	if !LegalTransition(run.CurrentStage, newStage) {
		return &IllegalTransitionError{From: run.CurrentStage, To: newStage}
	}

	previous := run.CurrentStage
	run.CurrentStage = newStage
	run.LastAgent = agentName
	if err := c.client.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to transition run: %w", err)
	}

	c.audit(ctx, requestID, "transition", agentName,
		fmt.Sprintf("%s -> %s", previous, newStage))

	c.logEvent("stage_transition", map[string]interface{}{
		"request_id": requestID,
		"from":       string(previous),
		"to":         string(newStage),
		"agent":      agentName,
	})

	return nil
}

// getRun fetches a run, mapping store not-found to the conductor's typed
// NotFoundError.
func (c *Conductor) getRun(ctx context.Context, requestID string) (*pipeline.PipelineRun, error) {
	run, err := c.client.GetRun(ctx, requestID)
	if pipeline.IsNotFound(err) {
		return nil, &NotFoundError{RequestID: requestID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}
	return run, nil
}

// audit appends an event to the run's audit stream. Audit failures here are
// log-and-continue: routine state-machine events must not block the primary
// operation. Approval and rejection events are the producers' responsibility
// and are load-bearing there.
func (c *Conductor) audit(ctx context.Context, requestID, eventType, agent, message string) {
	err := c.client.AppendAudit(ctx, &pipeline.AuditEvent{
		RequestID: requestID,
		Type:      eventType,
		Agent:     agent,
		Message:   message,
	})
	if err != nil {
		log.Printf("[Conductor] Failed to append audit event %s for run %s: %v",
			eventType, requestID, err)
	}
}

// logEvent logs a structured event in JSON format.
func (c *Conductor) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "conductor"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Conductor] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
