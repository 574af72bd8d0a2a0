// Package isolation enforces the context-isolation rule: a producer may only
// read upstream artifacts that are approved and hash-locked. Loader.Load is
// the single enforcement point; there is no other path by which producer code
// obtains upstream content.
package isolation

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/warren/pkg/pipeline"
)

// IsolationError indicates a required upstream artifact that is missing,
// unapproved, or unhashed. This is a permanent precondition failure for the
// invocation, not a transient error: the producer must not retry, substitute
// a default, or fabricate an upstream value.
type IsolationError struct {
	RequestID string
	Kind      pipeline.ArtifactKind
	Reason    string
}

func (e *IsolationError) Error() string {
	return fmt.Sprintf("context isolation violation for run %s: %s artifact %s",
		e.RequestID, e.Kind, e.Reason)
}

// IsIsolationError returns true if the error is an IsolationError.
func IsIsolationError(err error) bool {
	var target *IsolationError
	return errors.As(err, &target)
}

// IsolatedContext is the transient, per-invocation bundle of upstream
// artifacts a producer is entitled to read. It is never persisted and is
// rebuilt fresh on every invocation - the loader does not cache across calls,
// so concurrent rejections and regenerations are always observed.
type IsolatedContext struct {
	RequestID string

	artifacts map[pipeline.ArtifactKind]*pipeline.Artifact
}

// Content returns the typed contract of an upstream kind.
func (ic *IsolatedContext) Content(kind pipeline.ArtifactKind) (pipeline.Contract, bool) {
	a, ok := ic.artifacts[kind]
	if !ok {
		return nil, false
	}
	return a.Content, true
}

// Hash returns the locked content hash of an upstream kind.
func (ic *IsolatedContext) Hash(kind pipeline.ArtifactKind) (string, bool) {
	a, ok := ic.artifacts[kind]
	if !ok {
		return "", false
	}
	return a.ContentHash, true
}

// Kinds returns the upstream kinds present in the bundle.
func (ic *IsolatedContext) Kinds() []pipeline.ArtifactKind {
	kinds := make([]pipeline.ArtifactKind, 0, len(ic.artifacts))
	for kind := range ic.artifacts {
		kinds = append(kinds, kind)
	}
	return kinds
}

// ParentHashes returns the hash-chain map a new artifact must carry: each
// upstream kind mapped to the exact hash that was read. Values are copied
// verbatim; they are hashes of upstream content, never the content itself.
func (ic *IsolatedContext) ParentHashes() map[pipeline.ArtifactKind]string {
	parents := make(map[pipeline.ArtifactKind]string, len(ic.artifacts))
	for kind, a := range ic.artifacts {
		parents[kind] = a.ContentHash
	}
	return parents
}

// Loader resolves the upstream artifacts a producer is allowed to read.
type Loader struct {
	client *pipeline.Client
}

// NewLoader creates a context loader over a pipeline store client.
func NewLoader(client *pipeline.Client) *Loader {
	return &Loader{client: client}
}

// Load fetches the current artifact of each required kind and verifies it is
// in the only admissible read state: approved with a locked hash. Any kind
// that is missing, unapproved, or unhashed fails the whole load with an
// IsolationError naming the kind and the reason.
func (l *Loader) Load(ctx context.Context, requestID string, requiredKinds ...pipeline.ArtifactKind) (*IsolatedContext, error) {
	ic := &IsolatedContext{
		RequestID: requestID,
		artifacts: make(map[pipeline.ArtifactKind]*pipeline.Artifact, len(requiredKinds)),
	}

	for _, kind := range requiredKinds {
		a, err := l.client.CurrentArtifact(ctx, requestID, kind)
		if pipeline.IsNotFound(err) {
			return nil, &IsolationError{RequestID: requestID, Kind: kind, Reason: "does not exist"}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s artifact: %w", kind, err)
		}

		if a.Status != pipeline.StatusApproved {
			return nil, &IsolationError{
				RequestID: requestID,
				Kind:      kind,
				Reason:    fmt.Sprintf("has status %q, not approved", a.Status),
			}
		}

		if a.ContentHash == "" {
			return nil, &IsolationError{RequestID: requestID, Kind: kind, Reason: "has no locked content hash"}
		}

		ic.artifacts[kind] = a
	}

	return ic, nil
}
