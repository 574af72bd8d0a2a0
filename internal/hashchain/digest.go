// Package hashchain computes the content digests that make approved
// artifacts immutable and downstream producers provably dependent on exact
// upstream content.
//
// The digest is a SHA-256 over a canonical serialization of the contract:
// fields the schema marks non-deterministic are excluded, and the remaining
// fields are serialized with sorted keys, so the same logical content always
// yields the same digest regardless of field insertion order, map iteration
// order, or incidental whitespace.
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dyluth/warren/internal/contract"
	"github.com/dyluth/warren/pkg/pipeline"
)

// IntegrityError indicates a stored hash that does not match a recomputation
// of the stored content. This is treated as tampering or corruption: it is
// reported, never auto-repaired.
type IntegrityError struct {
	ArtifactID string
	Stored     string
	Computed   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("artifact %s hash mismatch: stored %s, computed %s",
		e.ArtifactID, e.Stored, e.Computed)
}

// IsIntegrityError returns true if the error is an IntegrityError.
func IsIntegrityError(err error) bool {
	var target *IntegrityError
	return errors.As(err, &target)
}

// Digest computes the content digest of a contract under its schema.
//
// Two contracts with identical non-excluded field values produce identical
// digests; any change to an included field changes the digest with
// overwhelming probability.
func Digest(c pipeline.Contract, schema *contract.Schema) (string, error) {
	canonical, err := canonicalize(c, schema)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes an artifact's digest over its stored content and
// compares it to the stored hash. Returns an IntegrityError on mismatch.
// Artifacts without a locked hash (not yet approved) verify trivially.
func Verify(a *pipeline.Artifact, schema *contract.Schema) error {
	if a.ContentHash == "" {
		return nil
	}

	computed, err := Digest(a.Content, schema)
	if err != nil {
		return fmt.Errorf("failed to recompute digest: %w", err)
	}

	if computed != a.ContentHash {
		return &IntegrityError{ArtifactID: a.ID, Stored: a.ContentHash, Computed: computed}
	}

	return nil
}

// canonicalize produces the canonical byte serialization of a contract:
// a JSON object with the schema's non-deterministic fields removed. Go's
// encoding/json marshals map keys in sorted order, which provides the fixed
// key ordering the digest depends on.
func canonicalize(c pipeline.Contract, schema *contract.Schema) ([]byte, error) {
	data, err := pipeline.EncodeContract(c)
	if err != nil {
		return nil, err
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode contract for canonicalization: %w", err)
	}

	for _, name := range schema.NonDeterministic {
		delete(fields, name)
	}

	canonical, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal canonical form: %w", err)
	}

	return canonical, nil
}
