package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like
// the contract payload and the parent-hash map are JSON-encoded into single
// hash fields. This keeps simple fields individually queryable while complex
// structures stay flexible.

// RunToHash converts a PipelineRun struct to a Redis hash format.
func RunToHash(r *PipelineRun) map[string]interface{} {
	return map[string]interface{}{
		"request_id":     r.RequestID,
		"current_stage":  string(r.CurrentStage),
		"awaiting_human": r.AwaitingHuman,
		"pause_message":  r.PauseMessage,
		"last_agent":     r.LastAgent,
		"created_at_ms":  r.CreatedAtMs,
	}
}

// HashToRun converts a Redis hash to a PipelineRun struct.
// Corrupted fields are an error, never silently zeroed.
func HashToRun(hash map[string]string) (*PipelineRun, error) {
	awaitingHuman, err := strconv.ParseBool(hash["awaiting_human"])
	if err != nil {
		return nil, fmt.Errorf("invalid awaiting_human field: %w", err)
	}

	createdAtMs, err := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
	}

	run := &PipelineRun{
		RequestID:     hash["request_id"],
		CurrentStage:  Stage(hash["current_stage"]),
		AwaitingHuman: awaitingHuman,
		PauseMessage:  hash["pause_message"],
		LastAgent:     hash["last_agent"],
		CreatedAtMs:   createdAtMs,
	}

	return run, nil
}

// ArtifactToHash converts an Artifact struct to a Redis hash format.
// The contract payload and the parent-hash map are JSON-encoded.
func ArtifactToHash(a *Artifact) (map[string]interface{}, error) {
	contentJSON, err := EncodeContract(a.Content)
	if err != nil {
		return nil, err
	}

	parentHashesJSON, err := json.Marshal(a.ParentHashes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parent hashes: %w", err)
	}

	hash := map[string]interface{}{
		"id":            a.ID,
		"request_id":    a.RequestID,
		"kind":          string(a.Kind),
		"content":       string(contentJSON),
		"status":        string(a.Status),
		"version":       a.Version,
		"content_hash":  a.ContentHash,
		"parent_hashes": string(parentHashesJSON),
		"produced_by":   a.ProducedBy,
		"created_at_ms": a.CreatedAtMs,
	}

	return hash, nil
}

// HashToArtifact converts a Redis hash to an Artifact struct.
// JSON fields are decoded back to Go types; the contract payload is decoded
// into the concrete shape for the stored kind.
func HashToArtifact(hash map[string]string) (*Artifact, error) {
	version, err := strconv.Atoi(hash["version"])
	if err != nil {
		return nil, fmt.Errorf("invalid version field: %w", err)
	}

	kind := ArtifactKind(hash["kind"])
	content, err := DecodeContract(kind, []byte(hash["content"]))
	if err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}

	var parentHashes map[ArtifactKind]string
	if parentHashesJSON := hash["parent_hashes"]; parentHashesJSON != "" {
		if err := json.Unmarshal([]byte(parentHashesJSON), &parentHashes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parent_hashes: %w", err)
		}
	}

	// Ensure we have an empty map instead of nil for consistency
	if parentHashes == nil {
		parentHashes = map[ArtifactKind]string{}
	}

	createdAtMs, err := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
	}

	artifact := &Artifact{
		ID:           hash["id"],
		RequestID:    hash["request_id"],
		Kind:         kind,
		Content:      content,
		Status:       ArtifactStatus(hash["status"]),
		Version:      version,
		ContentHash:  hash["content_hash"],
		ParentHashes: parentHashes,
		ProducedBy:   hash["produced_by"],
		CreatedAtMs:  createdAtMs,
	}

	return artifact, nil
}

// UnmarshalJSON decodes an artifact from its event JSON, resolving the
// contract payload into the concrete shape for the artifact's kind.
func (a *Artifact) UnmarshalJSON(data []byte) error {
	type artifactAlias Artifact
	aux := struct {
		*artifactAlias
		Content json.RawMessage `json:"content"`
	}{artifactAlias: (*artifactAlias)(a)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	content, err := DecodeContract(a.Kind, aux.Content)
	if err != nil {
		return err
	}
	a.Content = content

	return nil
}
