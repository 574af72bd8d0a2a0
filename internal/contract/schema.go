// Package contract implements the generic schema checks applied to every
// producer draft before it is persisted or hashed. The concrete contract
// shapes live in pkg/pipeline; this package only enforces the invariants the
// type system cannot express: required/non-empty fields, non-empty lists,
// canonical ordering, and cross-field exclusivity.
package contract

import (
	"fmt"

	"github.com/dyluth/warren/pkg/pipeline"
)

// Schema declares the generic rules for one artifact kind. Field names are
// the JSON names of top-level contract fields.
type Schema struct {
	Kind pipeline.ArtifactKind

	// Required fields must be present; string fields must additionally be
	// non-empty (the "UNSPECIFIED" sentinel is allowed, absence is not).
	Required []string

	// NonEmptyLists must contain at least one element.
	NonEmptyLists []string

	// Canonical lists of strings must already be in sorted order. The
	// validator rejects non-canonical ordering rather than silently
	// re-sorting, so determinism failures are caught instead of masked.
	Canonical []string

	// Exclusive pairs of string lists may not share an element.
	Exclusive [][2]string

	// NonDeterministic fields are excluded from the content digest
	// (randomly generated identifiers, wall-clock timestamps).
	NonDeterministic []string
}

// schemas is the static per-kind schema registry.
var schemas = map[pipeline.ArtifactKind]*Schema{
	pipeline.KindBasePrompt: {
		Kind:             pipeline.KindBasePrompt,
		Required:         []string{"prompt", "audience"},
		NonEmptyLists:    []string{"constraints"},
		NonDeterministic: []string{"generated_id", "generated_at_ms"},
	},
	pipeline.KindMasterPlan: {
		Kind:             pipeline.KindMasterPlan,
		Required:         []string{"title", "summary"},
		NonEmptyLists:    []string{"goals", "sections"},
		NonDeterministic: []string{"generated_id", "generated_at_ms"},
	},
	pipeline.KindScreenIndex: {
		Kind:             pipeline.KindScreenIndex,
		NonEmptyLists:    []string{"screens"},
		Canonical:        []string{"screens"},
		NonDeterministic: []string{"generated_id", "generated_at_ms"},
	},
	pipeline.KindScreenDefinition: {
		Kind:             pipeline.KindScreenDefinition,
		Required:         []string{"name", "purpose"},
		NonEmptyLists:    []string{"elements"},
		Exclusive:        [][2]string{{"allow_paths", "deny_paths"}},
		NonDeterministic: []string{"generated_id", "generated_at_ms"},
	},
	pipeline.KindVisualContract: {
		Kind:             pipeline.KindVisualContract,
		Required:         []string{"screen"},
		NonEmptyLists:    []string{"palette"},
		Canonical:        []string{"assets"},
		NonDeterministic: []string{"generated_id", "generated_at_ms"},
	},
}

// SchemaFor returns the schema for an artifact kind.
func SchemaFor(kind pipeline.ArtifactKind) (*Schema, error) {
	s, ok := schemas[kind]
	if !ok {
		return nil, fmt.Errorf("no schema registered for kind %q", kind)
	}
	return s, nil
}
