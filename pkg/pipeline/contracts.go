package pipeline

import (
	"encoding/json"
	"fmt"
)

// Unspecified is the sentinel for a field that is known to be absent.
// Required string fields may carry this value but must never be empty.
const Unspecified = "UNSPECIFIED"

// Contract is the structured, pre-hash representation of an artifact's
// content. Each artifact kind has exactly one concrete contract shape, so
// field presence is checked by the compiler; the generic validator only
// covers the invariants the type system cannot express (non-empty lists,
// canonical ordering, cross-field exclusivity).
type Contract interface {
	// Kind returns the artifact kind this contract belongs to.
	Kind() ArtifactKind
}

// BasePromptContract is the refined prompt produced from the raw idea.
type BasePromptContract struct {
	Prompt      string   `json:"prompt"`
	Audience    string   `json:"audience"`
	Constraints []string `json:"constraints"`

	// GeneratedID and GeneratedAtMs are assigned fresh on every generation
	// and are excluded from hashing.
	GeneratedID   string `json:"generated_id"`
	GeneratedAtMs int64  `json:"generated_at_ms"`
}

func (BasePromptContract) Kind() ArtifactKind { return KindBasePrompt }

// PlanSection is one named section of a master plan.
type PlanSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// MasterPlanContract is the top-level planning document for a run.
type MasterPlanContract struct {
	Title    string        `json:"title"`
	Summary  string        `json:"summary"`
	Goals    []string      `json:"goals"`
	Sections []PlanSection `json:"sections"`

	GeneratedID   string `json:"generated_id"`
	GeneratedAtMs int64  `json:"generated_at_ms"`
}

func (MasterPlanContract) Kind() ArtifactKind { return KindMasterPlan }

// ScreenIndexContract enumerates the screens implied by the master plan.
// Screens must be in canonical (lexicographically sorted) order; the
// validator rejects non-canonical ordering rather than re-sorting it.
type ScreenIndexContract struct {
	Screens    []string `json:"screens"`
	Vocabulary []string `json:"vocabulary"` // Terms extracted from upstream text that justify the screens

	GeneratedID   string `json:"generated_id"`
	GeneratedAtMs int64  `json:"generated_at_ms"`
}

func (ScreenIndexContract) Kind() ArtifactKind { return KindScreenIndex }

// ScreenDefinitionContract is the detailed definition of a single screen.
// AllowPaths and DenyPaths are mutually exclusive: a path may not appear in
// both lists.
type ScreenDefinitionContract struct {
	Name       string   `json:"name"`
	Purpose    string   `json:"purpose"`
	Elements   []string `json:"elements"`
	AllowPaths []string `json:"allow_paths"`
	DenyPaths  []string `json:"deny_paths"`

	GeneratedID   string `json:"generated_id"`
	GeneratedAtMs int64  `json:"generated_at_ms"`
}

func (ScreenDefinitionContract) Kind() ArtifactKind { return KindScreenDefinition }

// VisualContractContract locks the visual specification for a run.
// Assets must be in canonical (lexicographically sorted) order.
type VisualContractContract struct {
	Screen  string   `json:"screen"`
	Palette []string `json:"palette"`
	Assets  []string `json:"assets"`

	GeneratedID   string `json:"generated_id"`
	GeneratedAtMs int64  `json:"generated_at_ms"`
}

func (VisualContractContract) Kind() ArtifactKind { return KindVisualContract }

// DecodeContract unmarshals a JSON-encoded contract into the concrete shape
// for the given kind. This is the single point where the string discriminator
// from storage is converted back into a typed contract.
func DecodeContract(kind ArtifactKind, data []byte) (Contract, error) {
	var c Contract
	switch kind {
	case KindBasePrompt:
		c = &BasePromptContract{}
	case KindMasterPlan:
		c = &MasterPlanContract{}
	case KindScreenIndex:
		c = &ScreenIndexContract{}
	case KindScreenDefinition:
		c = &ScreenDefinitionContract{}
	case KindVisualContract:
		c = &VisualContractContract{}
	default:
		return nil, fmt.Errorf("unknown artifact kind: %q", kind)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s contract: %w", kind, err)
	}

	return c, nil
}

// EncodeContract marshals a contract for storage.
func EncodeContract(c Contract) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s contract: %w", c.Kind(), err)
	}
	return data, nil
}
