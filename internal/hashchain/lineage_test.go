package hashchain

import (
	"testing"

	"github.com/dyluth/warren/pkg/pipeline"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvedPrompt(hash string, version int) *pipeline.Artifact {
	return &pipeline.Artifact{
		ID:        uuid.New().String(),
		RequestID: uuid.New().String(),
		Kind:      pipeline.KindBasePrompt,
		Content: &pipeline.BasePromptContract{
			Prompt:      "Build a habit tracker",
			Audience:    "mobile users",
			Constraints: []string{"offline-first"},
		},
		Status:      pipeline.StatusApproved,
		Version:     version,
		ContentHash: hash,
		ProducedBy:  "prompter",
	}
}

func TestApprovedHashes(t *testing.T) {
	promptV1 := approvedPrompt("1111111111111111111111111111111111111111111111111111111111111111", 1)
	promptV2 := approvedPrompt("2222222222222222222222222222222222222222222222222222222222222222", 2)

	draft := approvedPrompt("", 3)
	draft.Status = pipeline.StatusAwaitingApproval

	approved := ApprovedHashes([]*pipeline.Artifact{promptV1, promptV2, draft})

	// Both approved versions are collected; the unhashed draft is not.
	assert.Equal(t, map[pipeline.ArtifactKind]map[string]bool{
		pipeline.KindBasePrompt: {
			promptV1.ContentHash: true,
			promptV2.ContentHash: true,
		},
	}, approved)
}

func TestVerifyLineage(t *testing.T) {
	promptV1 := approvedPrompt("1111111111111111111111111111111111111111111111111111111111111111", 1)
	promptV2 := approvedPrompt("2222222222222222222222222222222222222222222222222222222222222222", 2)
	approved := ApprovedHashes([]*pipeline.Artifact{promptV1, promptV2})

	plan := func(parentHash string) *pipeline.Artifact {
		return &pipeline.Artifact{
			ID:        uuid.New().String(),
			RequestID: promptV1.RequestID,
			Kind:      pipeline.KindMasterPlan,
			Content: &pipeline.MasterPlanContract{
				Title: "Habit tracker", Summary: "s", Goals: []string{"g"},
				Sections: []pipeline.PlanSection{{Heading: "Scope", Body: "b"}},
			},
			Status:       pipeline.StatusAwaitingApproval,
			Version:      1,
			ParentHashes: map[pipeline.ArtifactKind]string{pipeline.KindBasePrompt: parentHash},
			ProducedBy:   "planner",
		}
	}

	t.Run("parent chained to the current approved version passes", func(t *testing.T) {
		assert.Empty(t, VerifyLineage(plan(promptV2.ContentHash), approved))
	})

	t.Run("parent chained to an older approved version still passes", func(t *testing.T) {
		// A plan generated before the prompt was superseded legitimately
		// chains to the older approved hash.
		assert.Empty(t, VerifyLineage(plan(promptV1.ContentHash), approved))
	})

	t.Run("parent hash matching no approved version is dangling", func(t *testing.T) {
		a := plan("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
		errs := VerifyLineage(a, approved)
		require.Len(t, errs, 1)
		assert.True(t, IsLineageError(errs[0]))

		lerr := errs[0].(*LineageError)
		assert.Equal(t, a.ID, lerr.ArtifactID)
		assert.Equal(t, pipeline.KindBasePrompt, lerr.ParentKind)
	})

	t.Run("parent kind with no approved artifacts is skipped", func(t *testing.T) {
		a := plan(promptV2.ContentHash)
		a.ParentHashes[pipeline.KindScreenIndex] = "absent"
		assert.Empty(t, VerifyLineage(a, approved))
	})
}
