package hashchain

import (
	"testing"

	"github.com/dyluth/warren/internal/contract"
	"github.com/dyluth/warren/pkg/pipeline"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basePromptSchema(t *testing.T) *contract.Schema {
	t.Helper()
	schema, err := contract.SchemaFor(pipeline.KindBasePrompt)
	require.NoError(t, err)
	return schema
}

func TestDigestDeterminism(t *testing.T) {
	schema := basePromptSchema(t)

	content := &pipeline.BasePromptContract{
		Prompt:      "Build a habit tracker",
		Audience:    "mobile users",
		Constraints: []string{"offline-first", "single screen"},
	}

	first, err := Digest(content, schema)
	require.NoError(t, err)
	assert.Len(t, first, 64) // sha256 hex

	for i := 0; i < 10; i++ {
		again, err := Digest(content, schema)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDigestExcludesNonDeterministicFields(t *testing.T) {
	schema := basePromptSchema(t)

	a := &pipeline.BasePromptContract{
		Prompt:        "Build a habit tracker",
		Audience:      "mobile users",
		Constraints:   []string{"offline-first"},
		GeneratedID:   uuid.New().String(),
		GeneratedAtMs: 1700000000000,
	}
	b := &pipeline.BasePromptContract{
		Prompt:        "Build a habit tracker",
		Audience:      "mobile users",
		Constraints:   []string{"offline-first"},
		GeneratedID:   uuid.New().String(),
		GeneratedAtMs: 1800000000000,
	}

	digestA, err := Digest(a, schema)
	require.NoError(t, err)
	digestB, err := Digest(b, schema)
	require.NoError(t, err)

	// Same logical content, different generation metadata: same digest.
	assert.Equal(t, digestA, digestB)
}

func TestDigestChangesWithContent(t *testing.T) {
	schema := basePromptSchema(t)

	base := &pipeline.BasePromptContract{
		Prompt:      "Build a habit tracker",
		Audience:    "mobile users",
		Constraints: []string{"offline-first", "single screen"},
	}
	baseDigest, err := Digest(base, schema)
	require.NoError(t, err)

	t.Run("changed string field", func(t *testing.T) {
		changed := *base
		changed.Prompt = "Build a better habit tracker"
		digest, err := Digest(&changed, schema)
		require.NoError(t, err)
		assert.NotEqual(t, baseDigest, digest)
	})

	t.Run("reordered list", func(t *testing.T) {
		changed := *base
		changed.Constraints = []string{"single screen", "offline-first"}
		digest, err := Digest(&changed, schema)
		require.NoError(t, err)
		assert.NotEqual(t, baseDigest, digest)
	})

	t.Run("added list element", func(t *testing.T) {
		changed := *base
		changed.Constraints = []string{"offline-first", "single screen", "no accounts"}
		digest, err := Digest(&changed, schema)
		require.NoError(t, err)
		assert.NotEqual(t, baseDigest, digest)
	})
}

func TestVerify(t *testing.T) {
	schema := basePromptSchema(t)

	content := &pipeline.BasePromptContract{
		Prompt:      "Build a habit tracker",
		Audience:    "mobile users",
		Constraints: []string{"offline-first"},
	}
	digest, err := Digest(content, schema)
	require.NoError(t, err)

	artifact := &pipeline.Artifact{
		ID:          uuid.New().String(),
		RequestID:   uuid.New().String(),
		Kind:        pipeline.KindBasePrompt,
		Content:     content,
		Status:      pipeline.StatusApproved,
		Version:     1,
		ContentHash: digest,
		ProducedBy:  "prompter",
	}

	t.Run("matching hash verifies", func(t *testing.T) {
		assert.NoError(t, Verify(artifact, schema))
	})

	t.Run("unapproved artifact verifies trivially", func(t *testing.T) {
		draft := *artifact
		draft.Status = pipeline.StatusAwaitingApproval
		draft.ContentHash = ""
		assert.NoError(t, Verify(&draft, schema))
	})

	t.Run("tampered content fails with IntegrityError", func(t *testing.T) {
		tampered := *artifact
		tamperedContent := *content
		tamperedContent.Prompt = "tampered"
		tampered.Content = &tamperedContent

		err := Verify(&tampered, schema)
		require.Error(t, err)
		assert.True(t, IsIntegrityError(err))

		ierr := err.(*IntegrityError)
		assert.Equal(t, artifact.ID, ierr.ArtifactID)
		assert.Equal(t, digest, ierr.Stored)
		assert.NotEqual(t, ierr.Stored, ierr.Computed)
	})

	t.Run("tampered hash fails with IntegrityError", func(t *testing.T) {
		tampered := *artifact
		tampered.ContentHash = "0000000000000000000000000000000000000000000000000000000000000000"
		err := Verify(&tampered, schema)
		assert.True(t, IsIntegrityError(err))
	})
}
