package producer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/warren/internal/conductor"
	"github.com/dyluth/warren/internal/contract"
	"github.com/dyluth/warren/internal/isolation"
	"github.com/dyluth/warren/pkg/pipeline"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProducerTest(t *testing.T) (*pipeline.Client, *conductor.Conductor) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := pipeline.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, conductor.New(client)
}

// generateBasePrompt is a deterministic stand-in for the external generator.
func generateBasePrompt(ctx context.Context, ic *isolation.IsolatedContext) (pipeline.Contract, error) {
	return &pipeline.BasePromptContract{
		Prompt:      "Build a habit tracker",
		Audience:    "mobile users",
		Constraints: []string{"offline-first"},
	}, nil
}

func generateMasterPlan(ctx context.Context, ic *isolation.IsolatedContext) (pipeline.Contract, error) {
	return &pipeline.MasterPlanContract{
		Title:    "Habit tracker",
		Summary:  "A small offline habit tracker",
		Goals:    []string{"track habits"},
		Sections: []pipeline.PlanSection{{Heading: "Scope", Body: "one screen"}},
	}, nil
}

func prompterSpec() Spec {
	return Spec{
		Name:             "prompter",
		Stage:            pipeline.StageIdea,
		Kind:             pipeline.KindBasePrompt,
		Next:             pipeline.StageBasePromptReady,
		TerminalForStage: true,
		InitialBackoff:   time.Millisecond,
		Generate:         generateBasePrompt,
	}
}

func plannerSpec() Spec {
	return Spec{
		Name:             "planner",
		Stage:            pipeline.StageBasePromptReady,
		Kind:             pipeline.KindMasterPlan,
		Requires:         []pipeline.ArtifactKind{pipeline.KindBasePrompt},
		Next:             pipeline.StagePlanning,
		TerminalForStage: true,
		InitialBackoff:   time.Millisecond,
		Generate:         generateMasterPlan,
	}
}

func TestNewProducer(t *testing.T) {
	client, cond := setupProducerTest(t)

	t.Run("accepts a valid spec and applies defaults", func(t *testing.T) {
		p, err := New(client, cond, prompterSpec())
		require.NoError(t, err)
		assert.Equal(t, "prompter", p.Name())
		assert.Equal(t, pipeline.KindBasePrompt, p.Kind())
		assert.Equal(t, defaultMaxAttempts, p.spec.MaxAttempts)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		spec := prompterSpec()
		spec.Name = ""
		_, err := New(client, cond, spec)
		assert.Error(t, err)
	})

	t.Run("rejects unknown stage", func(t *testing.T) {
		spec := prompterSpec()
		spec.Stage = "limbo"
		_, err := New(client, cond, spec)
		assert.Error(t, err)
	})

	t.Run("rejects terminal spec without a next stage", func(t *testing.T) {
		spec := prompterSpec()
		spec.Next = ""
		_, err := New(client, cond, spec)
		assert.Error(t, err)
	})

	t.Run("allows approval-only spec without a generator", func(t *testing.T) {
		spec := prompterSpec()
		spec.Generate = nil
		_, err := New(client, cond, spec)
		assert.NoError(t, err)
	})
}

func TestProducerRun(t *testing.T) {
	client, cond := setupProducerTest(t)
	ctx := context.Background()

	p, err := New(client, cond, prompterSpec())
	require.NoError(t, err)

	requestID, err := cond.StartRun(ctx)
	require.NoError(t, err)

	artifact, err := p.Run(ctx, requestID)
	require.NoError(t, err)

	t.Run("draft awaits approval with no hash", func(t *testing.T) {
		assert.Equal(t, pipeline.StatusAwaitingApproval, artifact.Status)
		assert.Empty(t, artifact.ContentHash, "hashing happens at approval, not generation")
		assert.Equal(t, 1, artifact.Version)
		assert.Equal(t, "prompter", artifact.ProducedBy)
		assert.Empty(t, artifact.ParentHashes)
	})

	t.Run("draft is persisted", func(t *testing.T) {
		stored, err := client.GetArtifact(ctx, artifact.ID)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatusAwaitingApproval, stored.Status)
	})

	t.Run("run is paused for a human and unlocked", func(t *testing.T) {
		snap, err := cond.Snapshot(ctx, requestID)
		require.NoError(t, err)
		assert.True(t, snap.AwaitingHuman)
		assert.Contains(t, snap.PauseMessage, "base_prompt v1 awaiting approval")
		assert.False(t, snap.Locked, "the deferred unlock must run on the success path")
	})

	t.Run("stage is not advanced by generation", func(t *testing.T) {
		snap, err := cond.Snapshot(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StageIdea, snap.CurrentStage)
	})
}

func TestProducerRunGuards(t *testing.T) {
	client, cond := setupProducerTest(t)
	ctx := context.Background()

	t.Run("stage mismatch", func(t *testing.T) {
		p, err := New(client, cond, plannerSpec())
		require.NoError(t, err)

		requestID, err := cond.StartRun(ctx) // run is at idea, planner expects base_prompt_ready
		require.NoError(t, err)

		_, err = p.Run(ctx, requestID)
		require.Error(t, err)
		assert.True(t, IsStageMismatch(err))

		serr := err.(*StageMismatchError)
		assert.Equal(t, pipeline.StageBasePromptReady, serr.Expected)
		assert.Equal(t, pipeline.StageIdea, serr.Actual)
	})

	t.Run("locked run refuses a second writer", func(t *testing.T) {
		p, err := New(client, cond, prompterSpec())
		require.NoError(t, err)

		requestID, err := cond.StartRun(ctx)
		require.NoError(t, err)
		require.NoError(t, cond.Lock(ctx, requestID, "someone-else"))

		_, err = p.Run(ctx, requestID)
		require.Error(t, err)
		assert.True(t, conductor.IsAlreadyLocked(err))
	})

	t.Run("missing upstream context unlocks and fails", func(t *testing.T) {
		p, err := New(client, cond, plannerSpec())
		require.NoError(t, err)

		requestID, err := cond.StartRun(ctx)
		require.NoError(t, err)
		// Force the stage without producing the upstream artifact.
		require.NoError(t, cond.Transition(ctx, requestID, pipeline.StageBasePromptReady, "test"))

		_, err = p.Run(ctx, requestID)
		require.Error(t, err)
		assert.True(t, isolation.IsIsolationError(err))

		snap, err := cond.Snapshot(ctx, requestID)
		require.NoError(t, err)
		assert.False(t, snap.Locked, "the deferred unlock must run on the failure path")
	})

	t.Run("unknown run", func(t *testing.T) {
		p, err := New(client, cond, prompterSpec())
		require.NoError(t, err)

		_, err = p.Run(ctx, "0c6f1b7e-0000-0000-0000-000000000000")
		assert.True(t, conductor.IsNotFound(err))
	})

	t.Run("producer without a generator cannot run", func(t *testing.T) {
		spec := prompterSpec()
		spec.Generate = nil
		p, err := New(client, cond, spec)
		require.NoError(t, err)

		requestID, err := cond.StartRun(ctx)
		require.NoError(t, err)

		_, err = p.Run(ctx, requestID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no generate function")
	})
}

func TestProducerRetries(t *testing.T) {
	client, cond := setupProducerTest(t)
	ctx := context.Background()

	t.Run("recovers from transient generation failures", func(t *testing.T) {
		attempts := 0
		spec := prompterSpec()
		spec.Generate = func(ctx context.Context, ic *isolation.IsolatedContext) (pipeline.Contract, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("model timeout")
			}
			return generateBasePrompt(ctx, ic)
		}

		p, err := New(client, cond, spec)
		require.NoError(t, err)

		requestID, err := cond.StartRun(ctx)
		require.NoError(t, err)

		artifact, err := p.Run(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, pipeline.StatusAwaitingApproval, artifact.Status)
	})

	t.Run("invalid drafts count against the retry bound", func(t *testing.T) {
		attempts := 0
		spec := prompterSpec()
		spec.MaxAttempts = 2
		spec.Generate = func(ctx context.Context, ic *isolation.IsolatedContext) (pipeline.Contract, error) {
			attempts++
			// Structurally present but violating the schema: empty prompt.
			return &pipeline.BasePromptContract{Audience: "a", Constraints: []string{"c"}}, nil
		}

		p, err := New(client, cond, spec)
		require.NoError(t, err)

		requestID, err := cond.StartRun(ctx)
		require.NoError(t, err)

		_, err = p.Run(ctx, requestID)
		require.Error(t, err)
		assert.True(t, IsGenerationFailed(err))
		assert.Equal(t, 2, attempts)
		assert.True(t, contract.IsValidationError(err.(*GenerationFailedError).Last))
	})

	t.Run("exhaustion records a failure event and leaves the run unwedged", func(t *testing.T) {
		spec := prompterSpec()
		spec.MaxAttempts = 2
		spec.Generate = func(ctx context.Context, ic *isolation.IsolatedContext) (pipeline.Contract, error) {
			return nil, errors.New("model unavailable")
		}

		p, err := New(client, cond, spec)
		require.NoError(t, err)

		requestID, err := cond.StartRun(ctx)
		require.NoError(t, err)

		_, err = p.Run(ctx, requestID)
		require.Error(t, err)
		assert.True(t, IsGenerationFailed(err))

		gerr := err.(*GenerationFailedError)
		assert.Equal(t, 2, gerr.Attempts)
		assert.Equal(t, pipeline.KindBasePrompt, gerr.Kind)

		// The failure is human-visible in the audit trail.
		events, err := client.ReadAudit(ctx, requestID)
		require.NoError(t, err)
		var sawFailure bool
		for _, e := range events {
			if e.Type == "generation_failed" {
				sawFailure = true
				assert.Equal(t, "prompter", e.Agent)
			}
		}
		assert.True(t, sawFailure)

		// No draft was persisted and the run can be retried.
		_, err = client.CurrentArtifact(ctx, requestID, pipeline.KindBasePrompt)
		assert.True(t, pipeline.IsNotFound(err))

		snap, err := cond.Snapshot(ctx, requestID)
		require.NoError(t, err)
		assert.False(t, snap.Locked)
		assert.False(t, snap.AwaitingHuman)
	})
}

func TestJustificationFilterIsAdvisory(t *testing.T) {
	client, cond := setupProducerTest(t)
	ctx := context.Background()

	warned := false
	spec := prompterSpec()
	spec.Justify = func(ic *isolation.IsolatedContext, draft pipeline.Contract) []string {
		warned = true
		return []string{"term 'streak' not found upstream"}
	}

	p, err := New(client, cond, spec)
	require.NoError(t, err)

	requestID, err := cond.StartRun(ctx)
	require.NoError(t, err)

	// Warnings are logged, never fatal: the draft still lands.
	artifact, err := p.Run(ctx, requestID)
	require.NoError(t, err)
	assert.True(t, warned)
	assert.Equal(t, pipeline.StatusAwaitingApproval, artifact.Status)
}
