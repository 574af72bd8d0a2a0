package conductor

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/warren/pkg/pipeline"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupConductor creates a conductor over a miniredis-backed store client.
func setupConductor(t *testing.T) (*Conductor, *pipeline.Client) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := pipeline.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return New(client), client
}

func TestStartRun(t *testing.T) {
	cond, client := setupConductor(t)
	ctx := context.Background()

	requestID, err := cond.StartRun(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, requestID)

	run, err := client.GetRun(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, InitialStage, run.CurrentStage)
	assert.False(t, run.AwaitingHuman)
	assert.NotZero(t, run.CreatedAtMs)

	events, err := client.ReadAudit(ctx, requestID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "run_created", events[0].Type)
}

func TestSnapshot(t *testing.T) {
	cond, _ := setupConductor(t)
	ctx := context.Background()

	t.Run("unknown run returns NotFoundError", func(t *testing.T) {
		_, err := cond.Snapshot(ctx, uuid.New().String())
		assert.True(t, IsNotFound(err))
	})

	t.Run("reflects run and lock state", func(t *testing.T) {
		requestID, err := cond.StartRun(ctx)
		require.NoError(t, err)

		snap, err := cond.Snapshot(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, InitialStage, snap.CurrentStage)
		assert.False(t, snap.Locked)
		assert.Empty(t, snap.LockHolder)

		require.NoError(t, cond.Lock(ctx, requestID, "prompter"))

		snap, err = cond.Snapshot(ctx, requestID)
		require.NoError(t, err)
		assert.True(t, snap.Locked)
		assert.Equal(t, "prompter", snap.LockHolder)
	})
}

func TestLockExclusivity(t *testing.T) {
	cond, _ := setupConductor(t)
	ctx := context.Background()

	requestID, err := cond.StartRun(ctx)
	require.NoError(t, err)

	t.Run("first claim wins", func(t *testing.T) {
		require.NoError(t, cond.Lock(ctx, requestID, "prompter"))
	})

	t.Run("second claim fails immediately with holder", func(t *testing.T) {
		err := cond.Lock(ctx, requestID, "planner")
		require.Error(t, err)
		assert.True(t, IsAlreadyLocked(err))

		lerr := err.(*AlreadyLockedError)
		assert.Equal(t, "prompter", lerr.Holder)
	})

	t.Run("even the holder cannot double-lock", func(t *testing.T) {
		err := cond.Lock(ctx, requestID, "prompter")
		assert.True(t, IsAlreadyLocked(err))
	})

	t.Run("released lock can be claimed by another producer", func(t *testing.T) {
		require.NoError(t, cond.Unlock(ctx, requestID))
		require.NoError(t, cond.Lock(ctx, requestID, "planner"))
	})

	t.Run("lock on unknown run returns NotFoundError", func(t *testing.T) {
		err := cond.Lock(ctx, uuid.New().String(), "prompter")
		assert.True(t, IsNotFound(err))
	})
}

func TestUnlockIdempotent(t *testing.T) {
	cond, _ := setupConductor(t)
	ctx := context.Background()

	requestID, err := cond.StartRun(ctx)
	require.NoError(t, err)

	require.NoError(t, cond.Unlock(ctx, requestID))
	require.NoError(t, cond.Lock(ctx, requestID, "prompter"))
	require.NoError(t, cond.Unlock(ctx, requestID))
	require.NoError(t, cond.Unlock(ctx, requestID))
}

func TestPauseForHuman(t *testing.T) {
	cond, _ := setupConductor(t)
	ctx := context.Background()

	requestID, err := cond.StartRun(ctx)
	require.NoError(t, err)

	t.Run("pause without the lock is a protocol violation", func(t *testing.T) {
		err := cond.PauseForHuman(ctx, requestID, "base_prompt v1 awaiting approval")
		require.Error(t, err)
		assert.True(t, IsNotLocked(err))
	})

	t.Run("pause under the lock records the gate", func(t *testing.T) {
		require.NoError(t, cond.Lock(ctx, requestID, "prompter"))
		require.NoError(t, cond.PauseForHuman(ctx, requestID, "base_prompt v1 awaiting approval"))

		snap, err := cond.Snapshot(ctx, requestID)
		require.NoError(t, err)
		assert.True(t, snap.AwaitingHuman)
		assert.Equal(t, "base_prompt v1 awaiting approval", snap.PauseMessage)
		assert.True(t, snap.Locked, "pausing must not release the lock")
	})

	t.Run("resume clears the gate and is idempotent", func(t *testing.T) {
		require.NoError(t, cond.ResumeAfterHuman(ctx, requestID))
		require.NoError(t, cond.ResumeAfterHuman(ctx, requestID))

		snap, err := cond.Snapshot(ctx, requestID)
		require.NoError(t, err)
		assert.False(t, snap.AwaitingHuman)
		assert.Empty(t, snap.PauseMessage)
	})
}

func TestTransition(t *testing.T) {
	cond, _ := setupConductor(t)
	ctx := context.Background()

	requestID, err := cond.StartRun(ctx)
	require.NoError(t, err)

	t.Run("legal edge advances the stage", func(t *testing.T) {
		err := cond.Transition(ctx, requestID, pipeline.StageBasePromptReady, "prompter")
		require.NoError(t, err)

		snap, err := cond.Snapshot(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StageBasePromptReady, snap.CurrentStage)
		assert.Equal(t, "prompter", snap.LastAgent)
	})

	t.Run("illegal edge fails and leaves the stage unchanged", func(t *testing.T) {
		err := cond.Transition(ctx, requestID, pipeline.StageComplete, "prompter")
		require.Error(t, err)
		assert.True(t, IsIllegalTransition(err))

		terr := err.(*IllegalTransitionError)
		assert.Equal(t, pipeline.StageBasePromptReady, terr.From)
		assert.Equal(t, pipeline.StageComplete, terr.To)

		snap, err := cond.Snapshot(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StageBasePromptReady, snap.CurrentStage)
	})

	t.Run("replayed transition fails against refetched state", func(t *testing.T) {
		// The first transition to base_prompt_ready already happened; a stale
		// caller replaying it must fail the legality check.
		err := cond.Transition(ctx, requestID, pipeline.StageBasePromptReady, "prompter")
		assert.True(t, IsIllegalTransition(err))
	})

	t.Run("unknown stage is rejected", func(t *testing.T) {
		err := cond.Transition(ctx, requestID, "limbo", "prompter")
		assert.Error(t, err)
	})

	t.Run("unknown run returns NotFoundError", func(t *testing.T) {
		err := cond.Transition(ctx, uuid.New().String(), pipeline.StagePlanning, "planner")
		assert.True(t, IsNotFound(err))
	})
}

func TestTransitionFanIn(t *testing.T) {
	cond, _ := setupConductor(t)
	ctx := context.Background()

	walk := func(t *testing.T, stages ...pipeline.Stage) string {
		requestID, err := cond.StartRun(ctx)
		require.NoError(t, err)
		for _, stage := range stages {
			require.NoError(t, cond.Transition(ctx, requestID, stage, "test"))
		}
		return requestID
	}

	t.Run("visuals_locked reachable via screens_generated", func(t *testing.T) {
		requestID := walk(t,
			pipeline.StageBasePromptReady, pipeline.StagePlanning,
			pipeline.StageScreensDefined, pipeline.StageScreensGenerated,
			pipeline.StageVisualsLocked, pipeline.StageComplete)

		snap, err := cond.Snapshot(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, TerminalStage, snap.CurrentStage)
	})

	t.Run("visuals_locked reachable directly from screens_defined", func(t *testing.T) {
		requestID := walk(t,
			pipeline.StageBasePromptReady, pipeline.StagePlanning,
			pipeline.StageScreensDefined, pipeline.StageVisualsLocked)

		snap, err := cond.Snapshot(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StageVisualsLocked, snap.CurrentStage)
	})

	t.Run("terminal stage has no exits", func(t *testing.T) {
		requestID := walk(t,
			pipeline.StageBasePromptReady, pipeline.StagePlanning,
			pipeline.StageScreensDefined, pipeline.StageVisualsLocked,
			pipeline.StageComplete)

		err := cond.Transition(ctx, requestID, pipeline.StageIdea, "test")
		assert.True(t, IsIllegalTransition(err))
	})
}

func TestAuditTrail(t *testing.T) {
	cond, client := setupConductor(t)
	ctx := context.Background()

	requestID, err := cond.StartRun(ctx)
	require.NoError(t, err)

	require.NoError(t, cond.Lock(ctx, requestID, "prompter"))
	require.NoError(t, cond.PauseForHuman(ctx, requestID, "awaiting approval"))
	require.NoError(t, cond.ResumeAfterHuman(ctx, requestID))
	require.NoError(t, cond.Transition(ctx, requestID, pipeline.StageBasePromptReady, "prompter"))
	require.NoError(t, cond.Unlock(ctx, requestID))

	events, err := client.ReadAudit(ctx, requestID)
	require.NoError(t, err)

	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	assert.Equal(t, []string{
		"run_created", "lock", "pause_for_human", "resume_after_human",
		"transition", "unlock",
	}, types)
}
