package knowsync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekartashov/knowsync/activity"
	"github.com/ekartashov/knowsync/config"
	"github.com/ekartashov/knowsync/core"
	"github.com/ekartashov/knowsync/engine"
	"github.com/ekartashov/knowsync/internal/testutil"
	"github.com/ekartashov/knowsync/session"
)

func TestEndToEndSyncFlow(t *testing.T) {
	ctx := context.Background()
	log := activity.NewInMemoryLog()
	ks := New(func(o *Options) { o.ActivityLog = log })

	_, err := ks.RegisterAgent(ctx, testutil.NewAgentBuilder("planner").Strategy(core.StrategyLatestWins).Build())
	require.NoError(t, err)
	_, err = ks.RegisterAgent(ctx, testutil.NewAgentBuilder("coder").Build())
	require.NoError(t, err)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err = ks.StoreArtifact(ctx, "planner", testutil.NewArtifactBuilder("d1").
		Type(core.ArtifactDecision).Field("status", "accepted").At(t0.Add(time.Hour)).Build())
	require.NoError(t, err)
	_, err = ks.StoreArtifact(ctx, "coder", testutil.NewArtifactBuilder("d1").
		Type(core.ArtifactDecision).Field("status", "proposed").At(t0).Build())
	require.NoError(t, err)
	_, err = ks.StoreArtifact(ctx, "coder", testutil.NewArtifactBuilder("p1").
		Type(core.ArtifactProgress).Field("done", true).At(t0).Build())
	require.NoError(t, err)

	// Compare sees the divergence without modifying anything.
	cmp, err := ks.Compare(ctx, engine.CompareInput{SourceAgentID: "planner", TargetAgentID: "coder"})
	require.NoError(t, err)
	assert.Len(t, cmp.Conflicts, 1)
	assert.Len(t, cmp.UniqueToTarget, 1)

	// Pull with the agent's preferred strategy reconciles the conflict and
	// brings over the unique artifact.
	pull, err := ks.Pull(ctx, engine.PullInput{TargetAgentID: "planner", SourceAgentID: "coder"})
	require.NoError(t, err)
	assert.True(t, pull.Success)
	assert.Equal(t, 1, pull.Sources[0].ConflictsResolved)
	assert.Equal(t, 1, pull.Sources[0].Transferred)

	got, err := ks.GetArtifact(ctx, "planner", core.ArtifactDecision, "d1")
	require.NoError(t, err)
	assert.Equal(t, "accepted", got.Content["status"], "latest_wins keeps the newer local copy")

	// Status reflects everything that happened.
	status, err := ks.Status(ctx, engine.StatusInput{AgentID: "planner"})
	require.NoError(t, err)
	assert.Equal(t, 2, status.RegisteredAgents)
	assert.Equal(t, 2, status.Agent.ArtifactCount)
	assert.NotNil(t, status.Agent.LastSync)
	assert.Greater(t, log.Len(), 0, "session events reach the activity sink")
}

func TestFacadeSessionSurface(t *testing.T) {
	ctx := context.Background()
	ks := New()

	for _, id := range []string{"a", "b"} {
		_, err := ks.RegisterAgent(ctx, testutil.NewAgentBuilder(id).Build())
		require.NoError(t, err)
	}

	sess, err := ks.CreateSession(ctx, session.CreateInput{AgentIDs: []string{"a", "b"}, Mode: core.SyncBidirectional})
	require.NoError(t, err)
	_, err = ks.StartSession(ctx, sess.ID)
	require.NoError(t, err)

	conflicts, err := ks.DetectConflicts(ctx, sess.ID, "a", "b", core.AlgorithmDefault)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	completed, err := ks.CompleteSession(ctx, sess.ID, map[string]any{"note": "clean"})
	require.NoError(t, err)
	assert.Equal(t, core.SessionCompleted, completed.Status)

	all, err := ks.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFacadeAgentLifecycle(t *testing.T) {
	ctx := context.Background()
	ks := New()

	_, err := ks.RegisterAgent(ctx, testutil.NewAgentBuilder("a").Type("planner").Build())
	require.NoError(t, err)

	name := "Planner"
	_, err = ks.UpdateAgent(ctx, "a", core.AgentPatch{DisplayName: &name})
	require.NoError(t, err)
	got, err := ks.GetAgent(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Planner", got.DisplayName)

	agents, err := ks.ListAgents(ctx, core.AgentFilter{Type: "planner"})
	require.NoError(t, err)
	assert.Len(t, agents, 1)

	require.NoError(t, ks.RemoveAgent(ctx, "a"))
	_, err = ks.GetAgent(ctx, "a")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestNewFromConfigSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "knowsync.db")

	ks, cleanup, err := NewFromConfig(cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, cleanup()) }()

	_, err = ks.RegisterAgent(ctx, testutil.NewAgentBuilder("a").Build())
	require.NoError(t, err)
	_, err = ks.StoreArtifact(ctx, "a", testutil.NewArtifactBuilder("d1").Type(core.ArtifactDecision).Build())
	require.NoError(t, err)

	status, err := ks.Status(ctx, engine.StatusInput{AgentID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, status.Agent.ArtifactCount)
}

func TestNewFromConfigRejectsInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "orbit"
	_, _, err := NewFromConfig(cfg)
	assert.Error(t, err)
}
