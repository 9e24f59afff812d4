package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekartashov/knowsync/activity"
	"github.com/ekartashov/knowsync/core"
	"github.com/ekartashov/knowsync/internal/testutil"
	"github.com/ekartashov/knowsync/knowledge"
	"github.com/ekartashov/knowsync/registry"
)

type managerFixture struct {
	manager   *Manager
	registry  *registry.Registry
	knowledge *knowledge.InMemoryStore
	activity  *activity.InMemoryLog
}

func newFixture(t *testing.T, agentIDs ...string) *managerFixture {
	t.Helper()
	ctx := context.Background()
	log := activity.NewInMemoryLog()
	reg := registry.New(func(o *registry.Options) { o.Activity = log })
	store := knowledge.NewInMemoryStore()
	for _, id := range agentIDs {
		_, err := reg.Register(ctx, testutil.NewAgentBuilder(id).Build())
		require.NoError(t, err)
	}
	m := NewManager(func(o *ManagerOptions) {
		o.Registry = reg
		o.Knowledge = store
	})
	return &managerFixture{manager: m, registry: reg, knowledge: store, activity: log}
}

func TestCreateValidations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b")

	_, err := f.manager.Create(ctx, CreateInput{AgentIDs: []string{"a"}})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.manager.Create(ctx, CreateInput{AgentIDs: []string{"a", "ghost"}})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.manager.Create(ctx, CreateInput{AgentIDs: []string{"a", "b"}, Mode: "sideways"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	sess, err := f.manager.Create(ctx, CreateInput{AgentIDs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, core.SyncBidirectional, sess.Mode, "mode defaults to bidirectional")
	assert.Equal(t, core.SessionCreated, sess.Status)

	created := f.activity.Find(activity.Query{Type: core.EventSessionCreated})
	assert.Len(t, created, 2, "both participants are notified")
}

func TestStartTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b")
	sess, err := f.manager.Create(ctx, CreateInput{AgentIDs: []string{"a", "b"}})
	require.NoError(t, err)

	started, err := f.manager.Start(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SessionRunning, started.Status)
	require.NotNil(t, started.StartedAt)

	_, err = f.manager.Start(ctx, sess.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition, "running sessions cannot start again")

	_, err = f.manager.Start(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func seedDivergence(t *testing.T, f *managerFixture) {
	t.Helper()
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.knowledge.Store(ctx, "a", testutil.NewArtifactBuilder("d1").
		Type(core.ArtifactDecision).Field("status", "accepted").At(t0.Add(time.Hour)).Build())
	require.NoError(t, err)
	_, err = f.knowledge.Store(ctx, "b", testutil.NewArtifactBuilder("d1").
		Type(core.ArtifactDecision).Field("status", "proposed").At(t0).Build())
	require.NoError(t, err)
}

func TestDetectConflictsFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b")
	seedDivergence(t, f)

	sess, err := f.manager.Create(ctx, CreateInput{AgentIDs: []string{"a", "b"}})
	require.NoError(t, err)
	_, err = f.manager.Start(ctx, sess.ID)
	require.NoError(t, err)

	conflicts, err := f.manager.DetectConflicts(ctx, sess.ID, "a", "b", core.AlgorithmDefault)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, sess.ID, conflicts[0].SessionID)
	assert.Equal(t, "a", conflicts[0].SourceAgentID)
	assert.Equal(t, "b", conflicts[0].TargetAgentID)

	got, err := f.manager.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SessionConflictDetected, got.Status)
	assert.Equal(t, 1, got.Progress.ConflictsDetected)
	assert.Equal(t, 1, got.Progress.ArtifactsCompared)

	agentA, err := f.registry.Get(ctx, "a")
	require.NoError(t, err)
	require.NotEmpty(t, agentA.SyncHistory)
	assert.Equal(t, core.EventConflictsDetected, agentA.SyncHistory[0].Type)
	assert.Equal(t, "b", agentA.SyncHistory[0].PeerAgentID)
}

func TestDetectConflictsRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b", "c")

	sess, err := f.manager.Create(ctx, CreateInput{AgentIDs: []string{"a", "b"}})
	require.NoError(t, err)

	_, err = f.manager.DetectConflicts(ctx, sess.ID, "a", "c", core.AlgorithmDefault)
	assert.ErrorIs(t, err, core.ErrNotParticipant)

	_, err = f.manager.Cancel(ctx, sess.ID, "test")
	require.NoError(t, err)
	_, err = f.manager.DetectConflicts(ctx, sess.ID, "a", "b", core.AlgorithmDefault)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestResolveConflictExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b")
	seedDivergence(t, f)

	sess, err := f.manager.Create(ctx, CreateInput{AgentIDs: []string{"a", "b"}})
	require.NoError(t, err)
	_, err = f.manager.Start(ctx, sess.ID)
	require.NoError(t, err)
	conflicts, err := f.manager.DetectConflicts(ctx, sess.ID, "a", "b", core.AlgorithmDefault)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	resolved, err := f.manager.ResolveConflict(ctx, sess.ID, conflicts[0].ID, core.ResolutionSource, nil)
	require.NoError(t, err)
	assert.True(t, resolved.IsResolved())
	require.NotNil(t, resolved.Resolved)
	assert.Equal(t, "accepted", resolved.Resolved.Content["status"])

	got, err := f.manager.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SessionRunning, got.Status, "last resolution leaves conflict_detected")
	assert.Equal(t, 1, got.Progress.ConflictsResolved)

	_, err = f.manager.ResolveConflict(ctx, sess.ID, conflicts[0].ID, core.ResolutionTarget, nil)
	assert.ErrorIs(t, err, core.ErrAlreadyResolved)

	_, err = f.manager.ResolveConflict(ctx, sess.ID, "missing", core.ResolutionSource, nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestResolveFailureLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b")
	seedDivergence(t, f)

	sess, err := f.manager.Create(ctx, CreateInput{AgentIDs: []string{"a", "b"}})
	require.NoError(t, err)
	_, err = f.manager.Start(ctx, sess.ID)
	require.NoError(t, err)
	conflicts, err := f.manager.DetectConflicts(ctx, sess.ID, "a", "b", core.AlgorithmDefault)
	require.NoError(t, err)

	_, err = f.manager.ResolveConflict(ctx, sess.ID, conflicts[0].ID, "split", nil)
	assert.ErrorIs(t, err, core.ErrUnknownResolution)

	got, err := f.manager.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, got.Conflicts[0].IsResolved(), "failed update must not commit")
	assert.Equal(t, 0, got.Progress.ConflictsResolved)
}

func TestCompleteRequiresActiveSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b")

	sess, err := f.manager.Create(ctx, CreateInput{AgentIDs: []string{"a", "b"}})
	require.NoError(t, err)

	_, err = f.manager.Complete(ctx, sess.ID, nil)
	assert.ErrorIs(t, err, core.ErrInvalidTransition, "created sessions are not active")

	_, err = f.manager.Start(ctx, sess.ID)
	require.NoError(t, err)
	completed, err := f.manager.Complete(ctx, sess.ID, map[string]any{"artifacts_transferred": 3})
	require.NoError(t, err)
	assert.Equal(t, core.SessionCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, 3, completed.Results["artifacts_transferred"])

	_, err = f.manager.Complete(ctx, sess.ID, nil)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	_, err = f.manager.Cancel(ctx, sess.ID, "late")
	assert.ErrorIs(t, err, core.ErrInvalidTransition, "terminal sessions cannot be cancelled")
}

func TestCancelRecordsReason(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b")

	sess, err := f.manager.Create(ctx, CreateInput{AgentIDs: []string{"a", "b"}})
	require.NoError(t, err)

	cancelled, err := f.manager.Cancel(ctx, sess.ID, "operator abort")
	require.NoError(t, err)
	assert.Equal(t, core.SessionCancelled, cancelled.Status)
	assert.Equal(t, "operator abort", cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)

	events := f.activity.Find(activity.Query{Type: core.EventSessionCancelled})
	require.Len(t, events, 2)
	assert.Equal(t, "operator abort", events[0].Event.Details["reason"])
}

func TestSessionRulesScopeDetection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b")
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Two diverged pairs; the session rule only covers the "scoped" one.
	for _, row := range []struct {
		agentID string
		id      string
		scope   string
		ts      time.Time
	}{
		{"a", "d1", "in", t0.Add(time.Hour)},
		{"b", "d1", "in", t0},
		{"a", "d2", "out", t0.Add(time.Hour)},
		{"b", "d2", "out", t0},
	} {
		_, err := f.knowledge.Store(ctx, row.agentID, testutil.NewArtifactBuilder(row.id).
			Type(core.ArtifactDecision).Field("scope", row.scope).Field("owner", row.agentID).At(row.ts).Build())
		require.NoError(t, err)
	}

	sess, err := f.manager.Create(ctx, CreateInput{
		AgentIDs: []string{"a", "b"},
		Rules:    []core.Predicate{core.FieldEquals("scope", "in")},
	})
	require.NoError(t, err)
	_, err = f.manager.Start(ctx, sess.ID)
	require.NoError(t, err)

	conflicts, err := f.manager.DetectConflicts(ctx, sess.ID, "a", "b", core.AlgorithmDefault)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "d1", conflicts[0].Source.ID)
}
