package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekartashov/knowsync/core"
	"github.com/ekartashov/knowsync/internal/testutil"
)

// Interface compliance (compile-time assertions)
var (
	_ core.AgentStore     = (*AgentStore)(nil)
	_ core.KnowledgeStore = (*KnowledgeStore)(nil)
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "knowsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestAgentStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	agents := openTestDB(t).Agents()

	agent := testutil.NewAgentBuilder("agent-a").
		Type("planner").
		Strategy(core.StrategyLatestWins).
		Metadata("team", "infra").
		Build()
	require.NoError(t, agents.Save(ctx, agent))

	got, err := agents.Get(ctx, "agent-a")
	require.NoError(t, err)
	assert.Equal(t, "planner", got.Type)
	assert.Equal(t, core.StrategyLatestWins, got.Preferences.ConflictResolution)
	assert.Equal(t, "infra", got.Metadata["team"])

	// Save again is an upsert.
	agent.DisplayName = "Planner A"
	require.NoError(t, agents.Save(ctx, agent))
	got, err = agents.Get(ctx, "agent-a")
	require.NoError(t, err)
	assert.Equal(t, "Planner A", got.DisplayName)

	_, err = agents.Get(ctx, "agent-b")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAgentStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	agents := openTestDB(t).Agents()

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, agents.Save(ctx, testutil.NewAgentBuilder(id).Build()))
	}
	all, err := agents.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID, "ordered by id")

	require.NoError(t, agents.Delete(ctx, "b"))
	assert.ErrorIs(t, agents.Delete(ctx, "b"), core.ErrNotFound)
	all, err = agents.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestKnowledgeStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Knowledge()

	artifact := testutil.NewArtifactBuilder("d1").
		Type(core.ArtifactDecision).
		Field("status", "accepted").
		Build()
	stored, err := store.Store(ctx, "agent-a", artifact)
	require.NoError(t, err)
	assert.Equal(t, "agent-a", stored.AgentID)

	got, err := store.Get(ctx, "agent-a", core.ArtifactDecision, "d1")
	require.NoError(t, err)
	assert.Equal(t, "accepted", got.Content["status"])

	// Upsert under the composite key.
	_, err = store.Store(ctx, "agent-a", testutil.NewArtifactBuilder("d1").Type(core.ArtifactDecision).Field("status", "revised").Build())
	require.NoError(t, err)
	got, err = store.Get(ctx, "agent-a", core.ArtifactDecision, "d1")
	require.NoError(t, err)
	assert.Equal(t, "revised", got.Content["status"])

	_, err = store.Get(ctx, "agent-b", core.ArtifactDecision, "d1")
	assert.ErrorIs(t, err, core.ErrNotFound, "rows are agent scoped")
}

func TestKnowledgeStoreListPushesFiltersIntoQuery(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Knowledge()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, a := range []*core.Artifact{
		testutil.NewArtifactBuilder("d1").Type(core.ArtifactDecision).Field("status", "accepted").At(t0).Build(),
		testutil.NewArtifactBuilder("d2").Type(core.ArtifactDecision).Field("status", "proposed").At(t0.Add(time.Hour)).Build(),
		testutil.NewArtifactBuilder("p1").Type(core.ArtifactProgress).At(t0.Add(2 * time.Hour)).Build(),
	} {
		_, err := store.Store(ctx, "agent-a", a)
		require.NoError(t, err)
	}

	decisions, err := store.List(ctx, "agent-a", core.ListFilter{Types: []core.ArtifactType{core.ArtifactDecision}})
	require.NoError(t, err)
	assert.Len(t, decisions, 2)

	since := t0
	recent, err := store.List(ctx, "agent-a", core.ListFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	accepted, err := store.List(ctx, "agent-a", core.ListFilter{
		Predicates: []core.Predicate{core.FieldEquals("status", "accepted")},
	})
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "d1", accepted[0].ID)
}

func TestKnowledgeStoreDeleteAndHas(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Knowledge()

	_, err := store.Store(ctx, "agent-a", testutil.NewArtifactBuilder("d1").Type(core.ArtifactDecision).Build())
	require.NoError(t, err)

	ok, err := store.Has(ctx, "agent-a", core.ArtifactDecision, "d1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "agent-a", core.ArtifactDecision, "d1"))
	assert.ErrorIs(t, store.Delete(ctx, "agent-a", core.ArtifactDecision, "d1"), core.ErrNotFound)

	ok, err = store.Has(ctx, "agent-a", core.ArtifactDecision, "d1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "knowsync.db")

	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.Knowledge().Store(ctx, "agent-a", testutil.NewArtifactBuilder("d1").Type(core.ArtifactDecision).Build())
	require.NoError(t, err)
	require.NoError(t, db.Agents().Save(ctx, testutil.NewAgentBuilder("agent-a").Build()))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Knowledge().Get(ctx, "agent-a", core.ArtifactDecision, "d1")
	assert.NoError(t, err)
	_, err = db.Agents().Get(ctx, "agent-a")
	assert.NoError(t, err)
}
