package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekartashov/knowsync/core"
	"github.com/ekartashov/knowsync/internal/testutil"
)

// Interface compliance (compile-time assertion)
var _ core.KnowledgeStore = (*InMemoryStore)(nil)

func TestStoreStampsAndIsolates(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	original := testutil.NewArtifactBuilder("d1").Type(core.ArtifactDecision).Field("status", "open").Build()
	stored, err := s.Store(ctx, "agent-a", original)
	require.NoError(t, err)
	assert.Equal(t, "agent-a", stored.AgentID)
	assert.False(t, stored.StoredAt.IsZero())

	// Mutating either the input or the returned copy leaves the store
	// untouched.
	original.Content["status"] = "mutated"
	stored.Content["status"] = "also mutated"
	got, err := s.Get(ctx, "agent-a", core.ArtifactDecision, "d1")
	require.NoError(t, err)
	assert.Equal(t, "open", got.Content["status"])
}

func TestStoreUpsertsByCompositeKey(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_, err := s.Store(ctx, "agent-a", testutil.NewArtifactBuilder("d1").Type(core.ArtifactDecision).Field("v", 1).Build())
	require.NoError(t, err)
	_, err = s.Store(ctx, "agent-a", testutil.NewArtifactBuilder("d1").Type(core.ArtifactDecision).Field("v", 2).Build())
	require.NoError(t, err)
	// Same id under a different type is a distinct artifact.
	_, err = s.Store(ctx, "agent-a", testutil.NewArtifactBuilder("d1").Type(core.ArtifactPattern).Build())
	require.NoError(t, err)

	all, err := s.List(ctx, "agent-a", core.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := s.Get(ctx, "agent-a", core.ArtifactDecision, "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Content["v"])
}

func TestStoreRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_, err := s.Store(ctx, "agent-a", &core.Artifact{Type: core.ArtifactDecision, Timestamp: time.Now()})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, a := range []*core.Artifact{
		testutil.NewArtifactBuilder("d1").Type(core.ArtifactDecision).Field("status", "accepted").At(t0).Build(),
		testutil.NewArtifactBuilder("d2").Type(core.ArtifactDecision).Field("status", "proposed").At(t0.Add(time.Hour)).Build(),
		testutil.NewArtifactBuilder("p1").Type(core.ArtifactProgress).Field("done", true).At(t0.Add(2 * time.Hour)).Build(),
	} {
		_, err := s.Store(ctx, "agent-a", a)
		require.NoError(t, err)
	}

	decisions, err := s.List(ctx, "agent-a", core.ListFilter{Types: []core.ArtifactType{core.ArtifactDecision}})
	require.NoError(t, err)
	assert.Len(t, decisions, 2)

	since := t0
	recent, err := s.List(ctx, "agent-a", core.ListFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2, "since is strictly after")

	accepted, err := s.List(ctx, "agent-a", core.ListFilter{
		Predicates: []core.Predicate{core.FieldEquals("status", "accepted")},
	})
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "d1", accepted[0].ID)

	empty, err := s.List(ctx, "agent-unknown", core.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDeleteAndHas(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_, err := s.Store(ctx, "agent-a", testutil.NewArtifactBuilder("d1").Type(core.ArtifactDecision).Build())
	require.NoError(t, err)

	ok, err := s.Has(ctx, "agent-a", core.ArtifactDecision, "d1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "agent-a", core.ArtifactDecision, "d1"))
	ok, err = s.Has(ctx, "agent-a", core.ArtifactDecision, "d1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.Delete(ctx, "agent-a", core.ArtifactDecision, "d1"), core.ErrNotFound)
	_, err = s.Get(ctx, "agent-a", core.ArtifactDecision, "d1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
