package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactValidate(t *testing.T) {
	now := time.Now().UTC()
	valid := &Artifact{ID: "d1", Type: ArtifactDecision, Timestamp: now}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name     string
		artifact *Artifact
	}{
		{"nil", nil},
		{"missing id", &Artifact{Type: ArtifactDecision, Timestamp: now}},
		{"unknown type", &Artifact{ID: "d1", Type: "note", Timestamp: now}},
		{"zero timestamp", &Artifact{ID: "d1", Type: ArtifactDecision}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.artifact.Validate()
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestArtifactCloneIsolation(t *testing.T) {
	a := &Artifact{
		ID:        "d1",
		Type:      ArtifactDecision,
		Content:   map[string]any{"nested": map[string]any{"k": "v"}},
		Timestamp: time.Now().UTC(),
		SyncInfo:  &SyncInfo{SyncedFrom: "a"},
	}
	clone := a.Clone()
	clone.Content["nested"].(map[string]any)["k"] = "mutated"
	clone.SyncInfo.SyncedFrom = "b"

	assert.Equal(t, "v", a.Content["nested"].(map[string]any)["k"])
	assert.Equal(t, "a", a.SyncInfo.SyncedFrom)
}

func TestListFilterMatch(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := &Artifact{
		ID:        "d1",
		Type:      ArtifactDecision,
		Content:   map[string]any{"status": "accepted", "meta": map[string]any{"owner": "planner"}},
		Timestamp: t0,
	}

	assert.True(t, ListFilter{}.Match(a))
	assert.True(t, ListFilter{Types: []ArtifactType{ArtifactDecision, ArtifactPattern}}.Match(a))
	assert.False(t, ListFilter{Types: []ArtifactType{ArtifactPattern}}.Match(a))

	before := t0.Add(-time.Hour)
	assert.True(t, ListFilter{Since: &before}.Match(a))
	assert.False(t, ListFilter{Since: &t0}.Match(a), "since is strictly after")

	assert.True(t, ListFilter{Predicates: []Predicate{FieldEquals("meta.owner", "planner")}}.Match(a))
	assert.False(t, ListFilter{Predicates: []Predicate{
		FieldEquals("meta.owner", "planner"),
		FieldExists("missing"),
	}}.Match(a), "predicates are conjunctive")
}

func TestPredicateMatches(t *testing.T) {
	content := map[string]any{"a": map[string]any{"b": 1}, "flag": true}

	assert.True(t, FieldEquals("a.b", 1).Matches(content))
	assert.False(t, FieldEquals("a.b", 2).Matches(content))
	assert.True(t, FieldExists("flag").Matches(content))
	assert.False(t, FieldExists("a.c").Matches(content))
	assert.True(t, CustomFn(func(c map[string]any) bool { return c["flag"] == true }).Matches(content))
	assert.False(t, Predicate{Kind: PredicateCustom}.Matches(content), "nil custom fn matches nothing")
	assert.False(t, Predicate{Kind: "unknown"}.Matches(content))
}

func TestAgentValidate(t *testing.T) {
	require.NoError(t, (&Agent{ID: "a", Type: "worker"}).Validate())
	assert.ErrorIs(t, (&Agent{Type: "worker"}).Validate(), ErrInvalidInput)
	assert.ErrorIs(t, (&Agent{ID: "a"}).Validate(), ErrInvalidInput)
}

func TestSessionStatusTerminalAndActive(t *testing.T) {
	assert.True(t, SessionCompleted.Terminal())
	assert.True(t, SessionCancelled.Terminal())
	assert.False(t, SessionRunning.Terminal())

	assert.True(t, SessionRunning.Active())
	assert.True(t, SessionConflictDetected.Active())
	assert.False(t, SessionCreated.Active())
	assert.False(t, SessionCompleted.Active())
}

func TestSyncSessionLifecycle(t *testing.T) {
	s := NewSyncSession("", []string{"a", "b"}, SyncPush)
	require.NotEmpty(t, s.ID)
	assert.Equal(t, SessionCreated, s.Status)
	assert.True(t, s.HasParticipant("a"))
	assert.False(t, s.HasParticipant("c"))

	s.SetStatus(SessionRunning)
	require.NotNil(t, s.StartedAt)
	started := *s.StartedAt

	c := &Conflict{ID: NewID(), Source: &Artifact{ID: "d1", Type: ArtifactDecision}, Target: &Artifact{ID: "d1", Type: ArtifactDecision}, Status: ConflictDetected}
	s.AddConflicts(c)
	assert.Equal(t, 1, s.Progress.ConflictsDetected)
	assert.Equal(t, 1, s.UnresolvedConflicts())
	assert.Same(t, c, s.FindConflict(c.ID))
	assert.Nil(t, s.FindConflict("nope"))

	s.SetStatus(SessionRunning)
	assert.Equal(t, started, *s.StartedAt, "StartedAt is stamped once")

	s.SetStatus(SessionCompleted)
	require.NotNil(t, s.CompletedAt)
}

func TestSyncSessionCloneIsolation(t *testing.T) {
	s := NewSyncSession("s1", []string{"a", "b"}, SyncPull)
	s.AddConflicts(&Conflict{
		ID:     "c1",
		Source: &Artifact{ID: "d1", Type: ArtifactDecision, Content: map[string]any{"k": "v"}},
		Target: &Artifact{ID: "d1", Type: ArtifactDecision},
		Status: ConflictDetected,
	})
	clone := s.Clone()
	clone.AgentIDs[0] = "z"
	clone.Conflicts[0].Source.Content["k"] = "mutated"

	assert.Equal(t, "a", s.AgentIDs[0])
	assert.Equal(t, "v", s.Conflicts[0].Source.Content["k"])
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrInvalidInput, ErrNotFound, ErrAlreadyExists, ErrProtectedField,
		ErrAlreadyResolved, ErrUnknownResolution, ErrMissingCustomResolution,
		ErrConflictsPending, ErrInvalidTransition, ErrNotParticipant,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}
