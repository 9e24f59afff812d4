package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekartashov/knowsync/core"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	sess := core.NewSyncSession("s1", []string{"a", "b"}, core.SyncPush)
	require.NoError(t, s.Create(ctx, sess))
	assert.ErrorIs(t, s.Create(ctx, sess), core.ErrAlreadyExists)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	got.AgentIDs[0] = "mutated"

	again, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.AgentIDs[0], "Get returns clones")

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInMemoryStoreUpdateCommitsOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.Create(ctx, core.NewSyncSession("s1", []string{"a", "b"}, core.SyncPush)))

	boom := errors.New("boom")
	_, err := s.Update(ctx, "s1", func(sess *core.SyncSession) error {
		sess.SetStatus(core.SessionRunning)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, core.SessionCreated, got.Status, "failed update is discarded")

	updated, err := s.Update(ctx, "s1", func(sess *core.SyncSession) error {
		sess.SetStatus(core.SessionRunning)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, core.SessionRunning, updated.Status)
}

func TestInMemoryStoreListOrder(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	for _, id := range []string{"s2", "s1", "s3"} {
		sess := core.NewSyncSession(id, []string{"a", "b"}, core.SyncPull)
		require.NoError(t, s.Create(ctx, sess))
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		ordered := prev.CreatedAt.Before(cur.CreatedAt) ||
			(prev.CreatedAt.Equal(cur.CreatedAt) && prev.ID < cur.ID)
		assert.True(t, ordered, "sessions ordered by creation time then id")
	}
}
