package builder

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisSessionStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSessionStore(client)
}

func TestRedisSessionStore_SequenceNumbers(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	cur, err := store.CurrentSeq(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, cur, "missing key reads as zero")

	first, err := store.NextSeq(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	second, err := store.NextSeq(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second)

	cur, err = store.CurrentSeq(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cur)

	// Sequences are per project.
	other, err := store.NextSeq(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

func TestRedisSessionStore_TouchGetDelete(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	sess, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, sess, "unknown project has no session")

	require.NoError(t, store.Touch(ctx, "p1", StageBuild))

	sess, err = store.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "p1", sess.ProjectID)
	assert.Equal(t, StageBuild, sess.Stage)
	assert.False(t, sess.UpdatedAt.IsZero())

	require.NoError(t, store.Delete(ctx, "p1"))
	sess, err = store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, sess)

	cur, err := store.CurrentSeq(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, cur, "delete clears the sequence too")
}

func TestRedisSessionStore_ListProjectIDs(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	ids, err := store.ListProjectIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.Touch(ctx, "a", StageIdea))
	require.NoError(t, store.Touch(ctx, "b", StagePreview))
	// Sequence keys must not show up as sessions.
	_, err = store.NextSeq(ctx, "c")
	require.NoError(t, err)

	ids, err = store.ListProjectIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	cur, err := store.CurrentSeq(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, cur)

	for want := int64(1); want <= 3; want++ {
		got, err := store.NextSeq(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	require.NoError(t, store.Touch(ctx, "p1", StageIdea))
	sess, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, StageIdea, sess.Stage)

	ids, err := store.ListProjectIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)

	require.NoError(t, store.Delete(ctx, "p1"))
	sess, err = store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, sess)
	cur, err = store.CurrentSeq(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, cur)
}
