package session

import (
	"context"
	"testing"
	"time"

	"dialogue-engine/internal/common/config"
	"dialogue-engine/internal/common/database"
	"dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := database.NewRedis(config.RedisConfig{Address: mr.Addr()}, "test")
	t.Cleanup(func() { rdb.Close() })

	store := NewRedisStore(rdb, ttl, logger.NewTestLogger(t))
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store, mr
}

func TestRedisStore_SessionLifecycle(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	ctx := context.Background()

	first, err := store.CreateSession(ctx, map[string]interface{}{"user": "alice"})
	require.NoError(t, err)
	second, err := store.CreateSession(ctx, nil)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:session:"+first.ID))

	require.NoError(t, store.SaveMessage(ctx, first.ID, "user", "hi", nil))
	require.NoError(t, store.SaveMessage(ctx, first.ID, "assistant", "hello", map[string]interface{}{"source": "System"}))

	sessions, err := store.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID, "newest first")
	assert.Equal(t, 2, sessions[1].MessageCount)
	assert.Equal(t, "alice", sessions[1].Metadata["user"])

	require.NoError(t, store.DeleteSession(ctx, first.ID))
	assert.False(t, mr.Exists("test:session:"+first.ID+":messages"))

	_, err = store.GetSession(ctx, first.ID)
	assert.Equal(t, errors.ErrCodeSessionNotFound, codeOf(t, err))
	assert.Equal(t, errors.ErrCodeSessionNotFound, codeOf(t, store.DeleteSession(ctx, first.ID)))
}

func TestRedisStore_HistoryWindow(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, nil)
	require.NoError(t, err)
	for _, content := range []string{"one", "two", "three", "four"} {
		require.NoError(t, store.SaveMessage(ctx, sess.ID, "user", content, nil))
	}

	all, err := store.GetHistory(ctx, sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "one", all[0].Content)

	last, err := store.GetHistory(ctx, sess.ID, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "three", last[0].Content)
	assert.Equal(t, "four", last[1].Content)
	assert.Greater(t, last[1].ID, last[0].ID)
}

func TestRedisStore_SaveMessageUnknownSession(t *testing.T) {
	store, _ := newRedisStore(t, 0)

	err := store.SaveMessage(context.Background(), "missing", "user", "hi", nil)
	assert.Equal(t, errors.ErrCodeSessionNotFound, codeOf(t, err))

	_, err = store.GetHistory(context.Background(), "missing", 5)
	assert.Equal(t, errors.ErrCodeSessionNotFound, codeOf(t, err))
}

func TestRedisStore_SearchNewestFirst(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	a, _ := store.CreateSession(ctx, nil)
	b, _ := store.CreateSession(ctx, nil)
	require.NoError(t, store.SaveMessage(ctx, a.ID, "user", "Redmine issue 42", nil))
	require.NoError(t, store.SaveMessage(ctx, b.ID, "user", "weather today", nil))
	require.NoError(t, store.SaveMessage(ctx, b.ID, "assistant", "see redmine #42", nil))

	hits, err := store.SearchMessages(ctx, "REDMINE", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "see redmine #42", hits[0].Content)
	assert.Equal(t, "Redmine issue 42", hits[1].Content)

	hits, err = store.SearchMessages(ctx, "redmine", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveMessage(ctx, sess.ID, "user", "hi", nil))

	assert.Equal(t, time.Hour, mr.TTL("test:session:"+sess.ID))
	assert.Equal(t, time.Hour, mr.TTL("test:session:"+sess.ID+":messages"))

	mr.FastForward(2 * time.Hour)
	sessions, err := store.ListSessions(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
