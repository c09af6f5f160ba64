package conversation

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	store, err := NewRedisStore(StoreConfig{
		Type: StoreTypeRedis,
		Redis: RedisConfig{
			Host:     mr.Host(),
			Port:     port,
			PoolSize: 2,
		},
	})
	require.NoError(t, err)

	return mr, store
}

func TestRedisStore_CreateAndGet(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	conv := &Conversation{Title: "redis backed"}
	require.NoError(t, store.Create(ctx, conv))
	assert.NotEmpty(t, conv.ID)

	got, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, "redis backed", got.Title)
}

func TestRedisStore_DefaultKeyPrefix(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	conv := &Conversation{}
	require.NoError(t, store.Create(ctx, conv))

	assert.True(t, mr.Exists("councilflow:conversation:data:"+conv.ID))
	assert.True(t, mr.Exists("councilflow:conversation:all"))
}

func TestRedisStore_CreateDuplicate(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Conversation{ID: "fixed-id"}))
	err := store.Create(ctx, &Conversation{ID: "fixed-id"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRedisStore_GetMissing(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_AppendRound(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	conv := &Conversation{}
	require.NoError(t, store.Create(ctx, conv))
	require.NoError(t, store.AppendRound(ctx, conv.ID, testRound("q-1")))
	require.NoError(t, store.AppendRound(ctx, conv.ID, testRound("q-2")))

	got, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Rounds, 2)
	assert.Equal(t, "q-1", got.Rounds[0].Question)
	assert.Equal(t, "q-2", got.Rounds[1].Question)
	require.NotNil(t, got.Rounds[0].Synthesis)
	assert.Equal(t, "final", got.Rounds[0].Synthesis.Answer)

	err = store.AppendRound(ctx, "nope", testRound("q"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_SetTitle(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	conv := &Conversation{}
	require.NoError(t, store.Create(ctx, conv))
	require.NoError(t, store.SetTitle(ctx, conv.ID, "renamed"))

	got, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)

	err = store.SetTitle(ctx, "nope", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ListOrder(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	first := &Conversation{Title: "first"}
	second := &Conversation{Title: "second"}
	for _, c := range []*Conversation{first, second} {
		require.NoError(t, store.Create(ctx, c))
		time.Sleep(2 * time.Millisecond)
	}

	// Touching the older conversation bumps its index score.
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, store.AppendRound(ctx, first.ID, testRound("q")))

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, first.ID, summaries[0].ID)
	assert.Equal(t, 1, summaries[0].RoundCount)
	assert.Equal(t, second.ID, summaries[1].ID)
}

func TestRedisStore_Delete(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	conv := &Conversation{}
	require.NoError(t, store.Create(ctx, conv))
	require.NoError(t, store.Delete(ctx, conv.ID))

	_, err := store.Get(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists("councilflow:conversation:data:"+conv.ID))

	err = store.Delete(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Ping(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}

func TestNewRedisStore_ConnectFailure(t *testing.T) {
	_, err := NewRedisStore(StoreConfig{
		Type: StoreTypeRedis,
		Redis: RedisConfig{
			Host: "127.0.0.1",
			Port: 1, // nothing listens here
		},
	})
	assert.Error(t, err)
}
