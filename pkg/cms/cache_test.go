package cms

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleads/portal/pkg/storage"
)

func testRedis(t *testing.T) *storage.RedisClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return storage.NewRedisClientFromExisting(client, storage.DefaultConfig())
}

func TestCacheGetSet(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(100, time.Minute, testRedis(t), nil)

	resolved := []*ResolvedField{{FieldID: 10, Key: "title", Values: map[string]*string{"en": strPtr("Hello")}}}

	_, ok := cache.Get(ctx, 7, 1, nil)
	assert.False(t, ok)

	cache.Set(ctx, 7, 1, nil, resolved)

	got, ok := cache.Get(ctx, 7, 1, nil)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Hello", *got[0].Values["en"])
}

func TestCacheSplitKeysAreDistinct(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(100, time.Minute, testRedis(t), nil)

	splitID := int64(3)
	cache.Set(ctx, 7, 1, nil, []*ResolvedField{{FieldID: 10, Key: "default"}})
	cache.Set(ctx, 7, 1, &splitID, []*ResolvedField{{FieldID: 10, Key: "split"}})

	got, ok := cache.Get(ctx, 7, 1, nil)
	require.True(t, ok)
	assert.Equal(t, "default", got[0].Key)

	got, ok = cache.Get(ctx, 7, 1, &splitID)
	require.True(t, ok)
	assert.Equal(t, "split", got[0].Key)
}

func TestCacheInvalidateProject(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(100, time.Minute, testRedis(t), nil)

	cache.Set(ctx, 7, 1, nil, []*ResolvedField{{FieldID: 10}})
	cache.InvalidateProject(ctx, 7)

	_, ok := cache.Get(ctx, 7, 1, nil)
	assert.False(t, ok)
}

func TestCacheRedisBackfillsMemory(t *testing.T) {
	ctx := context.Background()
	rc := testRedis(t)

	writer := NewCache(100, time.Minute, rc, nil)
	writer.Set(ctx, 7, 1, nil, []*ResolvedField{{FieldID: 10, Key: "title"}})

	// A fresh instance with a cold memory tier still hits via Redis
	reader := NewCache(100, time.Minute, rc, nil)
	got, ok := reader.Get(ctx, 7, 1, nil)
	require.True(t, ok)
	assert.Equal(t, "title", got[0].Key)
}
