package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *RedisClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisClientFromExisting(client, DefaultConfig())
}

func TestRedisJSONRoundTrip(t *testing.T) {
	c := newTestRedis(t)
	defer c.Close()
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	err := c.SetJSON(ctx, "cms:1:home", payload{Name: "home", Count: 3}, time.Minute)
	require.NoError(t, err)

	var got payload
	found, err := c.GetJSON(ctx, "cms:1:home", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "home", got.Name)
	assert.Equal(t, 3, got.Count)
}

func TestRedisGetJSONMiss(t *testing.T) {
	c := newTestRedis(t)
	defer c.Close()

	var got map[string]interface{}
	found, err := c.GetJSON(context.Background(), "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisDeleteByPattern(t *testing.T) {
	c := newTestRedis(t)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "cms:1:home", "a", time.Minute))
	require.NoError(t, c.SetJSON(ctx, "cms:1:about", "b", time.Minute))
	require.NoError(t, c.SetJSON(ctx, "cms:2:home", "c", time.Minute))

	require.NoError(t, c.DeleteByPattern(ctx, "cms:1:*"))

	var got string
	found, err := c.GetJSON(ctx, "cms:1:home", &got)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = c.GetJSON(ctx, "cms:2:home", &got)
	require.NoError(t, err)
	assert.True(t, found)
}
