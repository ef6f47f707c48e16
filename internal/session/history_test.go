package session

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
	"docqa/internal/models"
)

func TestMemoryHistory(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory(0)

	for i := range 3 {
		require.NoError(t, h.Append(ctx, "a", models.Turn{Question: fmt.Sprint(i)}))
	}
	require.NoError(t, h.Append(ctx, "b", models.Turn{Question: "other"}))

	turns, err := h.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "0", turns[0].Question)

	turns[0].Question = "mutated"
	again, err := h.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "0", again[0].Question)

	require.NoError(t, h.Clear(ctx, "a"))
	turns, err = h.List(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, turns)

	turns, err = h.List(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestNewHistoryStore(t *testing.T) {
	cfg := config.Default()
	store, err := NewHistoryStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryHistory{}, store)

	cfg.Session.HistoryBackend = "etcd"
	_, err = NewHistoryStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRedisHistory(t *testing.T) {
	addr := os.Getenv("DOCQA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DOCQA_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, &config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer client.Close()

	h := NewRedisHistory(client, 2, time.Minute)
	id := fmt.Sprintf("test-%d", time.Now().UnixNano())
	defer h.Clear(ctx, id)

	for _, q := range []string{"one", "two", "three"} {
		require.NoError(t, h.Append(ctx, id, models.Turn{
			Question: q,
			Answer:   "a",
			Sources:  []models.Chunk{{Text: "t", Source: "f.pdf", Page: models.PageRef(2)}},
		}))
	}

	turns, err := h.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "two", turns[0].Question)
	require.NotNil(t, turns[1].Sources[0].Page)
	assert.Equal(t, 2, *turns[1].Sources[0].Page)

	ttl, err := client.TTL(ctx, h.historyKey(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, h.Clear(ctx, id))
	turns, err = h.List(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, turns)
}
