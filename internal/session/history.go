package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"docqa/internal/config"
	"docqa/internal/models"
)

// HistoryStore keeps the turns of each session in order.
type HistoryStore interface {
	Append(ctx context.Context, sessionID string, turn models.Turn) error
	List(ctx context.Context, sessionID string) ([]models.Turn, error)
	Clear(ctx context.Context, sessionID string) error
}

// NewHistoryStore builds the store named by cfg.Session.HistoryBackend.
func NewHistoryStore(ctx context.Context, cfg *config.Config) (HistoryStore, error) {
	switch cfg.Session.HistoryBackend {
	case "redis":
		client, err := NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisHistory(client, cfg.Session.MaxHistory, cfg.Redis.TTL), nil
	case "memory", "":
		return NewMemoryHistory(cfg.Session.MaxHistory), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Session.HistoryBackend)
	}
}

// MemoryHistory keeps at most max turns per session; max <= 0 keeps all.
type MemoryHistory struct {
	mu    sync.RWMutex
	max   int
	turns map[string][]models.Turn
}

func NewMemoryHistory(max int) *MemoryHistory {
	return &MemoryHistory{max: max, turns: make(map[string][]models.Turn)}
}

func (h *MemoryHistory) Append(_ context.Context, sessionID string, turn models.Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	turns := append(h.turns[sessionID], turn)
	if h.max > 0 && len(turns) > h.max {
		turns = append([]models.Turn(nil), turns[len(turns)-h.max:]...)
	}
	h.turns[sessionID] = turns
	return nil
}

func (h *MemoryHistory) List(_ context.Context, sessionID string) ([]models.Turn, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]models.Turn{}, h.turns[sessionID]...), nil
}

func (h *MemoryHistory) Clear(_ context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turns, sessionID)
	return nil
}

func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis failed: %w", err)
	}
	return client, nil
}

// RedisHistory stores each session as a list of JSON turns that expires after ttl.
type RedisHistory struct {
	client *redis.Client
	max    int
	ttl    time.Duration
}

func NewRedisHistory(client *redis.Client, max int, ttl time.Duration) *RedisHistory {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisHistory{client: client, max: max, ttl: ttl}
}

func (h *RedisHistory) Append(ctx context.Context, sessionID string, turn models.Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn failed: %w", err)
	}
	key := h.historyKey(sessionID)
	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		if h.max > 0 {
			pipe.LTrim(ctx, key, int64(-h.max), -1)
		}
		pipe.Expire(ctx, key, h.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append history failed: %w", err)
	}
	return nil
}

func (h *RedisHistory) List(ctx context.Context, sessionID string) ([]models.Turn, error) {
	raw, err := h.client.LRange(ctx, h.historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get history failed: %w", err)
	}
	turns := make([]models.Turn, 0, len(raw))
	for _, item := range raw {
		var turn models.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal cached turn failed: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (h *RedisHistory) Clear(ctx context.Context, sessionID string) error {
	if err := h.client.Del(ctx, h.historyKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func (h *RedisHistory) historyKey(sessionID string) string {
	return "docqa:history:" + sessionID
}
