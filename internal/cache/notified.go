package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NotifiedEntry is what the notifier remembers about a symbol it announced.
type NotifiedEntry struct {
	Digest    string    `json:"digest"`
	FirstSeen time.Time `json:"first_seen"`
	SentAt    time.Time `json:"sent_at"`
}

// NotifiedCache remembers announced opportunities per symbol so restarts and
// repeated batches do not re-send the same message.
type NotifiedCache interface {
	Get(ctx context.Context, symbol string) (*NotifiedEntry, bool, error)
	Set(ctx context.Context, symbol string, entry NotifiedEntry) error
	Delete(ctx context.Context, symbol string) error
	Close() error
}

// Client is the part of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

type redisNotifiedCache struct {
	client Client
	ttl    time.Duration
	prefix string
}

// NewRedisNotifiedCache connects to addr. Entries expire after ttl.
func NewRedisNotifiedCache(addr, password string, db int, ttl time.Duration, prefix string) (NotifiedCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewNotifiedCache(client, ttl, prefix), nil
}

// NewNotifiedCache wraps an existing client.
func NewNotifiedCache(client Client, ttl time.Duration, prefix string) NotifiedCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if prefix == "" {
		prefix = "notified"
	}
	return &redisNotifiedCache{client: client, ttl: ttl, prefix: prefix}
}

func (c *redisNotifiedCache) key(symbol string) string {
	return fmt.Sprintf("%s:%s", c.prefix, symbol)
}

func (c *redisNotifiedCache) Get(ctx context.Context, symbol string) (*NotifiedEntry, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, c.key(symbol)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entry NotifiedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, err
	}
	return &entry, true, nil
}

func (c *redisNotifiedCache) Set(ctx context.Context, symbol string, entry NotifiedEntry) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(symbol), payload, c.ttl).Err()
}

func (c *redisNotifiedCache) Delete(ctx context.Context, symbol string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key(symbol)).Err()
}

func (c *redisNotifiedCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Memory is an in-process NotifiedCache, used when no Redis is configured.
type Memory struct {
	entries map[string]NotifiedEntry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]NotifiedEntry)}
}

func (m *Memory) Get(_ context.Context, symbol string) (*NotifiedEntry, bool, error) {
	e, ok := m.entries[symbol]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (m *Memory) Set(_ context.Context, symbol string, entry NotifiedEntry) error {
	m.entries[symbol] = entry
	return nil
}

func (m *Memory) Delete(_ context.Context, symbol string) error {
	delete(m.entries, symbol)
	return nil
}

func (m *Memory) Close() error { return nil }
