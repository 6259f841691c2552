package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hetulpatel/crossarb/internal/book"
)

// ErrNoSnapshot is returned when a venue has no stored book for a symbol.
var ErrNoSnapshot = errors.New("no order book snapshot")

// KV is the part of *redis.Client the connector uses.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// snapshot is the stored form of a book: ladders as [price, quantity] strings.
type snapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      book.RawSide `json:"bids"`
	Asks      book.RawSide `json:"asks"`
	UpdatedAt int64        `json:"updated_at"`
}

// RedisConnector serves one venue's books from snapshots that a venue feed
// writes under "<prefix>:<venue>:<SYMBOL>".
type RedisConnector struct {
	kv     KV
	venue  string
	prefix string
	maxAge time.Duration
	now    func() time.Time
}

// NewRedisClient builds a go-redis client for the snapshot store.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), nil
}

// NewRedisConnector serves venue from kv. Snapshots older than maxAge are
// treated as missing; maxAge <= 0 disables the check.
func NewRedisConnector(kv KV, venue, prefix string, maxAge time.Duration) *RedisConnector {
	if prefix == "" {
		prefix = "orderbook"
	}
	return &RedisConnector{kv: kv, venue: normalizeVenue(venue), prefix: prefix, maxAge: maxAge, now: time.Now}
}

func (c *RedisConnector) key(symbol string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, c.venue, strings.ToUpper(symbol))
}

func (c *RedisConnector) OrderBook(ctx context.Context, symbol string) (book.OrderBook, error) {
	raw, err := c.kv.Get(ctx, c.key(symbol)).Bytes()
	if err == redis.Nil {
		return book.OrderBook{}, ErrNoSnapshot
	}
	if err != nil {
		return book.OrderBook{}, err
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return book.OrderBook{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if c.maxAge > 0 && snap.UpdatedAt > 0 {
		age := c.now().Sub(time.Unix(snap.UpdatedAt, 0))
		if age > c.maxAge {
			return book.OrderBook{}, fmt.Errorf("%w: snapshot is %s old", ErrNoSnapshot, age.Round(time.Second))
		}
	}

	bids, err := book.ParseSide(snap.Bids)
	if err != nil {
		return book.OrderBook{}, fmt.Errorf("bids: %w", err)
	}
	asks, err := book.ParseSide(snap.Asks)
	if err != nil {
		return book.OrderBook{}, fmt.Errorf("asks: %w", err)
	}
	return book.OrderBook{Symbol: symbol, Venue: c.venue, Bids: bids, Asks: asks}, nil
}

// Store writes a snapshot of ob. Feeds call this; ttl <= 0 keeps it forever.
func (c *RedisConnector) Store(ctx context.Context, ob book.OrderBook, ttl time.Duration) error {
	payload, err := json.Marshal(snapshot{
		Symbol:    ob.Symbol,
		Bids:      book.FormatSide(ob.Bids),
		Asks:      book.FormatSide(ob.Asks),
		UpdatedAt: c.now().Unix(),
	})
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, c.key(ob.Symbol), payload, ttl).Err()
}
