package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hetulpatel/crossarb/internal/book"
	"github.com/hetulpatel/crossarb/internal/logging"
)

// FeedMessage is one venue book update as published on the order book topic.
type FeedMessage struct {
	Venue  string       `json:"venue"`
	Symbol string       `json:"symbol"`
	Bids   book.RawSide `json:"bids"`
	Asks   book.RawSide `json:"asks"`
}

// DecodeFeed parses and validates a feed message.
func DecodeFeed(payload []byte) (book.OrderBook, error) {
	var msg FeedMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return book.OrderBook{}, fmt.Errorf("decode feed message: %w", err)
	}
	if msg.Venue == "" || msg.Symbol == "" {
		return book.OrderBook{}, fmt.Errorf("feed message needs venue and symbol")
	}
	bids, err := book.ParseSide(msg.Bids)
	if err != nil {
		return book.OrderBook{}, fmt.Errorf("%s %s bids: %w", msg.Venue, msg.Symbol, err)
	}
	asks, err := book.ParseSide(msg.Asks)
	if err != nil {
		return book.OrderBook{}, fmt.Errorf("%s %s asks: %w", msg.Venue, msg.Symbol, err)
	}
	return book.OrderBook{Symbol: msg.Symbol, Venue: normalizeVenue(msg.Venue), Bids: bids, Asks: asks}, nil
}

// Feeder stores feed messages as snapshots the RedisConnector can serve.
type Feeder struct {
	kv     KV
	prefix string
	ttl    time.Duration

	connectors map[string]*RedisConnector
}

func NewFeeder(kv KV, prefix string, ttl time.Duration) *Feeder {
	return &Feeder{kv: kv, prefix: prefix, ttl: ttl, connectors: make(map[string]*RedisConnector)}
}

// Handle decodes one message and stores it. It has the workers.Handler shape
// and is only called from one goroutine per Feeder.
func (f *Feeder) Handle(ctx context.Context, payload []byte) error {
	ob, err := DecodeFeed(payload)
	if err != nil {
		return err
	}
	conn, ok := f.connectors[ob.Venue]
	if !ok {
		conn = NewRedisConnector(f.kv, ob.Venue, f.prefix, 0)
		f.connectors[ob.Venue] = conn
	}
	if err := conn.Store(ctx, ob, f.ttl); err != nil {
		return fmt.Errorf("store %s %s: %w", ob.Venue, ob.Symbol, err)
	}
	logging.Debugf("[marketdata] stored %s %s (%d bids, %d asks)", ob.Venue, ob.Symbol, len(ob.Bids), len(ob.Asks))
	return nil
}
