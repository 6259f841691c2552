package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/book"
	"github.com/hetulpatel/crossarb/internal/models"
)

type memKV struct {
	data map[string]string
	err  error
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (m *memKV) Get(_ context.Context, key string) *redis.StringCmd {
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func TestRedisConnectorRoundTrip(t *testing.T) {
	kv := newMemKV()
	conn := NewRedisConnector(kv, "MEXC", "", 0)
	ctx := context.Background()

	ob := book.OrderBook{
		Symbol: "abc",
		Bids:   book.Side{book.NewLevel(9.5, 2)},
		Asks:   book.Side{book.NewLevel(10, 1), book.NewLevel(10.5, 3)},
	}
	require.NoError(t, conn.Store(ctx, ob, time.Minute))
	require.Contains(t, kv.data, "orderbook:mexc:ABC")

	got, err := conn.OrderBook(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "mexc", got.Venue)
	require.Len(t, got.Asks, 2)
	require.Equal(t, "10.5", got.Asks[1].Price.String())
	require.Equal(t, "2", got.Bids[0].Quantity.String())
}

func TestRedisConnectorMissingAndStale(t *testing.T) {
	kv := newMemKV()
	conn := NewRedisConnector(kv, "gate", "ob", time.Minute)
	ctx := context.Background()

	_, err := conn.OrderBook(ctx, "XYZ")
	require.ErrorIs(t, err, ErrNoSnapshot)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	conn.now = func() time.Time { return base }
	require.NoError(t, conn.Store(ctx, book.OrderBook{Symbol: "XYZ"}, 0))

	conn.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = conn.OrderBook(ctx, "XYZ")
	require.ErrorIs(t, err, ErrNoSnapshot)

	kv.err = errors.New("connection refused")
	_, err = conn.OrderBook(ctx, "XYZ")
	require.EqualError(t, err, "connection refused")
}

func TestRedisConnectorRejectsMalformedLadder(t *testing.T) {
	kv := newMemKV()
	kv.data["orderbook:gate:BAD"] = `{"symbol":"BAD","bids":[["x","1"]],"asks":[]}`
	_, err := NewRedisConnector(kv, "gate", "", 0).OrderBook(context.Background(), "BAD")
	require.ErrorIs(t, err, book.ErrMalformedLevel)
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(" Gate ", ConnectorFunc(func(context.Context, string) (book.OrderBook, error) {
		return book.OrderBook{Symbol: "A"}, nil
	}))
	r.Register("mexc", ConnectorFunc(func(context.Context, string) (book.OrderBook, error) {
		return book.OrderBook{}, nil
	}))

	require.Equal(t, []string{"gate", "mexc"}, r.Venues())
	ob, err := r.OrderBook(context.Background(), "GATE", "A")
	require.NoError(t, err)
	require.Equal(t, "gate", ob.Venue)

	_, err = r.OrderBook(context.Background(), "binance", "A")
	require.ErrorIs(t, err, ErrUnknownVenue)
}

func TestEnrichFillsMissingBooks(t *testing.T) {
	r := NewRegistry()
	r.Register("mexc", ConnectorFunc(func(_ context.Context, symbol string) (book.OrderBook, error) {
		return book.OrderBook{Symbol: symbol, Asks: book.Side{book.NewLevel(100, 2)}}, nil
	}))
	r.Register("gate", ConnectorFunc(func(_ context.Context, symbol string) (book.OrderBook, error) {
		return book.OrderBook{Symbol: symbol, Bids: book.Side{book.NewLevel(103, 1)}}, nil
	}))

	in := []models.Candidate{
		{Symbol: "AAA", Analytics: models.Analytics{Source: "mexc", Destination: "gate"}},
		{Symbol: "BBB", Analytics: models.Analytics{Source: "mexc", Destination: "kucoin"}},
		{Symbol: "CCC", Analytics: models.Analytics{Source: "okx", Destination: "kucoin"}},
	}
	out := NewEnricher(r, time.Second).Enrich(context.Background(), in)

	require.Nil(t, in[0].OrderBooks, "input is not modified")
	require.Len(t, out, 3)

	rec, err := models.Build(out[0], time.Unix(0, 0))
	require.NoError(t, err)
	require.Equal(t, 1.0, rec.Equilibrium.MatchedQuantity)
	require.Equal(t, 3.0, rec.Equilibrium.ProfitAbsolute)

	require.NotNil(t, out[1].OrderBooks.Source)
	require.Nil(t, out[1].OrderBooks.Destination)
	_, err = models.Build(out[1], time.Unix(0, 0))
	require.ErrorIs(t, err, models.ErrMissingOrderBook)

	require.Nil(t, out[2].OrderBooks)
}

func TestEnrichKeepsAttachedBooks(t *testing.T) {
	calls := 0
	r := NewRegistry()
	r.Register("mexc", ConnectorFunc(func(context.Context, string) (book.OrderBook, error) {
		calls++
		return book.OrderBook{}, nil
	}))
	c := models.Candidate{
		Symbol:    "AAA",
		Analytics: models.Analytics{Source: "mexc", Destination: "mexc"},
		OrderBooks: &models.OrderBooks{
			Source:      &models.RawBook{},
			Destination: &models.RawBook{},
		},
	}
	NewEnricher(r, 0).Enrich(context.Background(), []models.Candidate{c})
	require.Zero(t, calls)
}

func TestEnrichFetchesConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	slow := ConnectorFunc(func(ctx context.Context, symbol string) (book.OrderBook, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return book.OrderBook{}, ctx.Err()
		}
		return book.OrderBook{Symbol: symbol, Asks: book.Side{book.NewLevel(1, 1)}, Bids: book.Side{book.NewLevel(2, 1)}}, nil
	})
	r := NewRegistry()
	r.Register("mexc", slow)
	r.Register("gate", slow)

	in := make([]models.Candidate, 50)
	for i := range in {
		in[i] = models.Candidate{
			Symbol:    fmt.Sprintf("S%02d", i),
			Analytics: models.Analytics{Source: "mexc", Destination: "gate"},
		}
	}

	start := time.Now()
	out := NewEnricher(r, 2*time.Second).Enrich(context.Background(), in)
	elapsed := time.Since(start)

	require.Less(t, elapsed, time.Second)
	require.Greater(t, peak.Load(), int32(1))
	for _, c := range out {
		require.NotNil(t, c.OrderBooks)
		require.NotNil(t, c.OrderBooks.Source)
		require.NotNil(t, c.OrderBooks.Destination)
	}
}

func TestEnrichStopsAtDeadline(t *testing.T) {
	r := NewRegistry()
	r.Register("mexc", ConnectorFunc(func(ctx context.Context, symbol string) (book.OrderBook, error) {
		<-ctx.Done()
		return book.OrderBook{}, ctx.Err()
	}))
	r.Register("gate", ConnectorFunc(func(_ context.Context, symbol string) (book.OrderBook, error) {
		return book.OrderBook{Symbol: symbol, Bids: book.Side{book.NewLevel(2, 1)}}, nil
	}))

	in := []models.Candidate{
		{Symbol: "AAA", Analytics: models.Analytics{Source: "mexc", Destination: "gate"}},
		{Symbol: "BBB", Analytics: models.Analytics{Source: "mexc", Destination: "mexc"}},
	}

	start := time.Now()
	out := NewEnricher(r, 100*time.Millisecond).Enrich(context.Background(), in)
	require.Less(t, time.Since(start), time.Second)

	require.NotNil(t, out[0].OrderBooks)
	require.Nil(t, out[0].OrderBooks.Source)
	require.NotNil(t, out[0].OrderBooks.Destination)
	require.Nil(t, out[1].OrderBooks)
}

func TestFeederStoresServableSnapshots(t *testing.T) {
	kv := newMemKV()
	feeder := NewFeeder(kv, "", time.Minute)
	ctx := context.Background()

	msg := []byte(`{"venue":"Gate","symbol":"ABC","bids":[["10.1","4"]],"asks":[["10.3","2"],["10.4","1"]]}`)
	require.NoError(t, feeder.Handle(ctx, msg))

	ob, err := NewRedisConnector(kv, "gate", "", time.Minute).OrderBook(ctx, "ABC")
	require.NoError(t, err)
	require.Len(t, ob.Asks, 2)
	require.Equal(t, "10.1", ob.Bids[0].Price.String())

	require.Error(t, feeder.Handle(ctx, []byte(`{"symbol":"ABC"}`)))
	require.ErrorIs(t, feeder.Handle(ctx, []byte(`{"venue":"gate","symbol":"ABC","bids":[["1"]]}`)), book.ErrMalformedLevel)
}
