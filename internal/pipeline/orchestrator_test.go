package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/book"
	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/profitability"
	"github.com/hetulpatel/crossarb/internal/stage"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// countingSink forwards to a real dispatcher and records every SetData call.
type countingSink struct {
	mu    sync.Mutex
	calls [][]models.Record
	d     *stage.Dispatcher[[]models.Record]
}

func (s *countingSink) SetData(records []models.Record) bool {
	s.mu.Lock()
	s.calls = append(s.calls, models.CloneRecords(records))
	s.mu.Unlock()
	return s.d.SetData(records)
}

func (s *countingSink) emptyCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if len(c) == 0 {
			n++
		}
	}
	return n
}

type publishLog struct {
	mu      sync.Mutex
	batches [][]models.Record
}

func (p *publishLog) Publish(_ context.Context, records []models.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, records)
	return nil
}

func level(price, qty string) []byte {
	return []byte(`["` + price + `","` + qty + `"]`)
}

func candidate(symbol string, askPrice, bidPrice string) models.Candidate {
	return models.Candidate{
		Symbol:    symbol,
		Analytics: models.Analytics{Source: "mexc", Destination: "gate"},
		OrderBooks: &models.OrderBooks{
			Source:      &models.RawBook{Asks: book.RawSide{level(askPrice, "1")}},
			Destination: &models.RawBook{Bids: book.RawSide{level(bidPrice, "1")}},
		},
	}
}

type harness struct {
	clock    *clock
	receiver *stage.Receiver[[]models.Candidate]
	sink     *countingSink
	pub      *publishLog
	orch     *Orchestrator
}

func newHarness(t *testing.T, chain profitability.Chain) *harness {
	t.Helper()
	c := &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	pub := &publishLog{}
	disp := stage.NewDispatcher(stage.DispatcherConfig[[]models.Record]{
		Name:      "test-dispatcher",
		Publisher: pub,
		Clone:     models.CloneRecords,
		Equal:     models.SameRecords,
		Clock:     c.Now,
	})
	recv := stage.NewReceiver(models.CloneCandidates, c.Now)
	sink := &countingSink{d: disp}
	orch := New(Config{TickInterval: 5 * time.Second, StaleAfter: 30 * time.Second, Filters: chain, Clock: c.Now}, recv, sink, nil)
	return &harness{clock: c, receiver: recv, sink: sink, pub: pub, orch: orch}
}

func (h *harness) dispatch(t *testing.T) bool {
	t.Helper()
	ok, err := h.sink.d.DispatchOnce(context.Background())
	require.NoError(t, err)
	return ok
}

func TestTickPublishesAcceptedRecords(t *testing.T) {
	chain := profitability.Chain{{Kind: profitability.MinimalProfit, Value: 1}}
	h := newHarness(t, chain)
	h.receiver.Publish([]models.Candidate{
		candidate("AAA", "100", "103"),
		candidate("BBB", "100", "100.5"),
	})

	require.Equal(t, StatePublishing, h.orch.Tick(context.Background()))
	require.Equal(t, StateWaitingForInput, h.orch.State())
	require.True(t, h.dispatch(t))
	require.Len(t, h.pub.batches, 1)
	require.Len(t, h.pub.batches[0], 1)
	require.Equal(t, "AAA", h.pub.batches[0][0].Symbol)
	require.Equal(t, 3.0, h.pub.batches[0][0].Equilibrium.ProfitAbsolute)
}

func TestTickWithoutNewInputDoesNotReprocess(t *testing.T) {
	h := newHarness(t, nil)
	h.receiver.Publish([]models.Candidate{candidate("AAA", "100", "103")})

	require.Equal(t, StatePublishing, h.orch.Tick(context.Background()))
	h.clock.Advance(5 * time.Second)
	require.Equal(t, StateSuppressed, h.orch.Tick(context.Background()))
	require.Len(t, h.sink.calls, 1)
}

func TestRepeatedIdenticalInputPublishesOnce(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 3; i++ {
		h.receiver.Publish([]models.Candidate{candidate("AAA", "100", "103")})
		require.Equal(t, StatePublishing, h.orch.Tick(context.Background()))
		h.dispatch(t)
		h.clock.Advance(5 * time.Second)
	}
	require.Len(t, h.pub.batches, 1, "same opportunity at later timestamps is not republished")

	h.receiver.Publish([]models.Candidate{candidate("AAA", "100", "104")})
	h.orch.Tick(context.Background())
	require.True(t, h.dispatch(t))
	require.Len(t, h.pub.batches, 2)
}

func TestNothingAcceptedIsSuppressed(t *testing.T) {
	chain := profitability.Chain{{Kind: profitability.MinimalPercent, Value: 50}}
	h := newHarness(t, chain)
	h.receiver.Publish([]models.Candidate{candidate("AAA", "100", "103")})
	require.Equal(t, StateSuppressed, h.orch.Tick(context.Background()))
	require.Equal(t, StateSuppressed, h.orch.LastOutcome())
	require.Empty(t, h.sink.calls)
}

func TestStaleInputSuppressesExactlyOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.receiver.Publish([]models.Candidate{candidate("AAA", "100", "103")})
	require.Equal(t, StatePublishing, h.orch.Tick(context.Background()))
	require.True(t, h.dispatch(t))

	h.clock.Advance(31 * time.Second)
	for i := 0; i < 5; i++ {
		require.Equal(t, StateSuppressed, h.orch.Tick(context.Background()))
		h.dispatch(t)
		h.clock.Advance(5 * time.Second)
	}
	require.Equal(t, 1, h.sink.emptyCalls(), "empty payload pushed once, not every tick")
	require.Len(t, h.pub.batches, 2)
	require.Empty(t, h.pub.batches[1])
	require.Empty(t, h.sink.d.GetData())

	// fresh input re-arms the stale latch
	h.receiver.Publish([]models.Candidate{candidate("AAA", "100", "103")})
	require.Equal(t, StatePublishing, h.orch.Tick(context.Background()))
	require.True(t, h.dispatch(t))
	h.clock.Advance(31 * time.Second)
	h.orch.Tick(context.Background())
	require.Equal(t, 2, h.sink.emptyCalls())
}

func TestNoInputAtStartupIsStale(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, StateSuppressed, h.orch.Tick(context.Background()))
	require.Equal(t, StateSuppressed, h.orch.Tick(context.Background()))
	require.Equal(t, 1, h.sink.emptyCalls())
	require.False(t, h.dispatch(t), "nothing was ever published, nothing to retract")
}

func TestScoreKeepsDataQualityFailures(t *testing.T) {
	bad := candidate("BAD", "x", "1")
	missing := models.Candidate{Symbol: "MISSING", Analytics: models.Analytics{Source: "a", Destination: "b"}}
	noSymbol := candidate("", "100", "103")
	records := Score([]models.Candidate{bad, missing, noSymbol}, time.Unix(0, 0))
	require.Len(t, records, 2)
	require.False(t, records[0].Equilibrium.Matched())
	require.False(t, records[1].Equilibrium.Matched())
}

type stubEnricher struct{ called int }

func (e *stubEnricher) Enrich(_ context.Context, cands []models.Candidate) []models.Candidate {
	e.called++
	out := models.CloneCandidates(cands)
	for i := range out {
		if out[i].OrderBooks == nil {
			out[i].OrderBooks = candidate(out[i].Symbol, "10", "11").OrderBooks
		}
	}
	return out
}

func TestTickUsesEnricher(t *testing.T) {
	h := newHarness(t, nil)
	enricher := &stubEnricher{}
	h.orch.enricher = enricher
	h.receiver.Publish([]models.Candidate{{Symbol: "AAA", Analytics: models.Analytics{Source: "a", Destination: "b"}}})
	require.Equal(t, StatePublishing, h.orch.Tick(context.Background()))
	require.Equal(t, 1, enricher.called)
	require.True(t, h.sink.d.GetData()[0].Equilibrium.Matched())
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.cfg.TickInterval = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.orch.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return h.sink.emptyCalls() == 1 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("orchestrator did not stop")
	}
}
