package marketdata

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/crossarb/internal/book"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/models"
)

// maxConcurrentFetches caps in-flight book fetches during one enrichment.
const maxConcurrentFetches = 500

// Enricher attaches venue books to candidates that arrived without them.
type Enricher struct {
	registry *Registry
	timeout  time.Duration
	limit    int
}

// NewEnricher builds an Enricher over registry. One enrichment pass, all of
// its fetches included, is bounded by timeout; zero means 2s.
func NewEnricher(registry *Registry, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Enricher{registry: registry, timeout: timeout, limit: maxConcurrentFetches}
}

// fetchJob fills one side of one candidate.
type fetchJob struct {
	venue  string
	symbol string
	dst    **models.RawBook
}

// Enrich returns a copy of candidates with missing books filled in where a
// connector could provide them. Candidates that already carry both books are
// left as they are; failed or late lookups leave the candidate without a
// book. Fetches run concurrently under a single deadline.
func (e *Enricher) Enrich(ctx context.Context, candidates []models.Candidate) []models.Candidate {
	out := models.CloneCandidates(candidates)

	var jobs []fetchJob
	for i := range out {
		c := &out[i]
		if c.OrderBooks != nil && c.OrderBooks.Source != nil && c.OrderBooks.Destination != nil {
			continue
		}
		if c.OrderBooks == nil {
			c.OrderBooks = &models.OrderBooks{}
		}
		symbol := c.SymbolName()
		if c.OrderBooks.Source == nil {
			jobs = append(jobs, fetchJob{venue: c.Analytics.Source, symbol: symbol, dst: &c.OrderBooks.Source})
		}
		if c.OrderBooks.Destination == nil {
			jobs = append(jobs, fetchJob{venue: c.Analytics.Destination, symbol: symbol, dst: &c.OrderBooks.Destination})
		}
	}

	if len(jobs) > 0 {
		passCtx, cancel := context.WithTimeout(ctx, e.timeout)
		var g errgroup.Group
		g.SetLimit(e.limit)
		for _, job := range jobs {
			g.Go(func() error {
				if ob, ok := e.fetch(passCtx, job.venue, job.symbol); ok {
					*job.dst = rawBook(ob)
				}
				return nil
			})
		}
		_ = g.Wait()
		cancel()
	}

	filled := 0
	for i := range out {
		c := &out[i]
		if c.OrderBooks == nil {
			continue
		}
		if c.OrderBooks.Source == nil && c.OrderBooks.Destination == nil {
			c.OrderBooks = nil
			continue
		}
		filled++
	}
	if len(jobs) > 0 {
		logging.Debugf("[marketdata] fetched %d books, %d/%d candidates carry books", len(jobs), filled, len(out))
	}
	return out
}

func (e *Enricher) fetch(ctx context.Context, venue, symbol string) (book.OrderBook, bool) {
	if symbol == "" || venue == "" {
		return book.OrderBook{}, false
	}
	ob, err := e.registry.OrderBook(ctx, venue, symbol)
	if err != nil {
		logging.Debugf("[marketdata] %v", err)
		return book.OrderBook{}, false
	}
	if ctx.Err() != nil {
		logging.Debugf("[marketdata] %s %s arrived after the enrichment deadline", venue, symbol)
		return book.OrderBook{}, false
	}
	return ob, true
}

func rawBook(ob book.OrderBook) *models.RawBook {
	return &models.RawBook{
		Symbol: ob.Symbol,
		Bids:   book.FormatSide(ob.Bids),
		Asks:   book.FormatSide(ob.Asks),
	}
}
