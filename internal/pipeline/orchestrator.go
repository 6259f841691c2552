// Package pipeline wires the inbound receiver, the equilibrium matcher, the
// profitability filters and the outbound dispatcher together on a fixed tick.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/profitability"
)

// State is the orchestrator's position in its tick cycle.
type State int

const (
	StateWaitingForInput State = iota
	StateProcessing
	StatePublishing
	StateSuppressed
)

func (s State) String() string {
	switch s {
	case StateWaitingForInput:
		return "WAITING_FOR_INPUT"
	case StateProcessing:
		return "PROCESSING"
	case StatePublishing:
		return "PUBLISHING"
	case StateSuppressed:
		return "SUPPRESSED"
	default:
		return "UNKNOWN"
	}
}

// Source is the inbound side: the latest candidate batch and its freshness.
type Source interface {
	Current() ([]models.Candidate, bool)
	IsStale(now time.Time, threshold time.Duration) bool
	LastUpdatedAt() time.Time
}

// Sink is the outbound side. SetData reports whether the staged value changed.
type Sink interface {
	SetData(records []models.Record) bool
}

// Enricher fills in order books for candidates that arrived without them.
type Enricher interface {
	Enrich(ctx context.Context, candidates []models.Candidate) []models.Candidate
}

type Config struct {
	TickInterval time.Duration
	StaleAfter   time.Duration
	Filters      profitability.Chain
	Clock        func() time.Time
}

// Orchestrator runs one matching and filtering pass per tick.
type Orchestrator struct {
	cfg      Config
	source   Source
	sink     Sink
	enricher Enricher

	mu             sync.Mutex
	state          State
	lastOutcome    State
	staleSignalled bool
}

// New builds an Orchestrator. enricher may be nil.
func New(cfg Config, source Source, sink Sink, enricher Enricher) *Orchestrator {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Orchestrator{cfg: cfg, source: source, sink: sink, enricher: enricher}
}

// State reports the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastOutcome reports whether the most recent tick published or suppressed.
func (o *Orchestrator) LastOutcome() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastOutcome
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	if s == StatePublishing || s == StateSuppressed {
		o.lastOutcome = s
	}
	o.mu.Unlock()
}

// Run ticks until ctx is cancelled. The first tick happens immediately.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()

	logging.Infof("[pipeline] running (tick=%s stale_after=%s filters=%v)", o.cfg.TickInterval, o.cfg.StaleAfter, o.cfg.Filters)
	for {
		select {
		case <-ctx.Done():
			logging.Infof("[pipeline] stopping")
			return
		default:
		}

		o.Tick(ctx)

		select {
		case <-ctx.Done():
			logging.Infof("[pipeline] stopping")
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one cycle and returns its outcome: StatePublishing when accepted
// records were handed to the sink, StateSuppressed otherwise. Ticks must not
// overlap; Run calls it from a single goroutine.
func (o *Orchestrator) Tick(ctx context.Context) State {
	outcome := o.tick(ctx)
	o.setState(outcome)
	o.setState(StateWaitingForInput)
	return outcome
}

func (o *Orchestrator) tick(ctx context.Context) State {
	now := o.cfg.Clock()
	o.setState(StateProcessing)

	candidates, updated := o.source.Current()
	if o.source.IsStale(now, o.cfg.StaleAfter) {
		o.suppressStale(now)
		return StateSuppressed
	}
	o.staleSignalled = false

	if !updated {
		logging.Debugf("[pipeline] no new input since %s", o.source.LastUpdatedAt().Format(time.RFC3339))
		return StateSuppressed
	}

	if o.enricher != nil {
		candidates = o.enricher.Enrich(ctx, candidates)
	}

	records := Score(candidates, now)
	accepted := profitability.Filter(records, o.cfg.Filters)
	if len(accepted) == 0 {
		logging.Infof("[pipeline] %d candidates, none accepted", len(candidates))
		return StateSuppressed
	}

	changed := o.sink.SetData(accepted)
	logging.Infof("[pipeline] %d candidates, %d accepted (changed=%t)", len(candidates), len(accepted), changed)
	return StatePublishing
}

// suppressStale pushes an empty batch downstream the first time input goes
// stale; later stale ticks stay quiet until fresh input resets the latch.
func (o *Orchestrator) suppressStale(now time.Time) {
	if o.staleSignalled {
		return
	}
	last := o.source.LastUpdatedAt()
	if last.IsZero() {
		logging.Infof("[pipeline] no input received yet, suppressing output")
	} else {
		logging.Infof("[pipeline] input stale for %s (limit %s), suppressing output", now.Sub(last).Round(time.Second), o.cfg.StaleAfter)
	}
	o.sink.SetData(nil)
	o.staleSignalled = true
}

// Score builds one record per candidate. Candidates with missing or malformed
// books keep their no-match record; candidates without a symbol are dropped.
func Score(candidates []models.Candidate, now time.Time) []models.Record {
	records := make([]models.Record, 0, len(candidates))
	for _, c := range candidates {
		rec, err := models.Build(c, now)
		if err != nil {
			if errors.Is(err, models.ErrMissingField) {
				logging.Warnf("[pipeline] dropping candidate: %v", err)
				continue
			}
			logging.Warnf("[pipeline] data quality: %v", err)
		}
		logging.Debugf("[pipeline] %s %s->%s %s", rec.Symbol, rec.Source, rec.Destination, rec.Equilibrium)
		records = append(records, rec)
	}
	return records
}
