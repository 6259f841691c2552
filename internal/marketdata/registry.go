// Package marketdata looks up venue order books for candidates that arrive
// without them.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hetulpatel/crossarb/internal/book"
)

// ErrUnknownVenue is returned when no connector is registered for a venue.
var ErrUnknownVenue = errors.New("unknown venue")

// Connector fetches the current book of one symbol on one venue.
type Connector interface {
	OrderBook(ctx context.Context, symbol string) (book.OrderBook, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, symbol string) (book.OrderBook, error)

func (f ConnectorFunc) OrderBook(ctx context.Context, symbol string) (book.OrderBook, error) {
	return f(ctx, symbol)
}

// Registry maps venue ids to connectors. Venue ids are case-insensitive.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]Connector)}
}

// Register adds or replaces the connector for venue.
func (r *Registry) Register(venue string, c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[normalizeVenue(venue)] = c
}

func (r *Registry) Lookup(venue string) (Connector, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[normalizeVenue(venue)]
	return c, ok
}

// Venues lists registered venue ids in sorted order.
func (r *Registry) Venues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.connectors))
	for v := range r.connectors {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// OrderBook fetches symbol from venue's connector.
func (r *Registry) OrderBook(ctx context.Context, venue, symbol string) (book.OrderBook, error) {
	c, ok := r.Lookup(venue)
	if !ok {
		return book.OrderBook{}, fmt.Errorf("%w: %q", ErrUnknownVenue, venue)
	}
	ob, err := c.OrderBook(ctx, symbol)
	if err != nil {
		return book.OrderBook{}, fmt.Errorf("%s %s: %w", venue, symbol, err)
	}
	if ob.Venue == "" {
		ob.Venue = normalizeVenue(venue)
	}
	return ob, nil
}

func normalizeVenue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
