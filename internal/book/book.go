package book

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrMalformedLevel marks a ladder entry that is not a [price, quantity] pair of numbers.
	ErrMalformedLevel = errors.New("malformed price level")
	// ErrNegativeValue marks a level with a negative price or quantity.
	ErrNegativeValue = errors.New("negative price or quantity")
)

// Level is a single price/quantity pair.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// NewLevel builds a level from float values. Mostly useful in tests and fixtures.
func NewLevel(price, quantity float64) Level {
	return Level{Price: decimal.NewFromFloat(price), Quantity: decimal.NewFromFloat(quantity)}
}

// Validate rejects negative prices and quantities.
func (l Level) Validate() error {
	if l.Price.IsNegative() || l.Quantity.IsNegative() {
		return fmt.Errorf("%w: [%s, %s]", ErrNegativeValue, l.Price, l.Quantity)
	}
	return nil
}

// MarshalJSON writes the level in the venue wire form ["price", "quantity"].
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{l.Price.String(), l.Quantity.String()})
}

// Side is one ladder of a book in best-price-first order. Bids descend, asks
// ascend; the order is owned by the venue and never re-sorted here.
type Side []Level

// Validate checks every level of the ladder.
func (s Side) Validate() error {
	for i, lvl := range s {
		if err := lvl.Validate(); err != nil {
			return fmt.Errorf("level %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a copy that shares nothing with s.
func (s Side) Clone() Side {
	if s == nil {
		return nil
	}
	out := make(Side, len(s))
	copy(out, s)
	return out
}

// Pair holds the two ladders eligible for crossing: asks bought on the source
// venue and bids sold into on the destination venue.
type Pair struct {
	DestinationBids Side
	SourceAsks      Side
}

// Validate checks both ladders.
func (p Pair) Validate() error {
	if err := p.DestinationBids.Validate(); err != nil {
		return fmt.Errorf("destination bids: %w", err)
	}
	if err := p.SourceAsks.Validate(); err != nil {
		return fmt.Errorf("source asks: %w", err)
	}
	return nil
}

// OrderBook is a normalized venue book for one symbol.
type OrderBook struct {
	Symbol string
	Venue  string
	Bids   Side
	Asks   Side
}

// Clone returns a deep copy of the book.
func (b OrderBook) Clone() OrderBook {
	b.Bids = b.Bids.Clone()
	b.Asks = b.Asks.Clone()
	return b
}
