package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hetulpatel/crossarb/internal/book"
	"github.com/hetulpatel/crossarb/internal/equilibrium"
)

var (
	// ErrMissingOrderBook means a candidate arrived without one of its two books.
	ErrMissingOrderBook = errors.New("missing order book")
	// ErrMissingField means a candidate lacks a key the pipeline needs.
	ErrMissingField = errors.New("missing field")
)

// Record is the scored outcome for one candidate at one instant. Records are
// never mutated; the next tick produces new ones.
type Record struct {
	Symbol      string
	Source      string
	Destination string
	Equilibrium equilibrium.Result
	Fee         *float64
	Network     string
	CapturedAt  int64 // UTC epoch seconds
}

type recordWire struct {
	Symbol                string   `json:"symbol"`
	Source                string   `json:"source,omitempty"`
	Destination           string   `json:"destination,omitempty"`
	EquilibriumQuantity   float64  `json:"equilibrium_quantity"`
	EquilibriumProfit     float64  `json:"equilibrium_profit"`
	EquilibriumProfitRate float64  `json:"equilibrium_profit_rate"`
	EquilibriumAskCost    float64  `json:"equilibrium_ask_cost"`
	AskCostPrice          float64  `json:"ask_cost_price"`
	MiddlePrice           float64  `json:"middle_price"`
	Fee                   *float64 `json:"fee,omitempty"`
	Network               string   `json:"network,omitempty"`
	Timestamp             int64    `json:"__timestamp"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	eq := r.Equilibrium
	return json.Marshal(recordWire{
		Symbol:                r.Symbol,
		Source:                r.Source,
		Destination:           r.Destination,
		EquilibriumQuantity:   eq.MatchedQuantity,
		EquilibriumProfit:     eq.ProfitAbsolute,
		EquilibriumProfitRate: eq.ProfitRate,
		EquilibriumAskCost:    eq.TotalCost,
		AskCostPrice:          eq.AverageCost,
		MiddlePrice:           eq.EquilibriumPrice,
		Fee:                   r.Fee,
		Network:               r.Network,
		Timestamp:             r.CapturedAt,
	})
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Record{
		Symbol:      w.Symbol,
		Source:      w.Source,
		Destination: w.Destination,
		Equilibrium: equilibrium.Result{
			MatchedQuantity:  w.EquilibriumQuantity,
			ProfitAbsolute:   w.EquilibriumProfit,
			ProfitRate:       w.EquilibriumProfitRate,
			TotalCost:        w.EquilibriumAskCost,
			AverageCost:      w.AskCostPrice,
			EquilibriumPrice: w.MiddlePrice,
		},
		Fee:        w.Fee,
		Network:    w.Network,
		CapturedAt: w.Timestamp,
	}
	return nil
}

// Build scores one candidate: the destination venue's bids are crossed with
// the source venue's asks. A candidate with a missing or malformed book still
// yields a record, carrying the no-match result, together with the reason.
func Build(c Candidate, now time.Time) (Record, error) {
	rec := Record{
		Symbol:      c.SymbolName(),
		Source:      c.Analytics.Source,
		Destination: c.Analytics.Destination,
		Equilibrium: equilibrium.NoMatch(),
		Network:     c.Network,
		CapturedAt:  now.UTC().Unix(),
	}
	if c.Fee != nil {
		fee := *c.Fee
		rec.Fee = &fee
	}
	if rec.Symbol == "" {
		return rec, fmt.Errorf("%w: symbol", ErrMissingField)
	}

	pair, err := c.Pair()
	if err != nil {
		return rec, fmt.Errorf("%s %s->%s: %w", rec.Symbol, rec.Source, rec.Destination, err)
	}
	rec.Equilibrium = equilibrium.Match(pair)
	return rec, nil
}

// Pair parses the ladders eligible for crossing.
func (c Candidate) Pair() (book.Pair, error) {
	if c.OrderBooks == nil || c.OrderBooks.Source == nil {
		return book.Pair{}, fmt.Errorf("%w: source", ErrMissingOrderBook)
	}
	if c.OrderBooks.Destination == nil {
		return book.Pair{}, fmt.Errorf("%w: destination", ErrMissingOrderBook)
	}
	asks, err := book.ParseSide(c.OrderBooks.Source.Asks)
	if err != nil {
		return book.Pair{}, fmt.Errorf("source asks: %w", err)
	}
	bids, err := book.ParseSide(c.OrderBooks.Destination.Bids)
	if err != nil {
		return book.Pair{}, fmt.Errorf("destination bids: %w", err)
	}
	return book.Pair{DestinationBids: bids, SourceAsks: asks}, nil
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r.Fee != nil {
		fee := *r.Fee
		r.Fee = &fee
	}
	return r
}

// CloneRecords deep-copies a record batch.
func CloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// SameContent reports whether two records describe the same opportunity,
// ignoring when they were captured.
func (r Record) SameContent(o Record) bool {
	if r.Symbol != o.Symbol || r.Source != o.Source || r.Destination != o.Destination {
		return false
	}
	if r.Equilibrium != o.Equilibrium || r.Network != o.Network {
		return false
	}
	switch {
	case r.Fee == nil && o.Fee == nil:
		return true
	case r.Fee == nil || o.Fee == nil:
		return false
	default:
		return *r.Fee == *o.Fee
	}
}

// SameRecords compares two batches element by element with SameContent. A nil
// batch and an empty batch are equal.
func SameRecords(a, b []Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].SameContent(b[i]) {
			return false
		}
	}
	return true
}

// EncodeRecords serializes an outbound envelope. A nil batch encodes as [].
func EncodeRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(records)
}

// DecodeRecords parses an outbound envelope.
func DecodeRecords(payload []byte) ([]Record, error) {
	var out []Record
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
