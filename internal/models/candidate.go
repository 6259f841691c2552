package models

import (
	"encoding/json"

	"github.com/hetulpatel/crossarb/internal/book"
)

// Candidate is one cross-venue opportunity candidate as published by the
// upstream price filter: a symbol, the venue to buy on (source), the venue to
// sell on (destination), and optionally both order books.
type Candidate struct {
	Symbol     string      `json:"symbol"`
	Analytics  Analytics   `json:"analytics"`
	OrderBooks *OrderBooks `json:"order_books,omitempty"`
	Fee        *float64    `json:"fee,omitempty"`
	Network    string      `json:"network,omitempty"`
}

// Analytics is the price filter's summary of the candidate.
type Analytics struct {
	Symbol      string  `json:"symbol,omitempty"`
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
	MaxBid      float64 `json:"max_bid,omitempty"`
	MinAsk      float64 `json:"min_ask,omitempty"`
	Spread      float64 `json:"spread,omitempty"`
}

// OrderBooks carries the two venue books attached to a candidate.
type OrderBooks struct {
	Source      *RawBook `json:"source_orderbook,omitempty"`
	Destination *RawBook `json:"destination_orderbook,omitempty"`
}

// RawBook is a venue book with ladders still in wire form.
type RawBook struct {
	Symbol string       `json:"symbol,omitempty"`
	Bids   book.RawSide `json:"bids"`
	Asks   book.RawSide `json:"asks"`
}

// legacyCandidate accepts the misspelled "analythics" key older publishers
// still emit.
type legacyCandidate struct {
	Analythics *Analytics `json:"analythics"`
}

func (c *Candidate) UnmarshalJSON(data []byte) error {
	type plain Candidate
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Analytics == (Analytics{}) {
		var legacy legacyCandidate
		if err := json.Unmarshal(data, &legacy); err == nil && legacy.Analythics != nil {
			p.Analytics = *legacy.Analythics
		}
	}
	*c = Candidate(p)
	return nil
}

// SymbolName returns the candidate's symbol, falling back to the analytics copy.
func (c Candidate) SymbolName() string {
	if c.Symbol != "" {
		return c.Symbol
	}
	return c.Analytics.Symbol
}

// Clone returns a deep copy of the candidate.
func (c Candidate) Clone() Candidate {
	if c.Fee != nil {
		fee := *c.Fee
		c.Fee = &fee
	}
	if c.OrderBooks != nil {
		ob := OrderBooks{
			Source:      c.OrderBooks.Source.Clone(),
			Destination: c.OrderBooks.Destination.Clone(),
		}
		c.OrderBooks = &ob
	}
	return c
}

// Clone returns a deep copy of the book, or nil.
func (b *RawBook) Clone() *RawBook {
	if b == nil {
		return nil
	}
	return &RawBook{Symbol: b.Symbol, Bids: cloneRaw(b.Bids), Asks: cloneRaw(b.Asks)}
}

func cloneRaw(side book.RawSide) book.RawSide {
	if side == nil {
		return nil
	}
	out := make(book.RawSide, len(side))
	for i, lvl := range side {
		out[i] = append(json.RawMessage(nil), lvl...)
	}
	return out
}

// CloneCandidates deep-copies a candidate batch.
func CloneCandidates(in []Candidate) []Candidate {
	if in == nil {
		return nil
	}
	out := make([]Candidate, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

// DecodeCandidates parses an inbound envelope: a JSON array of candidates.
func DecodeCandidates(payload []byte) ([]Candidate, error) {
	var out []Candidate
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeCandidates serializes a candidate batch. A nil batch encodes as [].
func EncodeCandidates(candidates []Candidate) ([]byte, error) {
	if candidates == nil {
		candidates = []Candidate{}
	}
	return json.Marshal(candidates)
}
