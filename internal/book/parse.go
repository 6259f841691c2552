package book

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// RawSide is a ladder exactly as it arrives on the wire: a list of
// [priceString, quantityString] pairs. Levels stay raw until ParseSide so a
// single bad number degrades one candidate instead of failing the whole
// envelope decode.
type RawSide []json.RawMessage

// ParseSide converts a wire ladder into decimal levels. Prices and quantities
// may be JSON strings or numbers.
func ParseSide(raw RawSide) (Side, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(Side, 0, len(raw))
	for i, entry := range raw {
		lvl, err := parseLevel(entry)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		if err := lvl.Validate(); err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		out = append(out, lvl)
	}
	return out, nil
}

func parseLevel(entry json.RawMessage) (Level, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(entry, &parts); err != nil {
		return Level{}, fmt.Errorf("%w: %v", ErrMalformedLevel, err)
	}
	// Some venues append a third element (order count or timestamp); only the
	// first two matter.
	if len(parts) < 2 {
		return Level{}, fmt.Errorf("%w: want [price, quantity], got %d elements", ErrMalformedLevel, len(parts))
	}
	price, err := parseNumber(parts[0])
	if err != nil {
		return Level{}, fmt.Errorf("%w: price %s: %v", ErrMalformedLevel, string(parts[0]), err)
	}
	qty, err := parseNumber(parts[1])
	if err != nil {
		return Level{}, fmt.Errorf("%w: quantity %s: %v", ErrMalformedLevel, string(parts[1]), err)
	}
	return Level{Price: price, Quantity: qty}, nil
}

// parseNumber decodes a string or number element. decimal treats null as
// zero, which would turn a missing price into a free fill.
func parseNumber(raw json.RawMessage) (decimal.Decimal, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return decimal.Decimal{}, errors.New("null value")
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

// FormatSide renders a ladder back into its wire form.
func FormatSide(side Side) RawSide {
	if side == nil {
		return nil
	}
	out := make(RawSide, 0, len(side))
	for _, lvl := range side {
		b, _ := lvl.MarshalJSON()
		out = append(out, b)
	}
	return out
}
