// Package equilibrium computes the theoretical cross-venue trade between a
// source venue's ask ladder and a destination venue's bid ladder.
package equilibrium

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/crossarb/internal/book"
	"github.com/hetulpatel/crossarb/internal/logging"
)

// NoMatchPrice is the EquilibriumPrice of a result where nothing crossed. It
// keeps "no match" distinguishable from a match at price 0.
const NoMatchPrice = -1.0

// rateScale is the number of decimal places kept when dividing proceeds by cost.
const rateScale = 18

// Result is the outcome of one Match call. ProfitRate is fractional
// (0.01 == 1%). EquilibriumPrice is the last ask price consumed, i.e. the
// marginal execution price on the buy side.
type Result struct {
	MatchedQuantity  float64
	ProfitAbsolute   float64
	ProfitRate       float64
	TotalCost        float64
	AverageCost      float64
	EquilibriumPrice float64
}

// NoMatch returns the zero result.
func NoMatch() Result {
	return Result{EquilibriumPrice: NoMatchPrice}
}

// Matched reports whether any quantity crossed.
func (r Result) Matched() bool {
	return r.MatchedQuantity > 0
}

// Match walks both ladders from their best price outward, buying asks and
// selling into bids while the ask is strictly cheaper than the bid. Ladders
// are consumed in the order given. Invalid input (negative values) yields
// NoMatch; callers that need the reason should run pair.Validate first.
func Match(pair book.Pair) (res Result) {
	asks, bids := pair.SourceAsks, pair.DestinationBids
	if len(asks) == 0 || len(bids) == 0 {
		return NoMatch()
	}
	if err := pair.Validate(); err != nil {
		logging.Debugf("[equilibrium] rejecting pair: %v", err)
		return NoMatch()
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Warnf("[equilibrium] inconsistent book data (asks=%d bids=%d): %v", len(asks), len(bids), r)
			res = NoMatch()
		}
	}()

	var (
		askIdx, bidIdx int
		// consumed part of the level currently under each cursor
		askCut, bidCut decimal.Decimal
		qty            decimal.Decimal
		askCost        decimal.Decimal
		bidCost        decimal.Decimal
		price          = decimal.NewFromFloat(NoMatchPrice)
	)

	for askIdx < len(asks) && bidIdx < len(bids) {
		ask, bid := asks[askIdx], bids[bidIdx]
		if !ask.Price.LessThan(bid.Price) {
			break
		}
		askLeft := ask.Quantity.Sub(askCut)
		bidLeft := bid.Quantity.Sub(bidCut)

		if askLeft.IsPositive() && bidLeft.IsPositive() {
			cut := decimal.Min(askLeft, bidLeft)
			askCost = askCost.Add(ask.Price.Mul(cut))
			bidCost = bidCost.Add(bid.Price.Mul(cut))
			qty = qty.Add(cut)
			price = ask.Price
			askCut = askCut.Add(cut)
			bidCut = bidCut.Add(cut)
		}

		askDone := !ask.Quantity.Sub(askCut).IsPositive()
		bidDone := !bid.Quantity.Sub(bidCut).IsPositive()
		if askDone {
			askIdx++
			askCut = decimal.Zero
		}
		if bidDone {
			bidIdx++
			bidCut = decimal.Zero
		}
	}

	return summarize(qty, askCost, bidCost, price)
}

func summarize(qty, askCost, bidCost, price decimal.Decimal) Result {
	if !qty.IsPositive() {
		return NoMatch()
	}
	res := Result{
		MatchedQuantity:  qty.InexactFloat64(),
		ProfitAbsolute:   bidCost.Sub(askCost).InexactFloat64(),
		TotalCost:        askCost.InexactFloat64(),
		EquilibriumPrice: price.InexactFloat64(),
	}
	if !askCost.IsZero() {
		res.ProfitRate = bidCost.DivRound(askCost, rateScale).Sub(decimal.NewFromInt(1)).InexactFloat64()
	}
	res.AverageCost = askCost.DivRound(qty, rateScale).InexactFloat64()
	return res
}

func (r Result) String() string {
	if !r.Matched() {
		return "no match"
	}
	return fmt.Sprintf("qty=%g profit=%g rate=%.4f%% cost=%g avg=%g price=%g",
		r.MatchedQuantity, r.ProfitAbsolute, r.ProfitRate*100, r.TotalCost, r.AverageCost, r.EquilibriumPrice)
}
