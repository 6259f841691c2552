package profitability

import (
	"sort"

	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/models"
)

// Evaluate applies chain to a single record.
func Evaluate(rec models.Record, chain Chain) bool {
	ok := Accepts(rec.Equilibrium, chain)
	if !ok {
		logging.Debugf("[profitability] %s %s->%s rejected (%s)", rec.Symbol, rec.Source, rec.Destination, rec.Equilibrium)
	}
	return ok
}

// Filter keeps the records every rule accepts, preserving input order. An
// empty chain returns the input unchanged.
func Filter(records []models.Record, chain Chain) []models.Record {
	if len(chain) == 0 {
		return records
	}
	out := make([]models.Record, 0, len(records))
	for _, rec := range records {
		if Evaluate(rec, chain) {
			out = append(out, rec)
		}
	}
	return out
}

// Best picks the record with the highest absolute profit; ties go to the
// lexically smallest symbol.
func Best(records []models.Record) (models.Record, bool) {
	if len(records) == 0 {
		return models.Record{}, false
	}
	ranked := make([]models.Record, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := ranked[i].Equilibrium.ProfitAbsolute, ranked[j].Equilibrium.ProfitAbsolute
		if pi != pj {
			return pi > pj
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})
	return ranked[0], true
}
