// Package notify turns accepted opportunities into chat messages and sends
// only what changed since the last announcement.
package notify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/profitability"
)

// Render formats one record as a multi-line chat entry.
func Render(rec models.Record) string {
	eq := rec.Equilibrium
	fee := "n/a"
	if rec.Fee != nil && *rec.Fee >= 0 {
		fee = fmt.Sprintf("%g", *rec.Fee)
	}
	network := rec.Network
	if network == "" {
		network = "n/a"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", rec.Symbol)
	fmt.Fprintf(&b, "%s -> %s\n", rec.Source, rec.Destination)
	fmt.Fprintf(&b, "$%.4g (%.2f%%) from $%.2f\n", eq.ProfitAbsolute, eq.ProfitRate*100, eq.TotalCost)
	fmt.Fprintf(&b, "Buy %.2g. Network %s, fee %s\n", eq.MatchedQuantity, network, fee)
	fmt.Fprintf(&b, "Equilibrium price %.4g. Ask price %.4g\n", eq.EquilibriumPrice, eq.AverageCost)
	return b.String()
}

// Digest keeps the best accepted route per symbol and renders it. The result
// maps symbol to message.
func Digest(records []models.Record, chain profitability.Chain) map[string]string {
	bySymbol := make(map[string][]models.Record)
	for _, rec := range profitability.Filter(records, chain) {
		if rec.Symbol == "" || !rec.Equilibrium.Matched() {
			continue
		}
		bySymbol[rec.Symbol] = append(bySymbol[rec.Symbol], rec)
	}

	out := make(map[string]string, len(bySymbol))
	for symbol, routes := range bySymbol {
		best, _ := profitability.Best(routes)
		out[symbol] = Render(best)
	}
	return out
}

// CloneDigest copies a digest map.
func CloneDigest(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
