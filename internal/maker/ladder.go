// Package maker implements the periodic market-making round: sizing,
// book cleaning, ladder generation, and cancel-minimizing reconciliation
// against live orders.
package maker

import (
	"sort"

	"github.com/xervantex/scalpl/pkg/types"
)

// shareGrowth is the 11/6 bias applied to each level's cumulative-depth
// weight in dumbot-oneside: levels with more liquidity resting ahead of
// them get proportionally more of the allocated funds.
const shareGrowth = 11.0 / 6.0

// leveledShare pairs one book level with its dumbot-oneside weight.
type leveledShare struct {
	level types.BookLevel
	share float64
}

// GenerateLadder implements dumbot-oneside (spec.md section 4.7.5). book is
// one side of the cleaned book, ordered best-price-first (bids descending,
// asks ascending). resilience is the depth, in base units, the walk
// accumulates toward before stopping. funds is the total order size to
// allocate across the ladder. delta shifts each generated price one tick
// toward the spread relative to the book level it's grounded on (+1 for
// bids, -1 for asks). maxOrders caps the number of generated levels.
//
// The walk always keeps the head (best) level regardless of its share, per
// the resolved reading of the source's "subseq book 1 n" behavior: the
// remaining levels are ranked by share and only the top maxOrders-1 of them
// join the head.
func GenerateLadder(side types.Side, book []types.BookLevel, resilience float64, funds float64, delta types.PriceTick, maxOrders int) []types.DesiredOrder {
	if len(book) == 0 || maxOrders <= 0 {
		return nil
	}

	var cumulative float64
	n := 0
	for n < len(book) {
		cumulative += book[n].Volume
		n++
		if cumulative >= resilience {
			break
		}
	}
	prefix := book[:n]

	shares := make([]leveledShare, n)
	var running float64
	for i, lvl := range prefix {
		running += lvl.Volume
		shares[i] = leveledShare{level: lvl, share: shareGrowth * running}
	}

	head := shares[0]
	rest := append([]leveledShare(nil), shares[1:]...)
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].share > rest[j].share })

	keep := maxOrders - 1
	if keep > len(rest) {
		keep = len(rest)
	}
	if keep < 0 {
		keep = 0
	}
	relevant := append([]leveledShare{head}, rest[:keep]...)

	var totalShare float64
	for _, r := range relevant {
		totalShare += r.share
	}

	out := make([]types.DesiredOrder, len(relevant))
	for i, r := range relevant {
		var amount float64
		if totalShare > 0 {
			amount = funds * r.share / totalShare
		}
		out[i] = types.DesiredOrder{QuoteAmount: amount, PriceTick: r.level.PriceTick + delta}
	}

	if side == types.Buy {
		sort.SliceStable(out, func(i, j int) bool { return out[i].PriceTick > out[j].PriceTick })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].PriceTick < out[j].PriceTick })
	}
	return out
}

// ProfitMargin computes profit-margin(b, a, f) = (a/b) * (1 - f/100), the
// ratio spec.md section 4.7.4's spread-crossing walk compares against 1: a
// value above 1 means the ask side, after the exchange's percentage fee, is
// still priced high enough above the bid side to be worth quoting into.
// f is the fee expressed as a percentage (e.g. 0.26 for 0.26%), matching the
// f/100 term in the spec's formula.
func ProfitMargin(b, a types.PriceTick, feePct float64, priceDecimals int) float64 {
	bf := b.Float64(priceDecimals)
	af := a.Float64(priceDecimals)
	if bf <= 0 {
		return 0
	}
	return (af / bf) * (1 - feePct/100)
}
