package maker

import (
	"context"
	"sort"

	"github.com/xervantex/scalpl/pkg/types"
)

// Placer is the subset of OrderPlacementEngine reconciliation drives
// directly: placing one side's limit order and cancelling a resting one.
type Placer interface {
	Place(ctx context.Context, side types.Side, d types.DesiredOrder) (types.LiveOrder, error)
	Cancel(ctx context.Context, side types.Side, oid string) error
}

// Reconcile implements spec.md section 4.7.6. For every live order it tries
// to find a desired level at the same price within sizeTolerance and keeps
// the pair as-is; failing that, it tries placing the nearest price-inward
// desired replacements (closest first) before cancelling the live order.
// The live order is cancelled once at least one replacement has been
// accepted (placing stops at the first failure), or when there is no inward
// candidate at all; if the very first placement fails, the live order is
// kept so the side never shrinks. Every desired level left unclaimed once all live
// orders have been processed is placed unconditionally. The result is the
// side's new live-order list — retained old orders plus freshly placed ones
// — sorted by price (descending for bids, ascending for asks).
//
// placeInwardOnEqualPrice resolves spec.md's open question (b): false (the
// default) treats an equal-price desired level as matched regardless of
// size drift, since re-quoting at the same price for a small size change
// buys nothing; true applies the size tolerance to an equal-price level, and
// an out-of-tolerance one is left unclaimed. It is never an inward candidate
// (inward is strict), so the live order is cancelled and the level is placed
// fresh in the leftover pass.
func Reconcile(ctx context.Context, side types.Side, desired []types.DesiredOrder, live []types.LiveOrder, sizeTolerance float64, placeInwardOnEqualPrice bool, placer Placer) []types.LiveOrder {
	remaining := append([]types.DesiredOrder(nil), desired...)
	var result []types.LiveOrder

	for _, old := range live {
		if matched, next := claimSamePrice(remaining, old, sizeTolerance, placeInwardOnEqualPrice); matched {
			remaining = next
			result = append(result, old)
			continue
		}

		candidates := inwardCandidates(side, remaining, old.PriceTick)
		placedAny, failed := false, false
		for _, d := range candidates {
			placed, err := placer.Place(ctx, side, d)
			if err != nil {
				failed = true
				break
			}
			remaining = removeByPrice(remaining, d.PriceTick)
			result = append(result, placed)
			placedAny = true
		}

		if failed && !placedAny {
			result = append(result, old)
			continue
		}
		_ = placer.Cancel(ctx, side, old.OID)
	}

	for _, d := range remaining {
		placed, err := placer.Place(ctx, side, d)
		if err != nil {
			continue
		}
		result = append(result, placed)
	}

	sortLive(side, result)
	return result
}

// claimSamePrice looks for a desired level at old's exact price. It reports
// whether old should be kept as-is (a match within tolerance, or any
// equal-price match when placeInwardOnEqualPrice is false) and, if so, the
// desired slice with that level removed.
func claimSamePrice(remaining []types.DesiredOrder, old types.LiveOrder, sizeTolerance float64, placeInwardOnEqualPrice bool) (bool, []types.DesiredOrder) {
	for i, d := range remaining {
		if d.PriceTick != old.PriceTick {
			continue
		}
		if sizeWithinTolerance(old.Volume, d.QuoteAmount, sizeTolerance) || !placeInwardOnEqualPrice {
			return true, append(remaining[:i:i], remaining[i+1:]...)
		}
		return false, remaining
	}
	return false, remaining
}

// inwardCandidates returns the desired levels strictly price-inward of
// oldPrice (bids: higher price, asks: lower price), nearest first.
func inwardCandidates(side types.Side, remaining []types.DesiredOrder, oldPrice types.PriceTick) []types.DesiredOrder {
	var cand []types.DesiredOrder
	for _, d := range remaining {
		if side == types.Buy && d.PriceTick > oldPrice {
			cand = append(cand, d)
		} else if side == types.Sell && d.PriceTick < oldPrice {
			cand = append(cand, d)
		}
	}
	sort.SliceStable(cand, func(i, j int) bool {
		return absTick(cand[i].PriceTick-oldPrice) < absTick(cand[j].PriceTick-oldPrice)
	})
	return cand
}

func removeByPrice(s []types.DesiredOrder, price types.PriceTick) []types.DesiredOrder {
	for i, d := range s {
		if d.PriceTick == price {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}

func absTick(p types.PriceTick) types.PriceTick {
	if p < 0 {
		return -p
	}
	return p
}

func sortLive(side types.Side, live []types.LiveOrder) {
	if side == types.Buy {
		sort.SliceStable(live, func(i, j int) bool { return live[i].PriceTick > live[j].PriceTick })
	} else {
		sort.SliceStable(live, func(i, j int) bool { return live[i].PriceTick < live[j].PriceTick })
	}
}

// sizeWithinTolerance reports whether desiredVol is within tolerance of
// liveVol, relative to liveVol — the live order's own volume, per the
// reconciliation invariant: no retained order may have a desired match whose
// |Δvol|/o.vol exceeds tolerance.
func sizeWithinTolerance(liveVol, desiredVol, tolerance float64) bool {
	if liveVol == 0 {
		return desiredVol == 0
	}
	diff := liveVol - desiredVol
	if diff < 0 {
		diff = -diff
	}
	return diff/liveVol <= tolerance
}
