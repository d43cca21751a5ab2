package maker

import (
	"github.com/xervantex/scalpl/pkg/types"
)

// volumeEpsilon is the tolerance below which a book level is considered
// fully consumed by ignore-mine subtraction — floating point volume sums
// rarely land on exactly zero.
const volumeEpsilon = 1e-3

// IgnoreMine removes the maker's own live orders from a raw book side
// before it's used to compute quotes: without this, the maker would treat
// its own resting liquidity as market depth and progressively quote
// against itself.
func IgnoreMine(levels []types.BookLevel, mine []types.LiveOrder) []types.BookLevel {
	if len(mine) == 0 {
		return levels
	}
	mineByTick := make(map[types.PriceTick]float64, len(mine))
	for _, o := range mine {
		mineByTick[o.PriceTick] += o.Volume
	}

	out := make([]types.BookLevel, 0, len(levels))
	for _, lvl := range levels {
		remaining := lvl.Volume - mineByTick[lvl.PriceTick]
		if remaining > volumeEpsilon {
			out = append(out, types.BookLevel{PriceTick: lvl.PriceTick, Volume: remaining})
		}
	}
	return out
}

// CrossSpread implements spec.md section 4.7.4's spread-crossing walk: it
// eats tops off whichever cleaned side has the thinner top-of-book residual
// until the margin a quote placed one tick inside each remaining top would
// earn, net of fees, exceeds 1 — i.e. until the spread between the
// surviving tops is wide enough to quote into profitably. bids must be
// sorted descending by price, asks ascending; both are returned trimmed to
// their surviving prefix (never mutated in place).
func CrossSpread(bids, asks []types.BookLevel, feePct float64, priceDecimals int) (survivingBids, survivingAsks []types.BookLevel) {
	for len(bids) > 0 && len(asks) > 0 {
		margin := ProfitMargin(bids[0].PriceTick+1, asks[0].PriceTick-1, feePct, priceDecimals)
		if margin > 1 {
			break
		}
		diff := bids[0].Volume - asks[0].Volume
		switch {
		case diff > 0:
			asks = asks[1:]
		case diff < 0:
			bids = bids[1:]
		default:
			bids = bids[1:]
			asks = asks[1:]
		}
	}
	return bids, asks
}
