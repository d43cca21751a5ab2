package maker

import (
	"context"
	"errors"
	"testing"

	"github.com/xervantex/scalpl/pkg/types"
)

// fakePlacer is a deterministic Placer for reconciliation tests: it records
// every place/cancel call and lets the test script which prices fail.
type fakePlacer struct {
	nextOID    int
	failPrices map[types.PriceTick]bool
	placed     []types.DesiredOrder
	cancelled  []string
}

func (f *fakePlacer) Place(_ context.Context, _ types.Side, d types.DesiredOrder) (types.LiveOrder, error) {
	if f.failPrices[d.PriceTick] {
		return types.LiveOrder{}, errors.New("placement failed")
	}
	f.nextOID++
	f.placed = append(f.placed, d)
	return types.LiveOrder{OID: oidFor(f.nextOID), PriceTick: d.PriceTick, Volume: d.QuoteAmount}, nil
}

func (f *fakePlacer) Cancel(_ context.Context, _ types.Side, oid string) error {
	f.cancelled = append(f.cancelled, oid)
	return nil
}

func oidFor(n int) string {
	return "oid-" + string(rune('0'+n))
}

func TestReconcileKeepsMatchWithinTolerance(t *testing.T) {
	t.Parallel()

	desired := []types.DesiredOrder{{PriceTick: 1000, QuoteAmount: 1.0}}
	live := []types.LiveOrder{{OID: "old-1", PriceTick: 1000, Volume: 1.05}}
	p := &fakePlacer{}

	got := Reconcile(context.Background(), types.Buy, desired, live, 0.15, false, p)
	if len(got) != 1 || got[0].OID != "old-1" {
		t.Fatalf("Reconcile() = %v, want old order retained", got)
	}
	if len(p.placed) != 0 || len(p.cancelled) != 0 {
		t.Errorf("Reconcile() made unexpected calls: placed=%v cancelled=%v", p.placed, p.cancelled)
	}
}

func TestReconcilePlacesInwardBeforeCancelling(t *testing.T) {
	t.Parallel()

	// old sits at 1000; desired ladder has moved entirely to 1002 (inward
	// for a bid). The inward candidate must be placed before old is
	// cancelled.
	desired := []types.DesiredOrder{{PriceTick: 1002, QuoteAmount: 1.0}}
	live := []types.LiveOrder{{OID: "old-1", PriceTick: 1000, Volume: 1.0}}
	p := &fakePlacer{}

	got := Reconcile(context.Background(), types.Buy, desired, live, 0.15, false, p)
	if len(p.placed) != 1 || p.placed[0].PriceTick != 1002 {
		t.Fatalf("Reconcile() placed %v, want the inward level placed", p.placed)
	}
	if len(p.cancelled) != 1 || p.cancelled[0] != "old-1" {
		t.Fatalf("Reconcile() cancelled %v, want old-1 cancelled after replacement placed", p.cancelled)
	}
	foundNew := false
	for _, o := range got {
		if o.PriceTick == 1002 {
			foundNew = true
		}
	}
	if !foundNew {
		t.Errorf("Reconcile() result %v missing newly placed order", got)
	}
}

func TestReconcileNeverShrinksSideOnPlacementFailure(t *testing.T) {
	t.Parallel()

	// The only inward candidate fails to place: old must be kept, not
	// cancelled, so the side never ends up with fewer resting orders.
	desired := []types.DesiredOrder{{PriceTick: 1002, QuoteAmount: 1.0}}
	live := []types.LiveOrder{{OID: "old-1", PriceTick: 1000, Volume: 1.0}}
	p := &fakePlacer{failPrices: map[types.PriceTick]bool{1002: true}}

	got := Reconcile(context.Background(), types.Buy, desired, live, 0.15, false, p)
	if len(got) != 1 || got[0].OID != "old-1" {
		t.Fatalf("Reconcile() = %v, want old order kept after placement failure", got)
	}
	if len(p.cancelled) != 0 {
		t.Errorf("Reconcile() cancelled %v, want no cancellation on placement failure", p.cancelled)
	}
}

func TestReconcileCancelsWhenNoInwardCandidate(t *testing.T) {
	t.Parallel()

	// Desired ladder is entirely outward of old (bids: desired below old):
	// no inward candidate exists for a bid, so old must be cancelled.
	desired := []types.DesiredOrder{{PriceTick: 998, QuoteAmount: 1.0}}
	live := []types.LiveOrder{{OID: "old-1", PriceTick: 1000, Volume: 1.0}}
	p := &fakePlacer{}

	got := Reconcile(context.Background(), types.Buy, desired, live, 0.15, false, p)
	for _, o := range got {
		if o.OID == "old-1" {
			t.Fatalf("Reconcile() kept old-1, want it cancelled (no inward candidate)")
		}
	}
	if len(p.cancelled) != 1 || p.cancelled[0] != "old-1" {
		t.Errorf("Reconcile() cancelled %v, want old-1 cancelled", p.cancelled)
	}
	// The remaining desired level, now unclaimed, must still be placed.
	if len(p.placed) != 1 || p.placed[0].PriceTick != 998 {
		t.Errorf("Reconcile() placed %v, want the leftover desired level placed", p.placed)
	}
}

func TestReconcilePlacesLeftoverDesiredOrders(t *testing.T) {
	t.Parallel()

	desired := []types.DesiredOrder{
		{PriceTick: 1000, QuoteAmount: 1.0},
		{PriceTick: 999, QuoteAmount: 1.0},
	}
	p := &fakePlacer{}

	got := Reconcile(context.Background(), types.Buy, desired, nil, 0.15, false, p)
	if len(got) != 2 {
		t.Fatalf("Reconcile() = %v, want both desired levels placed", got)
	}
	if got[0].PriceTick < got[1].PriceTick {
		t.Errorf("Reconcile() result not sorted descending for bids: %v", got)
	}
}

func TestReconcileEqualPriceAlwaysMatchesByDefault(t *testing.T) {
	t.Parallel()

	// placeInwardOnEqualPrice=false: an equal-price level counts as matched
	// even far outside the size tolerance.
	desired := []types.DesiredOrder{{PriceTick: 1000, QuoteAmount: 100.0}}
	live := []types.LiveOrder{{OID: "old-1", PriceTick: 1000, Volume: 1.0}}
	p := &fakePlacer{}

	got := Reconcile(context.Background(), types.Buy, desired, live, 0.15, false, p)
	if len(got) != 1 || got[0].OID != "old-1" {
		t.Fatalf("Reconcile() = %v, want equal-price order kept regardless of size drift", got)
	}
	if len(p.placed) != 0 || len(p.cancelled) != 0 {
		t.Errorf("Reconcile() made unexpected calls: placed=%v cancelled=%v", p.placed, p.cancelled)
	}
}

func TestSizeWithinToleranceDividesByLiveVolume(t *testing.T) {
	t.Parallel()

	// desired (1.16) exceeds live (1.0) by 16%, just over the 15% tolerance
	// relative to live. Dividing by max(live, desired) instead would put the
	// ratio at 0.16/1.16 ≈ 13.8%, wrongly reporting it within tolerance.
	if sizeWithinTolerance(1.0, 1.16, 0.15) {
		t.Error("sizeWithinTolerance(1.0, 1.16, 0.15) = true, want false (ratio measured against live volume)")
	}
	if !sizeWithinTolerance(1.0, 1.1, 0.15) {
		t.Error("sizeWithinTolerance(1.0, 1.1, 0.15) = false, want true")
	}
}

func TestReconcileRequotesWhenDesiredExceedsLiveByTolerance(t *testing.T) {
	t.Parallel()

	// Same setup as TestSizeWithinToleranceDividesByLiveVolume, exercised
	// through Reconcile with placeInwardOnEqualPrice set so an equal-price
	// match actually runs the tolerance check instead of auto-matching: the
	// live order must not be kept, and since there's no inward candidate at
	// this price it gets cancelled and the desired level is placed fresh.
	desired := []types.DesiredOrder{{PriceTick: 1000, QuoteAmount: 1.16}}
	live := []types.LiveOrder{{OID: "old-1", PriceTick: 1000, Volume: 1.0}}
	p := &fakePlacer{}

	got := Reconcile(context.Background(), types.Buy, desired, live, 0.15, true, p)
	if len(p.cancelled) != 1 || p.cancelled[0] != "old-1" {
		t.Fatalf("Reconcile() cancelled %v, want old-1 re-quoted", p.cancelled)
	}
	if len(got) != 1 || got[0].PriceTick != 1000 {
		t.Fatalf("Reconcile() = %v, want fresh order at 1000", got)
	}
}

func TestReconcileEqualPriceDemotedWhenConfigured(t *testing.T) {
	t.Parallel()

	desired := []types.DesiredOrder{{PriceTick: 1000, QuoteAmount: 100.0}}
	live := []types.LiveOrder{{OID: "old-1", PriceTick: 1000, Volume: 1.0}}
	p := &fakePlacer{}

	// Price 1000 is not strictly inward of old's own price (1000), so there
	// is no inward candidate even with the flag set: old is cancelled, and
	// the only desired level falls through to the leftover placement pass,
	// landing a fresh order at the same price.
	got := Reconcile(context.Background(), types.Buy, desired, live, 0.15, true, p)
	if len(p.cancelled) != 1 || p.cancelled[0] != "old-1" {
		t.Fatalf("Reconcile() cancelled %v, want old-1 cancelled", p.cancelled)
	}
	if len(got) != 1 || got[0].PriceTick != 1000 {
		t.Fatalf("Reconcile() = %v, want one fresh order at 1000", got)
	}
}
