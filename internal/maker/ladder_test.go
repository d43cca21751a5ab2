package maker

import (
	"math"
	"testing"

	"github.com/xervantex/scalpl/pkg/types"
)

func bidBook() []types.BookLevel {
	return []types.BookLevel{
		{PriceTick: 1000, Volume: 1},
		{PriceTick: 999, Volume: 1},
		{PriceTick: 998, Volume: 1},
		{PriceTick: 997, Volume: 1},
		{PriceTick: 996, Volume: 1},
	}
}

func TestGenerateLadderCapsAtMaxOrders(t *testing.T) {
	t.Parallel()

	out := GenerateLadder(types.Buy, bidBook(), 10, 100, 1, 3)
	if len(out) > 3 {
		t.Fatalf("GenerateLadder produced %d orders, want <= 3", len(out))
	}
}

func TestGenerateLadderAllocatesAllFunds(t *testing.T) {
	t.Parallel()

	out := GenerateLadder(types.Buy, bidBook(), 10, 100, 1, 3)
	var sum float64
	for _, d := range out {
		sum += d.QuoteAmount
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Errorf("allocated funds = %v, want 100", sum)
	}
}

func TestGenerateLadderPricesAreInputPlusDelta(t *testing.T) {
	t.Parallel()

	book := bidBook()
	inputs := make(map[types.PriceTick]bool, len(book))
	for _, lvl := range book {
		inputs[lvl.PriceTick] = true
	}

	out := GenerateLadder(types.Buy, book, 10, 100, 1, 3)
	for _, d := range out {
		if !inputs[d.PriceTick-1] {
			t.Errorf("output price %d does not equal any input price + delta", d.PriceTick)
		}
	}
}

func TestGenerateLadderAlwaysKeepsHeadLevel(t *testing.T) {
	t.Parallel()

	// Resilience far larger than total book volume: the walk exhausts the
	// book without ever reaching resilience. The head level must still be
	// present in the output (open question (a), resolved).
	out := GenerateLadder(types.Buy, bidBook(), 1000, 100, 1, 2)
	found := false
	for _, d := range out {
		if d.PriceTick == bidBook()[0].PriceTick+1 {
			found = true
		}
	}
	if !found {
		t.Errorf("GenerateLadder output %v does not include the head level", out)
	}
}

func TestGenerateLadderSortsDescendingForBids(t *testing.T) {
	t.Parallel()

	out := GenerateLadder(types.Buy, bidBook(), 10, 100, 1, 5)
	for i := 1; i < len(out); i++ {
		if out[i-1].PriceTick < out[i].PriceTick {
			t.Fatalf("bid ladder not sorted descending: %v", out)
		}
	}
}

func TestGenerateLadderSortsAscendingForAsks(t *testing.T) {
	t.Parallel()

	book := []types.BookLevel{
		{PriceTick: 1000, Volume: 1},
		{PriceTick: 1001, Volume: 1},
		{PriceTick: 1002, Volume: 1},
	}
	out := GenerateLadder(types.Sell, book, 10, 100, -1, 5)
	for i := 1; i < len(out); i++ {
		if out[i-1].PriceTick > out[i].PriceTick {
			t.Fatalf("ask ladder not sorted ascending: %v", out)
		}
	}
}

func TestGenerateLadderEmptyBook(t *testing.T) {
	t.Parallel()

	if out := GenerateLadder(types.Buy, nil, 10, 100, 1, 3); out != nil {
		t.Errorf("GenerateLadder(empty book) = %v, want nil", out)
	}
}

func TestProfitMarginAboveOneWhenSpreadCoversFee(t *testing.T) {
	t.Parallel()

	// bid=1000, ask=1010 at 2 decimals (10.00/10.10), fee 0.1%.
	margin := ProfitMargin(1000, 1010, 0.1, 2)
	if margin <= 1 {
		t.Errorf("ProfitMargin = %v, want > 1", margin)
	}
}

func TestProfitMarginBelowOneWhenSpreadThin(t *testing.T) {
	t.Parallel()

	margin := ProfitMargin(1000, 1001, 1.0, 2)
	if margin > 1 {
		t.Errorf("ProfitMargin = %v, want <= 1", margin)
	}
}
