package account

import (
	"testing"

	"github.com/xervantex/scalpl/pkg/types"
)

func TestFillsVWAPEmptySetReturnsError(t *testing.T) {
	t.Parallel()

	_, err := fillsVWAP(nil, "XXBTZUSD", nil)
	if err != ErrNoFills {
		t.Errorf("fillsVWAP(nil) error = %v, want ErrNoFills", err)
	}
}

func TestFillsVWAPWeightsByVolume(t *testing.T) {
	t.Parallel()

	fills := []types.Execution{
		{Pair: "XXBTZUSD", Price: 100, Volume: 1, Cost: 100},
		{Pair: "XXBTZUSD", Price: 200, Volume: 3, Cost: 600},
	}

	got, err := fillsVWAP(fills, "XXBTZUSD", nil)
	if err != nil {
		t.Fatalf("fillsVWAP error: %v", err)
	}
	want := 700.0 / 4.0
	if got != want {
		t.Errorf("fillsVWAP() = %v, want %v", got, want)
	}
}

func TestFillsVWAPFiltersByPair(t *testing.T) {
	t.Parallel()

	fills := []types.Execution{
		{Pair: "XXBTZUSD", Price: 100, Volume: 1, Cost: 100},
		{Pair: "XETHZUSD", Price: 2000, Volume: 1, Cost: 2000},
	}

	got, err := fillsVWAP(fills, "XXBTZUSD", nil)
	if err != nil {
		t.Fatalf("fillsVWAP error: %v", err)
	}
	if got != 100 {
		t.Errorf("fillsVWAP() = %v, want 100", got)
	}
}

func TestFillsVWAPFiltersBySide(t *testing.T) {
	t.Parallel()

	fills := []types.Execution{
		{Pair: "XXBTZUSD", Price: 100, Volume: 1, Cost: 100, Side: types.Buy},
		{Pair: "XXBTZUSD", Price: 500, Volume: 1, Cost: 500, Side: types.Sell},
	}
	sell := types.Sell
	got, err := fillsVWAP(fills, "XXBTZUSD", &sell)
	if err != nil {
		t.Fatalf("fillsVWAP error: %v", err)
	}
	if got != 500 {
		t.Errorf("fillsVWAP(sell) = %v, want 500", got)
	}
}
