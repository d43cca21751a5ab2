package account

import (
	"testing"

	"github.com/xervantex/scalpl/pkg/types"
)

func TestRawExecutionToExecutionDecodesFields(t *testing.T) {
	t.Parallel()

	raw := types.RawExecution{
		OrderTxID: "OID-1",
		Pair:      "XXBTZUSD",
		Time:      1700000000.5,
		Side:      "buy",
		Price:     "100.50",
		Volume:    "0.1",
		Cost:      "10.05",
		Fee:       "0.01",
	}

	ev, err := rawExecutionToExecution("TXID-1", raw)
	if err != nil {
		t.Fatalf("rawExecutionToExecution error: %v", err)
	}
	if ev.OID != "OID-1" || ev.TxID != "TXID-1" {
		t.Errorf("ids mismatch: %+v", ev)
	}
	if ev.Side != types.Buy {
		t.Errorf("Side = %v, want Buy", ev.Side)
	}
	if ev.Price != 100.50 || ev.Volume != 0.1 || ev.Cost != 10.05 || ev.Fee != 0.01 {
		t.Errorf("numeric fields mismatch: %+v", ev)
	}
}

func TestRawExecutionToExecutionSellSide(t *testing.T) {
	t.Parallel()

	raw := types.RawExecution{Side: "sell", Price: "1", Volume: "1", Cost: "1", Fee: "0"}
	ev, err := rawExecutionToExecution("TXID-2", raw)
	if err != nil {
		t.Fatalf("rawExecutionToExecution error: %v", err)
	}
	if ev.Side != types.Sell {
		t.Errorf("Side = %v, want Sell", ev.Side)
	}
}

func TestRawExecutionToExecutionRejectsMalformedPrice(t *testing.T) {
	t.Parallel()

	raw := types.RawExecution{Price: "not-a-number", Volume: "1", Cost: "1", Fee: "0"}
	if _, err := rawExecutionToExecution("TXID-3", raw); err == nil {
		t.Error("expected error for malformed price")
	}
}
