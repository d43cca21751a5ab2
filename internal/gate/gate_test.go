package gate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xervantex/scalpl/internal/exchange"
	"github.com/xervantex/scalpl/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGate(t *testing.T, handler http.HandlerFunc) *Gate {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	signer := &exchange.Signer{}
	rl := exchange.NewRateLimiter(100, 100)
	client := exchange.NewClient(srv.URL, signer, rl, discardLogger())
	return New(context.Background(), client, signer, discardLogger())
}

func TestGateAddOrderRoundTrips(t *testing.T) {
	t.Parallel()

	g := newTestGate(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":[],"result":{"descr":{"order":"buy"},"txid":["TX-1"]}}`)
	})

	res, err := g.AddOrder(context.Background(), types.AddOrderOptions{
		Type: "limit", Side: types.Buy, Pair: "XXBTZUSD", Price: "100.00", Volume: "1.0",
	})
	if err != nil {
		t.Fatalf("AddOrder: %v", err)
	}
	if len(res.TxID) != 1 || res.TxID[0] != "TX-1" {
		t.Errorf("AddOrder() = %+v, want txid TX-1", res)
	}
}

func TestGateAddOrderPropagatesAPIError(t *testing.T) {
	t.Parallel()

	g := newTestGate(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":["EOrder:Insufficient funds"]}`)
	})

	if _, err := g.AddOrder(context.Background(), types.AddOrderOptions{Type: "limit", Side: types.Buy, Pair: "XXBTZUSD", Price: "1", Volume: "1"}); err == nil {
		t.Error("expected error from AddOrder")
	}
}

func TestGateCancelOrderTreatsUnknownOrderAsSuccess(t *testing.T) {
	t.Parallel()

	g := newTestGate(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":["EOrder:Unknown order"]}`)
	})

	res, err := g.CancelOrder(context.Background(), "TX-GONE")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if res.Count != 0 {
		t.Errorf("CancelOrder() count = %d, want 0", res.Count)
	}
}

func TestGateDepthDecodesLevels(t *testing.T) {
	t.Parallel()

	g := newTestGate(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":[],"result":{"XXBTZUSD":{"bids":[["100.00","1.5",1700000000]],"asks":[["101.00","2.0",1700000000]]}}}`)
	})

	depth, err := g.Depth(context.Background(), "XXBTZUSD", 10)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if len(depth.Bids) != 1 || depth.Bids[0].Price != "100.00" {
		t.Errorf("Depth() bids = %+v, want one level at 100.00", depth.Bids)
	}
	if len(depth.Asks) != 1 || depth.Asks[0].Price != "101.00" {
		t.Errorf("Depth() asks = %+v, want one level at 101.00", depth.Asks)
	}
}
