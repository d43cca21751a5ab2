package account

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xervantex/scalpl/internal/exchange"
	"github.com/xervantex/scalpl/internal/gate"
	"github.com/xervantex/scalpl/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// addOrderCall records one decoded AddOrder POST as seen by the fake
// exchange, for assertions against the retry ladder.
type addOrderCall struct {
	volume string
	oflags string
}

func newFakeAddOrderServer(t *testing.T, responses []func(w http.ResponseWriter, call addOrderCall)) (*httptest.Server, *[]addOrderCall) {
	t.Helper()
	calls := &[]addOrderCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		call := addOrderCall{volume: r.FormValue("volume"), oflags: r.FormValue("oflags")}
		*calls = append(*calls, call)
		idx := len(*calls) - 1
		if idx >= len(responses) {
			t.Fatalf("unexpected AddOrder call %d: %+v", idx, call)
		}
		responses[idx](w, call)
	}))
	return srv, calls
}

func volumeErrorResponse(w http.ResponseWriter, _ addOrderCall) {
	fmt.Fprint(w, `{"error":["EOrder:Invalid volume"]}`)
}

func successResponse(txid string) func(http.ResponseWriter, addOrderCall) {
	return func(w http.ResponseWriter, _ addOrderCall) {
		fmt.Fprintf(w, `{"error":[],"result":{"descr":{"order":"buy"},"txid":["%s"]}}`, txid)
	}
}

func newTestOPE(t *testing.T, srv *httptest.Server) *OPE {
	t.Helper()
	logger := discardLogger()
	signer := &exchange.Signer{}
	rl := exchange.NewRateLimiter(100, 100)
	client := exchange.NewClient(srv.URL, signer, rl, logger)
	ctx := context.Background()
	g := gate.New(ctx, client, signer, logger)
	return NewOPE(ctx, g, "XXBTZUSD", logger)
}

// TestPostLimitRetriesQuoteDenominatedOnFirstVolumeError covers the literal
// PostLimit scenario: the first AddOrder call fails mentioning "volume", and
// the retry must carry oflags=viqc with volume restated as price*volume.
func TestPostLimitRetriesQuoteDenominatedOnFirstVolumeError(t *testing.T) {
	t.Parallel()

	srv, calls := newFakeAddOrderServer(t, []func(http.ResponseWriter, addOrderCall){
		volumeErrorResponse,
		successResponse("TXID-1"),
	})
	defer srv.Close()

	ope := newTestOPE(t, srv)
	order, err := ope.Bid(context.Background(), 10000, 2, 0.5, 4)
	if err != nil {
		t.Fatalf("Bid: %v", err)
	}
	if order.OID != "TXID-1" {
		t.Errorf("OID = %q, want TXID-1", order.OID)
	}

	got := *calls
	if len(got) != 2 {
		t.Fatalf("AddOrder called %d times, want 2", len(got))
	}
	if got[0].oflags != "" {
		t.Errorf("first call oflags = %q, want empty", got[0].oflags)
	}
	if got[1].oflags != "viqc" {
		t.Errorf("second call oflags = %q, want viqc", got[1].oflags)
	}
	if got[1].volume != "50.00" {
		t.Errorf("second call volume = %q, want 50.00 (price*volume)", got[1].volume)
	}
}

// TestPostLimitBumpsVolumeOnSecondVolumeError covers the second rung of the
// ladder: once the viqc retry also fails on volume, the third call bumps the
// quote-denominated volume by the fixed coarse step rather than retrying
// viqc again.
func TestPostLimitBumpsVolumeOnSecondVolumeError(t *testing.T) {
	t.Parallel()

	srv, calls := newFakeAddOrderServer(t, []func(http.ResponseWriter, addOrderCall){
		volumeErrorResponse,
		volumeErrorResponse,
		successResponse("TXID-2"),
	})
	defer srv.Close()

	ope := newTestOPE(t, srv)
	order, err := ope.Bid(context.Background(), 10000, 2, 0.5, 4)
	if err != nil {
		t.Fatalf("Bid: %v", err)
	}
	if order.OID != "TXID-2" {
		t.Errorf("OID = %q, want TXID-2", order.OID)
	}

	got := *calls
	if len(got) != 3 {
		t.Fatalf("AddOrder called %d times, want 3", len(got))
	}
	if got[2].oflags != "viqc" {
		t.Errorf("third call oflags = %q, want viqc", got[2].oflags)
	}
	if got[2].volume != "50.01" {
		t.Errorf("third call volume = %q, want 50.01 (bumped)", got[2].volume)
	}
}

func TestPostLimitSucceedsOnFirstAttempt(t *testing.T) {
	t.Parallel()

	srv, calls := newFakeAddOrderServer(t, []func(http.ResponseWriter, addOrderCall){
		successResponse("TXID-3"),
	})
	defer srv.Close()

	ope := newTestOPE(t, srv)
	order, err := ope.Ask(context.Background(), 10000, 2, 0.5, 4)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if order.OID != "TXID-3" {
		t.Errorf("OID = %q, want TXID-3", order.OID)
	}
	if len(*calls) != 1 {
		t.Fatalf("AddOrder called %d times, want 1", len(*calls))
	}
}

func TestPostLimitNonVolumeErrorDoesNotRetry(t *testing.T) {
	t.Parallel()

	srv, calls := newFakeAddOrderServer(t, []func(http.ResponseWriter, addOrderCall){
		func(w http.ResponseWriter, _ addOrderCall) {
			fmt.Fprint(w, `{"error":["EOrder:Insufficient funds"]}`)
		},
	})
	defer srv.Close()

	ope := newTestOPE(t, srv)
	if _, err := ope.Bid(context.Background(), 10000, 2, 0.5, 4); err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(*calls) != 1 {
		t.Fatalf("AddOrder called %d times, want 1 (no retry on non-volume error)", len(*calls))
	}
}
