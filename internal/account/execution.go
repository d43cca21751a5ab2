// Package account implements ExecutionTracker ("lictor"), AccountTracker,
// and the OrderPlacementEngine — the three actors that sit between the Gate
// and the Maker on the account side of the mesh.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/xervantex/scalpl/internal/gate"
	"github.com/xervantex/scalpl/internal/supervisor"
	"github.com/xervantex/scalpl/pkg/types"
)

// ExecutionTracker ("lictor") fetches the account's own-fill history and
// hands executions to its consumer one at a time, oldest first, advancing a
// monotonic cursor so no fill is ever replayed or skipped. Its name and
// pagination contract follow the "lictor" role exactly: it walks ahead of
// the AccountTracker, clearing a path through the exchange's paginated
// history endpoint.
type ExecutionTracker struct {
	gate   *gate.Gate
	delay  time.Duration
	logger *slog.Logger
	out    chan types.Execution
	since  time.Time
}

// NewExecutionTracker starts the supervised updater goroutine. since is the
// cursor to resume from (zero value fetches all available history).
func NewExecutionTracker(ctx context.Context, g *gate.Gate, since time.Time, delay time.Duration, logger *slog.Logger) *ExecutionTracker {
	e := &ExecutionTracker{
		gate:   g,
		delay:  delay,
		logger: logger.With("component", "lictor"),
		out:    make(chan types.Execution),
		since:  since,
	}
	go supervisor.Run(ctx, e.logger, "lictor", e.run)
	return e
}

// Executions returns the channel executions are delivered on, oldest first.
func (e *ExecutionTracker) Executions() <-chan types.Execution {
	return e.out
}

func (e *ExecutionTracker) run(ctx context.Context) {
	ticker := time.NewTicker(e.delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.fetchPage(ctx); err != nil {
				e.logger.Warn("execution history fetch failed", "error", err)
			}
		}
	}
}

// fetchPage walks the full paginated result set for the current cursor:
// TradesHistory reports a total Count up front, and successive calls with
// an increasing ofs return the next slice of that same result set. The
// tracker keeps paging until it has accumulated exactly Count executions,
// asserting that invariant on every page — a short page means either the
// exchange under-reported Count or dropped a row, either of which is a bug
// worth surfacing rather than silently under-delivering fills.
func (e *ExecutionTracker) fetchPage(ctx context.Context) error {
	start := ""
	if !e.since.IsZero() {
		start = strconv.FormatFloat(float64(e.since.UnixNano())/1e9, 'f', -1, 64)
	}

	var accum []types.Execution
	var wantCount int
	ofs := 0
	for {
		page, err := e.gate.TradesHistory(ctx, start, "", ofs)
		if err != nil {
			return fmt.Errorf("trades history ofs=%d: %w", ofs, err)
		}
		if ofs == 0 {
			wantCount = page.Count
		} else if page.Count != wantCount {
			return fmt.Errorf("execution history count changed mid-walk: got %d want %d", page.Count, wantCount)
		}
		if len(page.Trades) == 0 {
			break
		}
		for txid, raw := range page.Trades {
			ev, err := rawExecutionToExecution(txid, raw)
			if err != nil {
				return fmt.Errorf("decode execution %s: %w", txid, err)
			}
			accum = append(accum, ev)
		}
		ofs += len(page.Trades)
		if ofs >= wantCount {
			break
		}
	}
	if len(accum) != wantCount {
		return fmt.Errorf("execution history page-count mismatch: got %d want %d", len(accum), wantCount)
	}

	sort.Slice(accum, func(i, j int) bool { return accum[i].Timestamp.Before(accum[j].Timestamp) })

	for _, ev := range accum {
		if !ev.Timestamp.After(e.since) && !e.since.IsZero() {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e.out <- ev:
		}
		if ev.Timestamp.After(e.since) {
			e.since = ev.Timestamp
		}
	}
	return nil
}

func rawExecutionToExecution(txid string, raw types.RawExecution) (types.Execution, error) {
	price, err := parseFloat(raw.Price)
	if err != nil {
		return types.Execution{}, err
	}
	volume, err := parseFloat(raw.Volume)
	if err != nil {
		return types.Execution{}, err
	}
	cost, err := parseFloat(raw.Cost)
	if err != nil {
		return types.Execution{}, err
	}
	fee, err := parseFloat(raw.Fee)
	if err != nil {
		return types.Execution{}, err
	}
	side := types.Buy
	if raw.Side == "sell" {
		side = types.Sell
	}
	return types.Execution{
		OID:       raw.OrderTxID,
		TxID:      txid,
		Timestamp: unixToTime(raw.Time),
		Side:      side,
		Pair:      raw.Pair,
		Price:     price,
		Volume:    volume,
		Cost:      cost,
		Fee:       fee,
	}, nil
}
