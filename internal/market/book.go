package market

import (
	"context"
	"log/slog"
	"time"

	"github.com/xervantex/scalpl/internal/gate"
	"github.com/xervantex/scalpl/internal/supervisor"
	"github.com/xervantex/scalpl/pkg/types"
)

type bookControlOp int

const (
	bookOpBids bookControlOp = iota
	bookOpAsks
	bookOpUpdatedAt
	bookOpPause
	bookOpResume
)

type bookControlRequest struct {
	op     bookControlOp
	result chan bookControlResult
}

type bookControlResult struct {
	levels    []types.BookLevel
	updatedAt time.Time
}

// BookTracker maintains the latest order book snapshot for one pair and
// serves it to the Maker on demand. Prices are truncated (never rounded) to
// the pair's tick precision as soon as they cross the exchange boundary, so
// every downstream consumer works in the same integer price space.
type BookTracker struct {
	gate         *gate.Gate
	pair         string
	count        int
	pairDecimals int
	delay        time.Duration
	logger       *slog.Logger
	ingest       chan types.DepthResponse
	control      chan bookControlRequest
}

// NewBookTracker starts the updater and worker goroutines, both supervised.
func NewBookTracker(ctx context.Context, g *gate.Gate, pair string, count, pairDecimals int, delay time.Duration, logger *slog.Logger) *BookTracker {
	b := &BookTracker{
		gate:         g,
		pair:         pair,
		count:        count,
		pairDecimals: pairDecimals,
		delay:        delay,
		logger:       logger.With("component", "book_tracker", "pair", pair),
		ingest:       make(chan types.DepthResponse),
		control:      make(chan bookControlRequest),
	}
	go supervisor.Run(ctx, b.logger, "book_tracker_updater", b.runUpdater)
	go supervisor.Run(ctx, b.logger, "book_tracker_worker", b.runWorker)
	return b
}

func (b *BookTracker) runUpdater(ctx context.Context) {
	ticker := time.NewTicker(b.delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resp, err := b.gate.Depth(ctx, b.pair, b.count)
			if err != nil {
				b.logger.Warn("depth poll failed", "error", err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case b.ingest <- resp:
			}
		}
	}
}

func (b *BookTracker) runWorker(ctx context.Context) {
	var bids, asks []types.BookLevel
	var updatedAt time.Time
	paused := false

	for {
		select {
		case <-ctx.Done():
			return
		case resp := <-b.ingest:
			if paused {
				continue
			}
			var err error
			bids, err = toLevels(resp.Bids, b.pairDecimals)
			if err != nil {
				b.logger.Warn("malformed bid level", "error", err)
				continue
			}
			asks, err = toLevels(resp.Asks, b.pairDecimals)
			if err != nil {
				b.logger.Warn("malformed ask level", "error", err)
				continue
			}
			updatedAt = time.Now()
		case req := <-b.control:
			switch req.op {
			case bookOpPause:
				paused = true
				req.result <- bookControlResult{}
			case bookOpResume:
				paused = false
				req.result <- bookControlResult{}
			case bookOpBids:
				req.result <- bookControlResult{levels: cloneLevels(bids), updatedAt: updatedAt}
			case bookOpAsks:
				req.result <- bookControlResult{levels: cloneLevels(asks), updatedAt: updatedAt}
			case bookOpUpdatedAt:
				req.result <- bookControlResult{updatedAt: updatedAt}
			}
		}
	}
}

func toLevels(rows []types.DepthLevel, decimals int) ([]types.BookLevel, error) {
	out := make([]types.BookLevel, 0, len(rows))
	for _, r := range rows {
		tick, err := types.ParsePriceTick(r.Price, decimals)
		if err != nil {
			return nil, err
		}
		vol, err := parseFloat(r.Volume)
		if err != nil {
			return nil, err
		}
		out = append(out, types.BookLevel{PriceTick: tick, Volume: vol})
	}
	return out, nil
}

func cloneLevels(in []types.BookLevel) []types.BookLevel {
	out := make([]types.BookLevel, len(in))
	copy(out, in)
	return out
}

func (b *BookTracker) request(ctx context.Context, op bookControlOp) (bookControlResult, error) {
	req := bookControlRequest{op: op, result: make(chan bookControlResult, 1)}
	select {
	case <-ctx.Done():
		return bookControlResult{}, ctx.Err()
	case b.control <- req:
	}
	select {
	case <-ctx.Done():
		return bookControlResult{}, ctx.Err()
	case r := <-req.result:
		return r, nil
	}
}

// Bids returns a snapshot of the current bid side, best first.
func (b *BookTracker) Bids(ctx context.Context) ([]types.BookLevel, error) {
	r, err := b.request(ctx, bookOpBids)
	return r.levels, err
}

// Asks returns a snapshot of the current ask side, best first.
func (b *BookTracker) Asks(ctx context.Context) ([]types.BookLevel, error) {
	r, err := b.request(ctx, bookOpAsks)
	return r.levels, err
}

// UpdatedAt returns when the book was last refreshed, for the Maker's
// stale-book guard.
func (b *BookTracker) UpdatedAt(ctx context.Context) (time.Time, error) {
	r, err := b.request(ctx, bookOpUpdatedAt)
	return r.updatedAt, err
}

// IsStale reports whether the book hasn't refreshed within maxAge.
func (b *BookTracker) IsStale(ctx context.Context, maxAge time.Duration) (bool, error) {
	t, err := b.UpdatedAt(ctx)
	if err != nil {
		return true, err
	}
	if t.IsZero() {
		return true, nil
	}
	return time.Since(t) > maxAge, nil
}

// Pause stops the worker from ingesting new snapshots.
func (b *BookTracker) Pause(ctx context.Context) error {
	_, err := b.request(ctx, bookOpPause)
	return err
}

// Resume reverses Pause.
func (b *BookTracker) Resume(ctx context.Context) error {
	_, err := b.request(ctx, bookOpResume)
	return err
}
