// Package market implements the two market-data trackers: TradesTracker
// (public trade tape) and BookTracker (order book depth).
package market

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xervantex/scalpl/internal/gate"
	"github.com/xervantex/scalpl/internal/supervisor"
	"github.com/xervantex/scalpl/pkg/types"
)

// coalesceWindow is the gap below which two adjacent trades with the same
// side, kind and tag are merged into a single TradeEvent, whatever their
// prices. The exchange sometimes
// reports one aggressor fill as several trade rows a few milliseconds
// apart; treating those as independent events would double-count volume
// when sizing against recent activity.
const coalesceWindow = 300 * time.Millisecond

// ErrNoTrades is returned by VWAP when the requested window contains no
// trades, rather than silently returning NaN.
var ErrNoTrades = errors.New("market: vwap over empty trade set")

type tradesControlOp int

const (
	opMax tradesControlOp = iota
	opVWAP
	opPause
	opResume
)

type tradesControlRequest struct {
	op     tradesControlOp
	since  time.Time
	side   *types.Side
	result chan tradesControlResult
}

type tradesControlResult struct {
	max  float64
	vwap float64
	err  error
}

// TradesTracker accumulates public trades for one pair and serves derived
// queries (recent max volume, VWAP over a window) to the Maker.
type TradesTracker struct {
	gate    *gate.Gate
	pair    string
	delay   time.Duration
	logger  *slog.Logger
	ingest  chan []types.TradeEvent
	control chan tradesControlRequest
}

// NewTradesTracker starts the updater and worker goroutines, both
// supervised.
func NewTradesTracker(ctx context.Context, g *gate.Gate, pair string, delay time.Duration, logger *slog.Logger) *TradesTracker {
	t := &TradesTracker{
		gate:    g,
		pair:    pair,
		delay:   delay,
		logger:  logger.With("component", "trades_tracker", "pair", pair),
		ingest:  make(chan []types.TradeEvent),
		control: make(chan tradesControlRequest),
	}
	go supervisor.Run(ctx, t.logger, "trades_tracker_updater", t.runUpdater)
	go supervisor.Run(ctx, t.logger, "trades_tracker_worker", t.runWorker)
	return t
}

func (t *TradesTracker) runUpdater(ctx context.Context) {
	since := ""
	ticker := time.NewTicker(t.delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resp, err := t.gate.Trades(ctx, t.pair, since)
			if err != nil {
				t.logger.Warn("trades poll failed", "error", err)
				continue
			}
			since = resp.Last
			events := make([]types.TradeEvent, 0, len(resp.Trades))
			for _, raw := range resp.Trades {
				ev, err := rawTradeToEvent(raw)
				if err != nil {
					t.logger.Warn("malformed trade row", "error", err)
					continue
				}
				events = append(events, ev)
			}
			if len(events) == 0 {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case t.ingest <- events:
			}
		}
	}
}

func rawTradeToEvent(raw types.RawTrade) (types.TradeEvent, error) {
	price, err := parseFloat(raw.Price)
	if err != nil {
		return types.TradeEvent{}, err
	}
	volume, err := parseFloat(raw.Volume)
	if err != nil {
		return types.TradeEvent{}, err
	}
	side := types.Buy
	if raw.Side == "s" {
		side = types.Sell
	}
	return types.TradeEvent{
		Timestamp: timeFromUnix(raw.Time),
		Volume:    volume,
		Price:     price,
		Cost:      volume * price,
		Side:      side,
		Kind:      kindFromCode(raw.Kind),
		Tag:       raw.Misc,
	}, nil
}

func kindFromCode(code string) string {
	if code == "l" {
		return "limit"
	}
	return "market"
}

func (t *TradesTracker) runWorker(ctx context.Context) {
	var events []types.TradeEvent
	paused := false

	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-t.ingest:
			if paused {
				continue
			}
			events = coalesce(append(events, batch...))
		case req := <-t.control:
			switch req.op {
			case opPause:
				paused = true
				req.result <- tradesControlResult{}
			case opResume:
				paused = false
				req.result <- tradesControlResult{}
			case opMax:
				req.result <- tradesControlResult{max: maxVolume(events)}
			case opVWAP:
				v, err := vwap(events, req.since, req.side)
				req.result <- tradesControlResult{vwap: v, err: err}
			}
		}
	}
}

// coalesce merges adjacent trades with identical side/kind/tag whose
// timestamps differ by less than coalesceWindow into a single
// volume-weighted record. The merged record keeps the earlier of the two
// timestamps — later trades folding into an existing record never push its
// timestamp forward.
func coalesce(events []types.TradeEvent) []types.TradeEvent {
	if len(events) == 0 {
		return events
	}
	out := make([]types.TradeEvent, 0, len(events))
	out = append(out, events[0])
	for _, ev := range events[1:] {
		last := &out[len(out)-1]
		gap := ev.Timestamp.Sub(last.Timestamp)
		if gap < 0 {
			gap = -gap
		}
		if ev.Side == last.Side && ev.Kind == last.Kind && ev.Tag == last.Tag && gap < coalesceWindow {
			last.Volume += ev.Volume
			last.Cost += ev.Cost
			last.Price = last.Cost / last.Volume
			if ev.Timestamp.Before(last.Timestamp) {
				last.Timestamp = ev.Timestamp
			}
			continue
		}
		out = append(out, ev)
	}
	return out
}

func maxVolume(events []types.TradeEvent) float64 {
	var max float64
	for _, ev := range events {
		if ev.Volume > max {
			max = ev.Volume
		}
	}
	return max
}

func vwap(events []types.TradeEvent, since time.Time, side *types.Side) (float64, error) {
	var volSum, costSum float64
	for _, ev := range events {
		if !since.IsZero() && ev.Timestamp.Before(since) {
			continue
		}
		if side != nil && ev.Side != *side {
			continue
		}
		volSum += ev.Volume
		costSum += ev.Cost
	}
	if volSum == 0 {
		return 0, ErrNoTrades
	}
	return costSum / volSum, nil
}

func (t *TradesTracker) request(ctx context.Context, req tradesControlRequest) (tradesControlResult, error) {
	req.result = make(chan tradesControlResult, 1)
	select {
	case <-ctx.Done():
		return tradesControlResult{}, ctx.Err()
	case t.control <- req:
	}
	select {
	case <-ctx.Done():
		return tradesControlResult{}, ctx.Err()
	case r := <-req.result:
		return r, nil
	}
}

// Max returns the largest single-trade volume currently held.
func (t *TradesTracker) Max(ctx context.Context) (float64, error) {
	r, err := t.request(ctx, tradesControlRequest{op: opMax})
	return r.max, err
}

// VWAP returns the volume-weighted average price since the given time
// (zero value for all history) and side (nil for both sides). Returns
// ErrNoTrades if the window is empty.
func (t *TradesTracker) VWAP(ctx context.Context, since time.Time, side *types.Side) (float64, error) {
	r, err := t.request(ctx, tradesControlRequest{op: opVWAP, since: since, side: side})
	if err != nil {
		return 0, err
	}
	return r.vwap, r.err
}

// Pause stops the worker from ingesting new trades until Resume, mirroring
// the pause-as-quiescence contract shared across actors.
func (t *TradesTracker) Pause(ctx context.Context) error {
	_, err := t.request(ctx, tradesControlRequest{op: opPause})
	return err
}

// Resume reverses Pause.
func (t *TradesTracker) Resume(ctx context.Context) error {
	_, err := t.request(ctx, tradesControlRequest{op: opResume})
	return err
}
