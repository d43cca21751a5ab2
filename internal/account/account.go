package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xervantex/scalpl/internal/gate"
	"github.com/xervantex/scalpl/internal/supervisor"
	"github.com/xervantex/scalpl/pkg/types"
)

// ErrNoFills mirrors market.ErrNoTrades for the own-fill VWAP query.
var ErrNoFills = errors.New("account: vwap over empty execution set")

type acctControlOp int

const (
	acctOpBalance acctControlOp = iota
	acctOpVWAP
)

type acctControlRequest struct {
	op     acctControlOp
	asset  string
	side   *types.Side
	pair   string
	result chan acctControlResult
}

type acctControlResult struct {
	balance float64
	vwap    float64
	err     error
}

// AccountTracker owns the ExecutionTracker and the OrderPlacementEngine and
// exposes the account's live balance map and own-fill VWAP to the Maker.
type AccountTracker struct {
	gate    *gate.Gate
	pair    string
	delay   time.Duration
	logger  *slog.Logger
	lictor  *ExecutionTracker
	ope     *OPE
	ingest  chan types.BalanceResponse
	control chan acctControlRequest
}

// NewAccountTracker wires the lictor and OPE and starts the supervised
// balance-polling and worker goroutines.
func NewAccountTracker(ctx context.Context, g *gate.Gate, pair string, delay time.Duration, logger *slog.Logger) *AccountTracker {
	log := logger.With("component", "account_tracker", "pair", pair)
	a := &AccountTracker{
		gate:    g,
		pair:    pair,
		delay:   delay,
		logger:  log,
		lictor:  NewExecutionTracker(ctx, g, time.Time{}, delay, logger),
		ope:     NewOPE(ctx, g, pair, logger),
		ingest:  make(chan types.BalanceResponse),
		control: make(chan acctControlRequest),
	}
	go supervisor.Run(ctx, log, "account_tracker_updater", a.runUpdater)
	go supervisor.Run(ctx, log, "account_tracker_worker", a.runWorker)
	return a
}

// OPE returns the owned OrderPlacementEngine, for the Maker to place/cancel
// through.
func (a *AccountTracker) OPE() *OPE {
	return a.ope
}

func (a *AccountTracker) runUpdater(ctx context.Context) {
	ticker := time.NewTicker(a.delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bal, err := a.gate.Balance(ctx)
			if err != nil {
				a.logger.Warn("balance poll failed", "error", err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case a.ingest <- bal:
			}
		}
	}
}

func (a *AccountTracker) runWorker(ctx context.Context) {
	balances := make(map[string]float64)
	var fills []types.Execution

	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-a.ingest:
			for asset, s := range raw {
				v, err := parseFloat(s)
				if err != nil {
					a.logger.Warn("malformed balance", "asset", asset, "error", err)
					continue
				}
				balances[asset] = v
			}
		case ev := <-a.lictor.Executions():
			fills = append(fills, ev)
		case req := <-a.control:
			switch req.op {
			case acctOpBalance:
				// Unknown assets report a zero balance rather than an error, per
				// spec.md section 4.5's balance(asset) contract.
				req.result <- acctControlResult{balance: balances[req.asset]}
			case acctOpVWAP:
				v, err := fillsVWAP(fills, req.pair, req.side)
				req.result <- acctControlResult{vwap: v, err: err}
			}
		}
	}
}

func fillsVWAP(fills []types.Execution, pair string, side *types.Side) (float64, error) {
	var volSum, costSum float64
	for _, f := range fills {
		if f.Pair != pair {
			continue
		}
		if side != nil && f.Side != *side {
			continue
		}
		volSum += f.Volume
		costSum += f.Cost
	}
	if volSum == 0 {
		return 0, ErrNoFills
	}
	return costSum / volSum, nil
}

func (a *AccountTracker) request(ctx context.Context, req acctControlRequest) (acctControlResult, error) {
	req.result = make(chan acctControlResult, 1)
	select {
	case <-ctx.Done():
		return acctControlResult{}, ctx.Err()
	case a.control <- req:
	}
	select {
	case <-ctx.Done():
		return acctControlResult{}, ctx.Err()
	case r := <-req.result:
		return r, nil
	}
}

// Balance returns the current known balance for asset, or 0 for an asset
// never seen in a Balance response.
func (a *AccountTracker) Balance(ctx context.Context, asset string) (float64, error) {
	r, err := a.request(ctx, acctControlRequest{op: acctOpBalance, asset: asset})
	if err != nil {
		return 0, err
	}
	if r.err != nil {
		return 0, r.err
	}
	return r.balance, nil
}

// VWAP returns the volume-weighted average fill price for pair and side
// (nil for both sides), over the tracker's full retained fill history.
func (a *AccountTracker) VWAP(ctx context.Context, pair string, side *types.Side) (float64, error) {
	r, err := a.request(ctx, acctControlRequest{op: acctOpVWAP, pair: pair, side: side})
	if err != nil {
		return 0, err
	}
	return r.vwap, r.err
}
