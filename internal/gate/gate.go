// Package gate implements the single serializing front door to the
// exchange: every other actor reaches the exchange only through a Gate,
// never by holding an *exchange.Client directly. This gives the whole
// mesh one linearized view of rate limits and credentials.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/xervantex/scalpl/internal/exchange"
	"github.com/xervantex/scalpl/internal/metrics"
	"github.com/xervantex/scalpl/internal/supervisor"
	"github.com/xervantex/scalpl/pkg/types"
)

// request is the single message shape the worker goroutine understands: a
// thunk closing over whatever typed call the caller wants, plus a reply
// channel. This keeps the worker loop itself a one-line dispatch regardless
// of how many exchange operations Gate ends up exposing.
type request struct {
	reply chan result
	fn    func(ctx context.Context, c *exchange.Client) (interface{}, error)
}

type result struct {
	value interface{}
	err   error
}

// Gate serializes all exchange access behind a single unbuffered channel.
type Gate struct {
	reqCh  chan request
	client *exchange.Client
	signer *exchange.Signer
	logger *slog.Logger
}

// New starts the Gate's worker goroutine, supervised against panics.
func New(ctx context.Context, client *exchange.Client, signer *exchange.Signer, logger *slog.Logger) *Gate {
	g := &Gate{
		reqCh:  make(chan request),
		client: client,
		signer: signer,
		logger: logger.With("component", "gate"),
	}
	go supervisor.Run(ctx, g.logger, "gate", g.run)
	return g
}

func (g *Gate) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-g.reqCh:
			v, err := req.fn(ctx, g.client)
			req.reply <- result{value: v, err: err}
		}
	}
}

func (g *Gate) call(ctx context.Context, op string, fn func(ctx context.Context, c *exchange.Client) (interface{}, error)) (interface{}, error) {
	start := time.Now()
	reply := make(chan result, 1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case g.reqCh <- request{reply: reply, fn: fn}:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-reply:
		metrics.GateRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if r.err != nil {
			metrics.GateRequestErrors.WithLabelValues(op).Inc()
		}
		return r.value, r.err
	}
}

// AssetPairs fetches pair metadata.
func (g *Gate) AssetPairs(ctx context.Context, pair string) (map[string]types.AssetPairInfo, error) {
	v, err := g.call(ctx, "asset_pairs", func(ctx context.Context, c *exchange.Client) (interface{}, error) {
		return c.AssetPairs(ctx, pair)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]types.AssetPairInfo), nil
}

// Trades fetches public trades since the given cursor.
func (g *Gate) Trades(ctx context.Context, pair, since string) (types.TradesResponse, error) {
	v, err := g.call(ctx, "trades", func(ctx context.Context, c *exchange.Client) (interface{}, error) {
		return c.Trades(ctx, pair, since)
	})
	if err != nil {
		return types.TradesResponse{}, err
	}
	return v.(types.TradesResponse), nil
}

// Depth fetches the order book.
func (g *Gate) Depth(ctx context.Context, pair string, count int) (types.DepthResponse, error) {
	v, err := g.call(ctx, "depth", func(ctx context.Context, c *exchange.Client) (interface{}, error) {
		return c.Depth(ctx, pair, count)
	})
	if err != nil {
		return types.DepthResponse{}, err
	}
	return v.(types.DepthResponse), nil
}

// Balance fetches account balances.
func (g *Gate) Balance(ctx context.Context) (types.BalanceResponse, error) {
	v, err := g.call(ctx, "balance", func(ctx context.Context, c *exchange.Client) (interface{}, error) {
		return c.Balance(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(types.BalanceResponse), nil
}

// OpenOrders fetches currently resting orders.
func (g *Gate) OpenOrders(ctx context.Context) ([]types.OpenOrderInfo, error) {
	v, err := g.call(ctx, "open_orders", func(ctx context.Context, c *exchange.Client) (interface{}, error) {
		return c.OpenOrders(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.OpenOrderInfo), nil
}

// AddOrder places a limit order.
func (g *Gate) AddOrder(ctx context.Context, opts types.AddOrderOptions) (types.AddOrderResult, error) {
	v, err := g.call(ctx, "add_order", func(ctx context.Context, c *exchange.Client) (interface{}, error) {
		return c.AddOrder(ctx, opts)
	})
	if err != nil {
		return types.AddOrderResult{}, err
	}
	return v.(types.AddOrderResult), nil
}

// CancelOrder cancels by txid, idempotently.
func (g *Gate) CancelOrder(ctx context.Context, txid string) (types.CancelOrderResult, error) {
	v, err := g.call(ctx, "cancel_order", func(ctx context.Context, c *exchange.Client) (interface{}, error) {
		return c.CancelOrder(ctx, txid)
	})
	if err != nil {
		return types.CancelOrderResult{}, err
	}
	return v.(types.CancelOrderResult), nil
}

// TradesHistory fetches one page of own-fill history.
func (g *Gate) TradesHistory(ctx context.Context, start, end string, ofs int) (types.TradesHistoryPage, error) {
	v, err := g.call(ctx, "trades_history", func(ctx context.Context, c *exchange.Client) (interface{}, error) {
		return c.TradesHistory(ctx, start, end, ofs)
	})
	if err != nil {
		return types.TradesHistoryPage{}, err
	}
	return v.(types.TradesHistoryPage), nil
}

// SetKeySlot hot-swaps the credentials used to sign private calls, without
// any other actor ever touching the raw key/secret bytes.
func (g *Gate) SetKeySlot(ctx context.Context, keyFile, secretFile string) error {
	_, err := g.call(ctx, "set_key_slot", func(ctx context.Context, c *exchange.Client) (interface{}, error) {
		return nil, g.signer.SetCredentials(keyFile, secretFile)
	})
	return err
}
