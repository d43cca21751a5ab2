package maker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xervantex/scalpl/internal/account"
	"github.com/xervantex/scalpl/internal/market"
	"github.com/xervantex/scalpl/internal/metrics"
	"github.com/xervantex/scalpl/internal/risk"
	"github.com/xervantex/scalpl/pkg/types"
)

// Config tunes one round: sizing, ladder shape, and the Open Question (b)
// resolution flag (see Reconcile).
type Config struct {
	ResilienceFactor        float64
	FundFactor              float64
	TargetingFactor         float64
	MaxOrders               int
	SizeToleranceFraction   float64
	RefreshInterval         time.Duration
	StaleBookTimeout        time.Duration
	PlaceInwardOnEqualPrice bool
	VWAPWindow              time.Duration
}

// Maker runs the periodic round: snapshot book/trades/balances, size a
// ladder per side, clean the book of its own orders, and reconcile live
// orders toward the desired ladder with the fewest cancel/place operations.
type Maker struct {
	cfg    Config
	mkt    types.Market
	trades *market.TradesTracker
	book   *market.BookTracker
	acct   *account.AccountTracker
	guard  *risk.Guard
	logger *slog.Logger

	liveMu      sync.Mutex
	pendingLive []types.LiveOrder

	paused atomic.Bool
}

// New constructs a Maker bound to one market and its trackers.
func New(cfg Config, mkt types.Market, trades *market.TradesTracker, book *market.BookTracker, acct *account.AccountTracker, guard *risk.Guard, logger *slog.Logger) *Maker {
	return &Maker{
		cfg:    cfg,
		mkt:    mkt,
		trades: trades,
		book:   book,
		acct:   acct,
		guard:  guard,
		logger: logger.With("component", "maker", "pair", mkt.Symbol),
	}
}

// Run drives the periodic round until ctx is cancelled.
func (m *Maker) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.round(ctx); err != nil {
				m.logger.Warn("round failed", "error", err)
			}
		}
	}
}

// Pause makes subsequent rounds cancel all live orders and skip quoting,
// until Resume is called. Satisfies api.Controller for the operator
// dashboard's pause/resume command.
func (m *Maker) Pause() {
	m.paused.Store(true)
}

// Resume reverses Pause.
func (m *Maker) Resume() {
	m.paused.Store(false)
}

func (m *Maker) round(ctx context.Context) error {
	if m.paused.Load() {
		return m.cancelAll(ctx)
	}

	stale, err := m.book.IsStale(ctx, m.cfg.StaleBookTimeout)
	if err != nil {
		return err
	}
	if stale {
		m.logger.Warn("book stale, cancelling live orders and skipping round")
		return m.cancelAll(ctx)
	}

	if m.guard.Active() {
		m.logger.Warn("risk guard active, cancelling live orders and skipping round")
		return m.cancelAll(ctx)
	}

	bids, err := m.book.Bids(ctx)
	if err != nil {
		return err
	}
	asks, err := m.book.Asks(ctx)
	if err != nil {
		return err
	}

	live, err := m.liveOrders(ctx)
	if err != nil {
		return err
	}

	cleanBids := IgnoreMine(bids, live)
	cleanAsks := IgnoreMine(asks, live)
	if len(cleanBids) == 0 || len(cleanAsks) == 0 {
		m.logger.Warn("book empty after cleaning, skipping round")
		return nil
	}

	// Market.FeePct is a fraction; CrossSpread/ProfitMargin take a percentage.
	otherBids, otherAsks := CrossSpread(cleanBids, cleanAsks, m.mkt.FeePct*100, m.mkt.PriceDecimals)
	if len(otherBids) == 0 || len(otherAsks) == 0 {
		m.logger.Warn("spread fully crossed, skipping round")
		return nil
	}

	maxVol, err := m.trades.Max(ctx)
	if err != nil && err != market.ErrNoTrades {
		return err
	}

	bestAsk := otherAsks[0].PriceTick
	bestAskPrice := bestAsk.Float64(m.mkt.PriceDecimals)

	rate, err := m.trades.VWAP(ctx, time.Now().Add(-m.cfg.VWAPWindow), nil)
	if err != nil {
		if err != market.ErrNoTrades {
			return err
		}
		// No trades inside the VWAP window yet: fall back to top-of-book as
		// the base/quote conversion rate.
		rate = bestAskPrice
	}

	quoteBal, err := m.acct.Balance(ctx, m.mkt.Quote)
	if err != nil {
		return err
	}
	baseBal, err := m.acct.Balance(ctx, m.mkt.Base)
	if err != nil {
		return err
	}

	m.reportRealizedPnL(ctx, baseBal)

	resilience := m.cfg.ResilienceFactor * maxVol
	bidFund, askFund := m.sizeSides(baseBal, quoteBal, rate)

	m.guard.CheckExposure(baseBal*bestAskPrice + quoteBal)

	desiredBids := GenerateLadder(types.Buy, otherBids, resilience, bidFund, 1, m.cfg.MaxOrders)
	desiredAsks := GenerateLadder(types.Sell, otherAsks, resilience, askFund, -1, m.cfg.MaxOrders)

	bidLive, askLive := splitBySide(live, bestAsk)

	placer := &opePlacer{ope: m.acct.OPE(), mkt: m.mkt}
	newBidLive := Reconcile(ctx, types.Buy, desiredBids, bidLive, m.cfg.SizeToleranceFraction, m.cfg.PlaceInwardOnEqualPrice, placer)
	newAskLive := Reconcile(ctx, types.Sell, desiredAsks, askLive, m.cfg.SizeToleranceFraction, m.cfg.PlaceInwardOnEqualPrice, placer)

	m.SetLiveOrders(append(append([]types.LiveOrder(nil), newBidLive...), newAskLive...))
	return nil
}

// opePlacer adapts account.OPE's Bid/Ask/Cancel methods to the Placer
// interface Reconcile drives, carrying the market's decimal precision so
// the maker's reconciliation loop never has to know about price/volume
// string formatting.
type opePlacer struct {
	ope *account.OPE
	mkt types.Market
}

func (p *opePlacer) Place(ctx context.Context, side types.Side, d types.DesiredOrder) (types.LiveOrder, error) {
	var order types.LiveOrder
	var err error
	if side == types.Buy {
		order, err = p.ope.Bid(ctx, d.PriceTick, p.mkt.PriceDecimals, d.QuoteAmount, p.mkt.VolumeDecimals)
	} else {
		order, err = p.ope.Ask(ctx, d.PriceTick, p.mkt.PriceDecimals, d.QuoteAmount, p.mkt.VolumeDecimals)
	}
	if err == nil {
		metrics.ReconcilePlaces.WithLabelValues(string(side)).Inc()
	}
	return order, err
}

func (p *opePlacer) Cancel(ctx context.Context, side types.Side, oid string) error {
	err := p.ope.Cancel(ctx, oid)
	if err == nil {
		metrics.ReconcileCancels.WithLabelValues(string(side)).Inc()
	}
	return err
}

// sizeSides computes the round's two independent deploy amounts: deploy-base
// (base · fund-factor · invested · targeting-factor) funds the ask side,
// deploy-quote (quote · fund-factor · (1 − invested·targeting-factor)) funds
// the bid side, where invested is the fraction of the portfolio — valued in
// base units at rate, the base/quote conversion rate — currently held in
// base. Both return values come back in base-currency volume, the unit
// GenerateLadder distributes across levels and Reconcile compares against
// live order volume, so deploy-quote is divided by rate before it's
// returned.
func (m *Maker) sizeSides(baseBal, quoteBal, rate float64) (bidFundBase, askFundBase float64) {
	if rate <= 0 {
		return 0, 0
	}
	total := baseBal + quoteBal/rate
	if total <= 0 {
		return 0, 0
	}
	invested := baseBal / total

	deployBase := baseBal * m.cfg.FundFactor * invested * m.cfg.TargetingFactor
	deployQuote := quoteBal * m.cfg.FundFactor * (1 - invested*m.cfg.TargetingFactor)

	return deployQuote / rate, deployBase
}

// reportRealizedPnL feeds the risk guard's daily-loss check from
// AccountTracker's realized buy/sell VWAP, valuing the spread captured
// between the two against the current base balance. Skipped entirely until
// both sides have at least one fill, since a one-sided VWAP says nothing
// about realized PnL yet.
func (m *Maker) reportRealizedPnL(ctx context.Context, baseBal float64) {
	buy, sell := types.Buy, types.Sell
	buyVWAP, buyErr := m.acct.VWAP(ctx, m.mkt.Symbol, &buy)
	if buyErr != nil {
		return
	}
	sellVWAP, sellErr := m.acct.VWAP(ctx, m.mkt.Symbol, &sell)
	if sellErr != nil {
		return
	}
	m.guard.ReportRealizedPnL((sellVWAP - buyVWAP) * baseBal)
}

// liveOrders returns the most recent Gate.OpenOrders snapshot. The OPE
// itself has no query surface — it only places and cancels — so
// cmd/marketmaker polls OpenOrders independently and feeds the result in
// via SetLiveOrders ahead of each round.
func (m *Maker) liveOrders(ctx context.Context) ([]types.LiveOrder, error) {
	m.liveMu.Lock()
	defer m.liveMu.Unlock()
	return m.pendingLive, nil
}

func splitBySide(live []types.LiveOrder, bestAsk types.PriceTick) (bids, asks []types.LiveOrder) {
	for _, o := range live {
		if o.PriceTick < bestAsk {
			bids = append(bids, o)
		} else {
			asks = append(asks, o)
		}
	}
	return bids, asks
}

// cancelAll cancels every resting order the Maker believes is live and
// clears its snapshot, so a subsequent round starts from a clean slate
// instead of retrying cancels on orders already accepted as gone.
func (m *Maker) cancelAll(ctx context.Context) error {
	live, err := m.liveOrders(ctx)
	if err != nil {
		return err
	}
	var stillLive []types.LiveOrder
	for _, o := range live {
		if err := m.acct.OPE().Cancel(ctx, o.OID); err != nil {
			m.logger.Warn("cancel-all failed", "oid", o.OID, "error", err)
			stillLive = append(stillLive, o)
			continue
		}
		metrics.ReconcileCancels.WithLabelValues("cancel_all").Inc()
	}
	m.SetLiveOrders(stillLive)
	return nil
}

// SetLiveOrders feeds the current live-order snapshot (from Gate.OpenOrders)
// into the Maker. cmd/marketmaker polls OpenOrders on its own ticker and
// calls this after each poll, and round/cancelAll call it with the ladder
// they leave behind; whichever call came last is what the next round sees.
// Kept as a simple mutex-guarded field rather than another tracker actor.
func (m *Maker) SetLiveOrders(live []types.LiveOrder) {
	m.liveMu.Lock()
	m.pendingLive = live
	m.liveMu.Unlock()
}
