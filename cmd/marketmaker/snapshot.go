package main

import (
	"context"

	"github.com/xervantex/scalpl/internal/account"
	"github.com/xervantex/scalpl/internal/api"
	"github.com/xervantex/scalpl/internal/market"
	"github.com/xervantex/scalpl/internal/risk"
	"github.com/xervantex/scalpl/pkg/types"
)

// snapshotProvider adapts the running actors into api.SnapshotProvider for
// the operator dashboard.
type snapshotProvider struct {
	mkt   types.Market
	book  *market.BookTracker
	acct  *account.AccountTracker
	guard *risk.Guard
}

func (s *snapshotProvider) Snapshot(ctx context.Context) (api.Snapshot, error) {
	bids, err := s.book.Bids(ctx)
	if err != nil {
		return api.Snapshot{}, err
	}
	asks, err := s.book.Asks(ctx)
	if err != nil {
		return api.Snapshot{}, err
	}

	var bestBid, bestAsk float64
	if len(bids) > 0 {
		bestBid = bids[0].PriceTick.Float64(s.mkt.PriceDecimals)
	}
	if len(asks) > 0 {
		bestAsk = asks[0].PriceTick.Float64(s.mkt.PriceDecimals)
	}

	quoteBal, _ := s.acct.Balance(ctx, s.mkt.Quote)
	baseBal, _ := s.acct.Balance(ctx, s.mkt.Base)

	updatedAt, _ := s.book.UpdatedAt(ctx)

	return api.Snapshot{
		Pair:    s.mkt.Symbol,
		BestBid: bestBid,
		BestAsk: bestAsk,
		Balances: map[string]float64{
			s.mkt.Quote: quoteBal,
			s.mkt.Base:  baseBal,
		},
		RiskActive: s.guard.Active(),
		UpdatedAt:  updatedAt,
	}, nil
}
