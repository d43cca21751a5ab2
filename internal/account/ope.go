package account

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xervantex/scalpl/internal/exchange"
	"github.com/xervantex/scalpl/internal/gate"
	"github.com/xervantex/scalpl/pkg/types"
)

// volumeBumpStep is the coarse adjustment added to the quote-denominated
// volume when the viqc retry is itself rejected on "volume".
const volumeBumpStep = 0.01

// OPE is the OrderPlacementEngine: the only actor that ever calls AddOrder
// or CancelOrder, so its retry ladder is the single place order-placement
// quirks are handled.
type OPE struct {
	gate   *gate.Gate
	pair   string
	logger *slog.Logger
}

// NewOPE constructs an OPE bound to one pair. It has no goroutine of its
// own: Bid/Ask/Cancel are called directly by the Maker's reconciliation
// step, and serialization happens naturally through the Gate underneath.
func NewOPE(ctx context.Context, g *gate.Gate, pair string, logger *slog.Logger) *OPE {
	return &OPE{gate: g, pair: pair, logger: logger.With("component", "ope", "pair", pair)}
}

// Bid places a limit buy at priceTick for volume.
func (o *OPE) Bid(ctx context.Context, priceTick types.PriceTick, priceDecimals int, volume float64, volumeDecimals int) (types.LiveOrder, error) {
	return o.postLimit(ctx, types.Buy, priceTick, priceDecimals, volume, volumeDecimals)
}

// Ask places a limit sell at priceTick for volume.
func (o *OPE) Ask(ctx context.Context, priceTick types.PriceTick, priceDecimals int, volume float64, volumeDecimals int) (types.LiveOrder, error) {
	return o.postLimit(ctx, types.Sell, priceTick, priceDecimals, volume, volumeDecimals)
}

// postLimit implements the PostLimit protocol: place at the requested
// price/volume. On a "volume" rejection with no quote-denominated flag set
// yet, retry once restating volume in quote terms (volume*price) with
// oflags=viqc. If that retry also gets a "volume" rejection — now that the
// quote-denominated flag is already set — retry a second time with volume
// bumped by a fixed coarse floor step. Any other error is logged and the
// call returns without an order.
func (o *OPE) postLimit(ctx context.Context, side types.Side, priceTick types.PriceTick, priceDecimals int, volume float64, volumeDecimals int) (types.LiveOrder, error) {
	price := priceTick.String(priceDecimals)
	opts := types.AddOrderOptions{
		Type:   "limit",
		Side:   side,
		Pair:   o.pair,
		Price:  price,
		Volume: formatVolume(volume, volumeDecimals),
	}

	res, err := o.gate.AddOrder(ctx, opts)
	if err == nil {
		return liveOrderFromResult(res, priceTick, volume), nil
	}
	if !exchange.IsVolumeError(err) {
		o.logger.Warn("order rejected", "side", side, "price", price, "error", err)
		return types.LiveOrder{}, fmt.Errorf("add order: %w", err)
	}

	o.logger.Warn("order rejected on volume, retrying quote-denominated", "side", side, "price", price)
	quoteVolume := volume * priceTick.Float64(priceDecimals)
	opts.Volume = formatVolume(quoteVolume, 2)
	opts.OFlags = "viqc"
	res, err = o.gate.AddOrder(ctx, opts)
	if err == nil {
		return liveOrderFromResult(res, priceTick, volume), nil
	}
	if !exchange.IsVolumeError(err) {
		o.logger.Warn("order rejected (viqc)", "side", side, "price", price, "error", err)
		return types.LiveOrder{}, fmt.Errorf("add order (viqc): %w", err)
	}

	o.logger.Warn("order rejected on volume again, retrying with bumped volume", "side", side, "price", price)
	opts.Volume = formatVolume(quoteVolume+volumeBumpStep, 2)
	res, err = o.gate.AddOrder(ctx, opts)
	if err != nil {
		o.logger.Warn("order rejected (bumped)", "side", side, "price", price, "error", err)
		return types.LiveOrder{}, fmt.Errorf("add order (bumped): %w", err)
	}
	return liveOrderFromResult(res, priceTick, volume), nil
}

func formatVolume(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func liveOrderFromResult(res types.AddOrderResult, priceTick types.PriceTick, volume float64) types.LiveOrder {
	oid := ""
	if len(res.TxID) > 0 {
		oid = res.TxID[0]
	}
	return types.LiveOrder{OID: oid, PriceTick: priceTick, Volume: volume}
}

// Cancel cancels an order by id. Per the credential contract, cancelling an
// order the exchange no longer knows about ("Unknown order") is treated as
// success by exchange.Client.CancelOrder itself, so callers never need to
// special-case it.
func (o *OPE) Cancel(ctx context.Context, oid string) error {
	_, err := o.gate.CancelOrder(ctx, oid)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", oid, err)
	}
	return nil
}
