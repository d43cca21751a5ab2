// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the agent — domain types (Market,
// PriceTick, TradeEvent, ...) and the exchange wire shapes they are parsed
// from. It has no dependencies on internal packages, so it can be imported by
// any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side is the direction of a trade or order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ————————————————————————————————————————————————————————————————————————
// Market & price-tick arithmetic
// ————————————————————————————————————————————————————————————————————————

// Market is immutable metadata about a tradeable pair, fixed at bootstrap.
type Market struct {
	Symbol         string  // exchange pair name, e.g. "XXBTZUSD"
	PriceDecimals  int     // D: tick = floor(price * 10^D)
	VolumeDecimals int     // precision for formatting order volume
	Base           string  // base asset
	Quote          string  // quote asset
	FeePct         float64 // taker fee as a fraction, from AssetPairs at bootstrap
}

// PriceTick is a price expressed as an integer in units of 10^-D of the
// quote currency. Every price that is compared, hashed, or displayed lives
// in this space; the only conversions to/from decimal strings happen at the
// exchange boundary (ParsePriceTick / PriceTick.String).
type PriceTick int64

// ParsePriceTick truncates (never rounds) a decimal string to D places and
// returns the resulting integer tick. Truncation preserves the monotonicity
// of the original string ordering, which rounding would not.
func ParsePriceTick(s string, decimals int) (PriceTick, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	scaled := d.Shift(int32(decimals)).Truncate(0)
	return PriceTick(scaled.IntPart()), nil
}

// String renders the tick back to a decimal price string at D places.
func (p PriceTick) String(decimals int) string {
	return decimal.NewFromInt(int64(p)).Shift(-int32(decimals)).StringFixed(int32(decimals))
}

// Float64 returns the tick as a floating-point price at D places. Used only
// where relative error is acceptable (VWAP, sizing ratios) — never for
// comparisons.
func (p PriceTick) Float64(decimals int) float64 {
	f, _ := decimal.NewFromInt(int64(p)).Shift(-int32(decimals)).Float64()
	return f
}

// ————————————————————————————————————————————————————————————————————————
// Trades, book, balances, executions
// ————————————————————————————————————————————————————————————————————————

// TradeEvent is one public trade, as accumulated by TradesTracker.
type TradeEvent struct {
	Timestamp time.Time
	Volume    float64
	Price     float64
	Cost      float64 // volume * price
	Side      Side
	Kind      string // "market" | "limit"
	Tag       string // exchange-assigned miscellaneous tag
}

// BookLevel is one (price, volume) pair on one side of the book.
type BookLevel struct {
	PriceTick PriceTick
	Volume    float64
}

// Balance is the real holding of one asset.
type Balance struct {
	Asset  string
	Amount float64
}

// Execution is one of the agent's own fills.
type Execution struct {
	OID       string
	TxID      string
	Timestamp time.Time
	Side      Side
	Pair      string
	Price     float64
	Volume    float64
	Cost      float64
	Fee       float64
}

// DesiredOrder is one level of a generated ladder, not yet reconciled
// against live orders. QuoteAmount is named for the fund pool it's carved
// from but is expressed in base-currency volume, the same unit as
// LiveOrder.Volume, so the two compare directly during reconciliation.
type DesiredOrder struct {
	QuoteAmount float64 // order size at this level, in base-currency volume
	PriceTick   PriceTick
}

// LiveOrder is an order actually resting on the exchange.
type LiveOrder struct {
	OID       string
	PriceTick PriceTick
	Volume    float64
}

// ————————————————————————————————————————————————————————————————————————
// Exchange wire shapes (JSON). Field names follow the exchange's own
// snake_case/abbreviated conventions; the client translates them into the
// domain types above.
// ————————————————————————————————————————————————————————————————————————

// AssetPairInfo is the JSON shape of one entry in the AssetPairs response.
type AssetPairInfo struct {
	Base           string `json:"base"`
	Quote          string `json:"quote"`
	PairDecimals   int    `json:"pair_decimals"`
	LotDecimals    int    `json:"lot_decimals"`
	OrderMin       string `json:"ordermin"`
	FeeTakerPct    string `json:"fee_taker"`
}

// RawTrade is one trade entry as returned by the Trades endpoint:
// [price, volume, time, side, kind, misc].
type RawTrade struct {
	Price     string
	Volume    string
	Time      float64
	Side      string // "b" | "s"
	Kind      string // "m" | "l"
	Misc      string
}

// TradesResponse is the decoded Trades(pair, since) response.
type TradesResponse struct {
	Trades []RawTrade
	Last   string // cursor for the next Trades call
}

// DepthLevel is one [price, volume, timestamp] entry from the Depth endpoint.
type DepthLevel struct {
	Price  string
	Volume string
	Time   float64
}

// DepthResponse is the decoded Depth(pair) response.
type DepthResponse struct {
	Bids []DepthLevel
	Asks []DepthLevel
}

// BalanceResponse maps asset -> balance string.
type BalanceResponse map[string]string

// OpenOrderInfo is one entry in the OpenOrders response.
type OpenOrderInfo struct {
	OID         string
	Pair        string
	Side        string
	Price       string
	Volume      string
	VolumeExec  string
}

// AddOrderResult is the decoded AddOrder response.
type AddOrderResult struct {
	TxID  []string
	Descr string
}

// CancelOrderResult is the decoded CancelOrder response.
type CancelOrderResult struct {
	Count int
}

// TradesHistoryPage is one page of the TradesHistory(start, end, ofs)
// response.
type TradesHistoryPage struct {
	Count  int
	Trades map[string]RawExecution // keyed by txid
}

// RawExecution is the wire shape of one own-fill entry.
type RawExecution struct {
	OrderTxID string  `json:"ordertxid"`
	Pair      string  `json:"pair"`
	Time      float64 `json:"time"`
	Side      string  `json:"type"`
	Price     string  `json:"price"`
	Volume    string  `json:"vol"`
	Cost      string  `json:"cost"`
	Fee       string  `json:"fee"`
}

// ————————————————————————————————————————————————————————————————————————
// Exchange request options
// ————————————————————————————————————————————————————————————————————————

// AddOrderOptions carries the AddOrder(type, side, pair, volume, price,
// oflags?, validate?) parameters.
type AddOrderOptions struct {
	Type           string // "limit"
	Side           Side
	Pair           string
	Volume         string
	Price          string
	OFlags         string // e.g. "viqc"
	Validate       bool
}
