// Package exchange implements the REST client for the Kraken-shaped spot
// exchange API: public market data (Assets, AssetPairs, Trades, Depth) and
// private account/trading calls (Balance, OpenOrders, AddOrder, CancelOrder,
// TradesHistory); the private calls are signed with HMAC-SHA512 over a
// SHA256 digest (see Signer.Sign).
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/xervantex/scalpl/pkg/types"
)

// envelope is the common response wrapper: a non-empty Error array means the
// call failed, regardless of HTTP status.
type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// Client is the REST client. One Client is owned exclusively by Gate; no
// other actor calls it directly.
type Client struct {
	http    *resty.Client
	signer  *Signer
	baseURL string
	rl      *RateLimiter
	nonce   int64
	logger  *slog.Logger
}

// NewClient builds a resty-backed client with the teacher's timeout/retry
// shape: bounded retries with exponential backoff, retrying only on
// transport errors and 5xx responses.
func NewClient(baseURL string, signer *Signer, rl *RateLimiter, logger *slog.Logger) *Client {
	h := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	return &Client{
		http:    h,
		signer:  signer,
		baseURL: baseURL,
		rl:      rl,
		nonce:   time.Now().UnixNano(),
		logger:  logger.With("component", "exchange"),
	}
}

func (c *Client) nextNonce() string {
	n := atomic.AddInt64(&c.nonce, 1)
	return strconv.FormatInt(n, 10)
}

func (c *Client) adapt(resp *resty.Response) {
	remaining := resp.Header().Get("Api-Rate-Limit-Remaining")
	window := resp.Header().Get("Api-Rate-Limit-Window-Secs")
	if remaining == "" || window == "" {
		return
	}
	rem, err1 := strconv.Atoi(remaining)
	win, err2 := strconv.ParseFloat(window, 64)
	if err1 != nil || err2 != nil {
		return
	}
	c.rl.AdaptFromHeader(rem, win)
}

func (c *Client) publicCall(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.rl.Public.Wait(ctx); err != nil {
		return err
	}
	req := c.http.R().SetContext(ctx).SetQueryParamsFromValues(params)
	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	c.adapt(resp)
	return decodeEnvelope(resp.Body(), out)
}

func (c *Client) privateCall(ctx context.Context, path string, bucket *TokenBucket, params url.Values, out interface{}) error {
	if err := bucket.Wait(ctx); err != nil {
		return err
	}
	if params == nil {
		params = url.Values{}
	}
	nonce := c.nextNonce()
	params.Set("nonce", nonce)

	reqID := uuid.New().String()
	sig := c.signer.Sign(path, nonce, params)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("API-Key", c.signer.APIKey()).
		SetHeader("API-Sign", sig).
		SetHeader("X-Request-Id", reqID).
		SetFormDataFromValues(params).
		Post(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	c.adapt(resp)
	return decodeEnvelope(resp.Body(), out)
}

func decodeEnvelope(body []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Error) > 0 {
		return &APIError{Messages: env.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Result, out)
}

// Assets returns the exchange's known assets. Used only at bootstrap.
func (c *Client) Assets(ctx context.Context) (map[string]json.RawMessage, error) {
	var out map[string]json.RawMessage
	err := c.publicCall(ctx, "/0/public/Assets", nil, &out)
	return out, err
}

// AssetPairs returns pair metadata (decimals, fee schedule), used to
// populate the Market struct at bootstrap.
func (c *Client) AssetPairs(ctx context.Context, pair string) (map[string]types.AssetPairInfo, error) {
	params := url.Values{"pair": {pair}}
	var out map[string]types.AssetPairInfo
	err := c.publicCall(ctx, "/0/public/AssetPairs", params, &out)
	return out, err
}

// Trades returns public trades for pair since the given cursor ("" for the
// most recent window).
func (c *Client) Trades(ctx context.Context, pair, since string) (types.TradesResponse, error) {
	params := url.Values{"pair": {pair}}
	if since != "" {
		params.Set("since", since)
	}
	var raw map[string]json.RawMessage
	if err := c.publicCall(ctx, "/0/public/Trades", params, &raw); err != nil {
		return types.TradesResponse{}, err
	}
	return decodeTradesResult(raw, pair)
}

func decodeTradesResult(raw map[string]json.RawMessage, pair string) (types.TradesResponse, error) {
	var out types.TradesResponse
	lastRaw, ok := raw["last"]
	if !ok {
		return out, fmt.Errorf("trades response missing last cursor")
	}
	var last string
	if err := json.Unmarshal(lastRaw, &last); err != nil {
		return out, fmt.Errorf("decode last cursor: %w", err)
	}
	out.Last = last

	rowsRaw, ok := raw[pair]
	if !ok {
		return out, fmt.Errorf("trades response missing pair %q", pair)
	}
	var rows [][]interface{}
	if err := json.Unmarshal(rowsRaw, &rows); err != nil {
		return out, fmt.Errorf("decode trade rows: %w", err)
	}
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		t, err := tradeRowToRawTrade(row)
		if err != nil {
			return out, err
		}
		out.Trades = append(out.Trades, t)
	}
	return out, nil
}

func tradeRowToRawTrade(row []interface{}) (types.RawTrade, error) {
	price, _ := row[0].(string)
	volume, _ := row[1].(string)
	ts, _ := row[2].(float64)
	side, _ := row[3].(string)
	kind, _ := row[4].(string)
	misc, _ := row[5].(string)
	if price == "" || volume == "" {
		return types.RawTrade{}, fmt.Errorf("malformed trade row: %v", row)
	}
	return types.RawTrade{
		Price:  price,
		Volume: volume,
		Time:   ts,
		Side:   side,
		Kind:   kind,
		Misc:   misc,
	}, nil
}

// Depth returns the order book with at most count levels per side.
func (c *Client) Depth(ctx context.Context, pair string, count int) (types.DepthResponse, error) {
	params := url.Values{"pair": {pair}}
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}
	var raw map[string]struct {
		Bids [][3]interface{} `json:"bids"`
		Asks [][3]interface{} `json:"asks"`
	}
	if err := c.publicCall(ctx, "/0/public/Depth", params, &raw); err != nil {
		return types.DepthResponse{}, err
	}
	side, ok := raw[pair]
	if !ok {
		return types.DepthResponse{}, fmt.Errorf("depth response missing pair %q", pair)
	}
	var out types.DepthResponse
	for _, b := range side.Bids {
		lvl, err := depthRowToLevel(b)
		if err != nil {
			return types.DepthResponse{}, err
		}
		out.Bids = append(out.Bids, lvl)
	}
	for _, a := range side.Asks {
		lvl, err := depthRowToLevel(a)
		if err != nil {
			return types.DepthResponse{}, err
		}
		out.Asks = append(out.Asks, lvl)
	}
	return out, nil
}

func depthRowToLevel(row [3]interface{}) (types.DepthLevel, error) {
	price, _ := row[0].(string)
	volume, _ := row[1].(string)
	ts, _ := row[2].(float64)
	if price == "" || volume == "" {
		return types.DepthLevel{}, fmt.Errorf("malformed depth row: %v", row)
	}
	return types.DepthLevel{Price: price, Volume: volume, Time: ts}, nil
}

// Balance returns the account's asset -> available-balance map.
func (c *Client) Balance(ctx context.Context) (types.BalanceResponse, error) {
	var out types.BalanceResponse
	err := c.privateCall(ctx, "/0/private/Balance", c.rl.Public, nil, &out)
	return out, err
}

// OpenOrders returns currently resting orders.
func (c *Client) OpenOrders(ctx context.Context) ([]types.OpenOrderInfo, error) {
	var raw struct {
		Open map[string]struct {
			Descr struct {
				Pair  string `json:"pair"`
				Type  string `json:"type"`
				Price string `json:"price"`
			} `json:"descr"`
			Vol     string `json:"vol"`
			VolExec string `json:"vol_exec"`
		} `json:"open"`
	}
	if err := c.privateCall(ctx, "/0/private/OpenOrders", c.rl.Public, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]types.OpenOrderInfo, 0, len(raw.Open))
	for oid, o := range raw.Open {
		out = append(out, types.OpenOrderInfo{
			OID:        oid,
			Pair:       o.Descr.Pair,
			Side:       o.Descr.Type,
			Price:      o.Descr.Price,
			Volume:     o.Vol,
			VolumeExec: o.VolExec,
		})
	}
	return out, nil
}

// AddOrder places a limit order and returns the resulting txids.
func (c *Client) AddOrder(ctx context.Context, opts types.AddOrderOptions) (types.AddOrderResult, error) {
	params := url.Values{
		"ordertype": {opts.Type},
		"type":      {string(opts.Side)},
		"pair":      {opts.Pair},
		"volume":    {opts.Volume},
		"price":     {opts.Price},
	}
	if opts.OFlags != "" {
		params.Set("oflags", opts.OFlags)
	}
	if opts.Validate {
		params.Set("validate", "true")
	}
	var raw struct {
		Descr struct {
			Order string `json:"order"`
		} `json:"descr"`
		TxID []string `json:"txid"`
	}
	if err := c.privateCall(ctx, "/0/private/AddOrder", c.rl.Order, params, &raw); err != nil {
		return types.AddOrderResult{}, err
	}
	return types.AddOrderResult{TxID: raw.TxID, Descr: raw.Descr.Order}, nil
}

// CancelOrder cancels by txid. Cancelling an order that no longer exists
// gets the exchange's "Unknown order" error, which CancelOrder itself turns
// into an idempotent success with Count 0 (see IsUnknownOrder).
func (c *Client) CancelOrder(ctx context.Context, txid string) (types.CancelOrderResult, error) {
	params := url.Values{"txid": {txid}}
	var raw struct {
		Count int `json:"count"`
	}
	err := c.privateCall(ctx, "/0/private/CancelOrder", c.rl.Cancel, params, &raw)
	if err != nil {
		if IsUnknownOrder(err) {
			return types.CancelOrderResult{Count: 0}, nil
		}
		return types.CancelOrderResult{}, err
	}
	return types.CancelOrderResult{Count: raw.Count}, nil
}

// TradesHistory returns one page of own-fill history. ofs is the pagination
// offset into the server-side result set, newest first.
func (c *Client) TradesHistory(ctx context.Context, start, end string, ofs int) (types.TradesHistoryPage, error) {
	params := url.Values{}
	if start != "" {
		params.Set("start", start)
	}
	if end != "" {
		params.Set("end", end)
	}
	params.Set("ofs", strconv.Itoa(ofs))

	var raw struct {
		Trades map[string]types.RawExecution `json:"trades"`
		Count  int                            `json:"count"`
	}
	if err := c.privateCall(ctx, "/0/private/TradesHistory", c.rl.Public, params, &raw); err != nil {
		return types.TradesHistoryPage{}, err
	}
	return types.TradesHistoryPage{Count: raw.Count, Trades: raw.Trades}, nil
}
