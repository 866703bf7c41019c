// Package exchange is the facade over the exchange CLOB API: orderbook
// snapshots, signed order placement, and best-effort cancellation.
// Every call runs through a bounded worker pool so callers never block
// on a slow exchange round-trip beyond their own context.
package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/pkg/types"
)

const (
	defaultWorkers = 8
	bookDepthTop   = 10
	httpTimeout    = 30 * time.Second
)

// Config holds exchange client configuration.
type Config struct {
	ClobURL       string
	PrivateKey    string
	APIKey        string
	Secret        string
	Passphrase    string
	ProxyAddress  string
	SignatureType int
	Workers       int
	Logger        *zap.Logger
}

// Client is the exchange facade. Without full credentials it runs in
// read-only mode: orderbook reads work, order placement fails.
type Client struct {
	clobURL    string
	httpClient *http.Client
	signer     *orderSigner
	sem        chan struct{}
	logger     *zap.Logger
}

// New creates a new exchange client. Order placement is enabled only
// when the private key and full API credentials are present.
func New(cfg *Config) (*Client, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	c := &Client{
		clobURL:    strings.TrimRight(cfg.ClobURL, "/"),
		httpClient: &http.Client{Timeout: httpTimeout},
		sem:        make(chan struct{}, workers),
		logger:     cfg.Logger,
	}

	if cfg.PrivateKey != "" && cfg.APIKey != "" && cfg.Secret != "" && cfg.Passphrase != "" {
		signer, err := newOrderSigner(cfg)
		if err != nil {
			return nil, fmt.Errorf("create order signer: %w", err)
		}
		c.signer = signer
		cfg.Logger.Info("exchange-client-ready", zap.String("address", signer.address))
	} else {
		cfg.Logger.Info("exchange-client-read-only")
	}

	return c, nil
}

// CanTrade reports whether order placement is available.
func (c *Client) CanTrade() bool {
	return c.signer != nil
}

// acquire takes a worker slot, respecting the caller's context.
func (c *Client) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() {
	<-c.sem
}

// rawLevel tolerates price/size arriving as strings or numbers.
type rawLevel struct {
	Price json.RawMessage `json:"price"`
	Size  json.RawMessage `json:"size"`
}

type rawBook struct {
	Asks []rawLevel `json:"asks"`
	Bids []rawLevel `json:"bids"`
}

// Orderbook fetches and normalizes the book for a token. Returns nil
// on any failure; the failure is logged, never propagated.
func (c *Client) Orderbook(ctx context.Context, tokenID string) *types.Orderbook {
	if err := c.acquire(ctx); err != nil {
		return nil
	}
	defer c.release()

	reqURL := fmt.Sprintf("%s/book?token_id=%s", c.clobURL, url.QueryEscape(tokenID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.logger.Warn("orderbook-request-failed", zap.String("token-id", tokenID), zap.Error(err))
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		APIErrorsTotal.Inc()
		c.logger.Warn("orderbook-fetch-failed", zap.String("token-id", tokenID), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		APIErrorsTotal.Inc()
		c.logger.Warn("orderbook-fetch-rejected",
			zap.String("token-id", tokenID),
			zap.Int("status", resp.StatusCode))
		return nil
	}

	var raw rawBook
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.logger.Warn("orderbook-decode-failed", zap.String("token-id", tokenID), zap.Error(err))
		return nil
	}

	OrderbookRequestsTotal.Inc()

	return normalizeBook(&raw)
}

// normalizeBook converts a raw book into the canonical shape: asks
// ascending, bids descending, best levels, spread percent, and top-10
// depth per side.
func normalizeBook(raw *rawBook) *types.Orderbook {
	book := &types.Orderbook{
		Asks: parseLevels(raw.Asks),
		Bids: parseLevels(raw.Bids),
	}

	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })

	if len(book.Asks) > 0 {
		book.BestAsk = book.Asks[0].Price
	}
	if len(book.Bids) > 0 {
		book.BestBid = book.Bids[0].Price
	}

	if book.BestAsk > 0 && book.BestBid > 0 {
		book.SpreadPct = (book.BestAsk - book.BestBid) / book.BestAsk * 100.0
	}

	book.AsksDepth = topDepth(book.Asks)
	book.BidsDepth = topDepth(book.Bids)

	return book
}

func parseLevels(raw []rawLevel) []types.PriceLevel {
	levels := make([]types.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price := flexFloat(lvl.Price)
		size := flexFloat(lvl.Size)
		if price <= 0 || size <= 0 {
			continue
		}
		levels = append(levels, types.PriceLevel{Price: price, Size: size})
	}
	return levels
}

func topDepth(levels []types.PriceLevel) float64 {
	var depth float64
	for i, lvl := range levels {
		if i >= bookDepthTop {
			break
		}
		depth += lvl.Size
	}
	return depth
}

// flexFloat decodes a JSON number or a quoted numeric string.
func flexFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var direct float64
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}

	var quoted string
	if err := json.Unmarshal(raw, &quoted); err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(quoted, 64)
	if err != nil {
		return 0
	}
	return f
}

// PlaceOrder submits a good-till-cancel BUY order for sizeTokens at
// the given limit price.
func (c *Client) PlaceOrder(ctx context.Context, tokenID string, price, sizeTokens float64, negRisk bool) (*types.OrderResponse, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("order placement unavailable without credentials")
	}

	if err := c.acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire worker: %w", err)
	}
	defer c.release()

	signedOrder, err := c.signer.buildSignedOrder(tokenID, price, sizeTokens, negRisk)
	if err != nil {
		return nil, fmt.Errorf("build order: %w", err)
	}

	orderRequest := map[string]interface{}{
		"order":     signedOrder,
		"owner":     c.signer.apiKey,
		"orderType": "GTC",
	}

	reqBody, err := json.Marshal(orderRequest)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	const requestPath = "/order"
	headers, err := c.signer.authHeaders(http.MethodPost, requestPath, reqBody)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.clobURL+requestPath, strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		APIErrorsTotal.Inc()
		return nil, fmt.Errorf("send order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		APIErrorsTotal.Inc()
		return nil, &types.OrderError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var orderResp types.OrderResponse
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	OrdersPlacedTotal.Inc()
	c.logger.Info("order-placed",
		zap.String("token-id", tokenID),
		zap.String("order-id", orderResp.OrderID),
		zap.Float64("price", price),
		zap.Float64("size-tokens", sizeTokens))

	return &orderResp, nil
}

// CancelOrder cancels an order by ID. Best-effort: failures are logged
// and swallowed.
func (c *Client) CancelOrder(ctx context.Context, orderID string) {
	if c.signer == nil || orderID == "" {
		return
	}

	if err := c.acquire(ctx); err != nil {
		c.logger.Warn("cancel-skipped", zap.String("order-id", orderID), zap.Error(err))
		return
	}
	defer c.release()

	reqBody, err := json.Marshal(map[string]string{"orderID": orderID})
	if err != nil {
		c.logger.Warn("cancel-marshal-failed", zap.Error(err))
		return
	}

	const requestPath = "/order"
	headers, err := c.signer.authHeaders(http.MethodDelete, requestPath, reqBody)
	if err != nil {
		c.logger.Warn("cancel-sign-failed", zap.String("order-id", orderID), zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.clobURL+requestPath, strings.NewReader(string(reqBody)))
	if err != nil {
		c.logger.Warn("cancel-request-failed", zap.String("order-id", orderID), zap.Error(err))
		return
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		APIErrorsTotal.Inc()
		c.logger.Warn("cancel-failed", zap.String("order-id", orderID), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("cancel-rejected",
			zap.String("order-id", orderID),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return
	}

	OrdersCancelledTotal.Inc()
	c.logger.Info("order-cancelled", zap.String("order-id", orderID))
}
