// Package markets fetches market descriptors and resolution state from
// the exchange's metadata APIs.
package markets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/pkg/types"
)

const (
	listTimeout   = 30 * time.Second
	detailTimeout = 10 * time.Second
)

// Client talks to the market-metadata HTTP APIs: the listing endpoint
// for discovery and the exchange endpoint for resolution state.
type Client struct {
	gammaURL   string
	clobURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds metadata client configuration.
type Config struct {
	GammaURL string
	ClobURL  string
	Logger   *zap.Logger
}

// NewClient creates a new metadata client.
func NewClient(cfg *Config) *Client {
	return &Client{
		gammaURL:   cfg.GammaURL,
		clobURL:    cfg.ClobURL,
		httpClient: &http.Client{Timeout: listTimeout},
		logger:     cfg.Logger,
	}
}

// ListMarkets returns active, unclosed markets above the volume floor.
func (c *Client) ListMarkets(ctx context.Context, minVolume float64, limit int) ([]*types.RawMarket, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(limit))
	if minVolume > 0 {
		params.Set("volume_num_min", strconv.FormatFloat(minVolume, 'f', -1, 64))
	}

	reqURL := fmt.Sprintf("%s/markets?%s", c.gammaURL, params.Encode())

	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("list markets: status %d: %s", resp.StatusCode, string(body))
	}

	// The listing endpoint returns a direct array. Elements are decoded
	// one at a time so a single malformed market does not lose the batch.
	var raw []json.RawMessage
	err = json.NewDecoder(resp.Body).Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}

	markets := make([]*types.RawMarket, 0, len(raw))
	for _, item := range raw {
		var market types.RawMarket
		if err := json.Unmarshal(item, &market); err != nil {
			MalformedMarketsTotal.Inc()
			c.logger.Debug("market-decode-skipped", zap.Error(err))
			continue
		}
		markets = append(markets, &market)
	}

	ListRequestsTotal.Inc()
	c.logger.Debug("markets-listed",
		zap.Int("count", len(markets)),
		zap.Int("skipped", len(raw)-len(markets)))

	return markets, nil
}

// Resolution is the resolution state of a market. The winner may be
// reported in any of three places depending on market age; WinnerName
// checks them in order.
type Resolution struct {
	Resolved bool              `json:"resolved"`
	Closed   bool              `json:"closed"`
	Winner   string            `json:"winner"`
	Tokens   []ResolutionEntry `json:"tokens"`
	Outcomes []ResolutionEntry `json:"outcomes"`
}

// ResolutionEntry is one outcome's entry in a resolution payload.
type ResolutionEntry struct {
	Outcome string `json:"outcome"`
	Name    string `json:"name"`
	Winner  bool   `json:"winner"`
}

// IsResolved reports whether the market has resolved.
func (r *Resolution) IsResolved() bool {
	return r.Resolved || r.Closed
}

// WinnerName extracts the winning outcome name. Returns "" when the
// payload does not name a winner yet.
func (r *Resolution) WinnerName() string {
	if r.Winner != "" {
		return r.Winner
	}
	for _, tok := range r.Tokens {
		if tok.Winner {
			if tok.Outcome != "" {
				return tok.Outcome
			}
			return tok.Name
		}
	}
	for _, out := range r.Outcomes {
		if out.Winner {
			if out.Name != "" {
				return out.Name
			}
			return out.Outcome
		}
	}
	return ""
}

// GetMarket fetches resolution state for a condition ID.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*Resolution, error) {
	reqURL := fmt.Sprintf("%s/markets/%s", c.clobURL, url.PathEscape(conditionID))

	ctx, cancel := context.WithTimeout(ctx, detailTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get market: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get market: status %d: %s", resp.StatusCode, string(body))
	}

	var resolution Resolution
	err = json.NewDecoder(resp.Body).Decode(&resolution)
	if err != nil {
		return nil, fmt.Errorf("decode market: %w", err)
	}

	DetailRequestsTotal.Inc()

	return &resolution, nil
}
