package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// RawMarket is a market descriptor as returned by the metadata API.
// Several sub-fields (outcomes, clobTokenIds, outcomePrices) arrive as
// JSON-encoded strings inside the outer payload; UnmarshalJSON parses
// them transparently.
type RawMarket struct {
	ID              string    `json:"id"`
	ConditionID     string    `json:"conditionId"`
	Question        string    `json:"question"`
	Slug            string    `json:"slug"`
	EndDate         time.Time `json:"-"`
	Volume          float64   `json:"-"`
	Liquidity       float64   `json:"-"`
	Active          bool      `json:"active"`
	Closed          bool      `json:"closed"`
	AcceptingOrders bool      `json:"acceptingOrders"`
	NegRisk         bool      `json:"negRisk"`
	Outcomes        []string  `json:"-"`
	ClobTokenIDs    []string  `json:"-"`
	OutcomePrices   []float64 `json:"-"`
}

// UnmarshalJSON handles the API's habit of serializing array fields as
// JSON strings and numeric fields as either numbers or strings.
func (m *RawMarket) UnmarshalJSON(data []byte) error {
	type Alias RawMarket
	aux := &struct {
		*Alias
		EndDate       string          `json:"endDate"`
		Volume        json.RawMessage `json:"volume"`
		Liquidity     json.RawMessage `json:"liquidity"`
		Outcomes      json.RawMessage `json:"outcomes"`
		ClobTokenIDs  json.RawMessage `json:"clobTokenIds"`
		OutcomePrices json.RawMessage `json:"outcomePrices"`
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal market: %w", err)
	}

	if aux.EndDate != "" {
		endDate, err := time.Parse(time.RFC3339, aux.EndDate)
		if err != nil {
			return fmt.Errorf("parse end date %q: %w", aux.EndDate, err)
		}
		m.EndDate = endDate
	}

	m.Volume = parseFlexibleFloat(aux.Volume)
	m.Liquidity = parseFlexibleFloat(aux.Liquidity)

	outcomes, err := parseStringArray(aux.Outcomes)
	if err != nil {
		return fmt.Errorf("parse outcomes: %w", err)
	}
	m.Outcomes = outcomes

	tokenIDs, err := parseStringArray(aux.ClobTokenIDs)
	if err != nil {
		return fmt.Errorf("parse clobTokenIds: %w", err)
	}
	m.ClobTokenIDs = tokenIDs

	prices, err := parseStringArray(aux.OutcomePrices)
	if err != nil {
		return fmt.Errorf("parse outcomePrices: %w", err)
	}
	m.OutcomePrices = make([]float64, 0, len(prices))
	for _, p := range prices {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return fmt.Errorf("parse outcome price %q: %w", p, err)
		}
		m.OutcomePrices = append(m.OutcomePrices, f)
	}

	return nil
}

// parseStringArray decodes either a JSON array of strings or a
// JSON-encoded string containing such an array.
func parseStringArray(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var direct []string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct, nil
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("neither array nor string: %s", string(raw))
	}
	if encoded == "" {
		return nil, nil
	}

	var nested []string
	if err := json.Unmarshal([]byte(encoded), &nested); err != nil {
		return nil, fmt.Errorf("decode nested array: %w", err)
	}
	return nested, nil
}

// parseFlexibleFloat decodes a number that may arrive as a JSON number
// or a quoted string. Malformed values parse as 0.
func parseFlexibleFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var direct float64
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(encoded, 64)
	if err != nil {
		return 0
	}
	return f
}

// OutcomeBook pairs an outcome name and token with its current book.
// Book is never nil in a snapshot; enrichment installs an empty book
// when the fetch fails.
type OutcomeBook struct {
	Name    string     `json:"name"`
	TokenID string     `json:"token_id"`
	Book    *Orderbook `json:"orderbook"`
}

// MarketSnapshot is an enriched market emitted by the scanner and
// consumed by the signal engine.
type MarketSnapshot struct {
	MarketID        string        `json:"market_id"`
	ConditionID     string        `json:"condition_id"`
	Question        string        `json:"question"`
	ExpiresAt       time.Time     `json:"expires_at"`
	Volume          float64       `json:"volume"`
	Liquidity       float64       `json:"liquidity"`
	NegRisk         bool          `json:"neg_risk"`
	Outcomes        []OutcomeBook `json:"outcomes"`
	IsLateCandidate bool          `json:"is_late_candidate"`
	Symbol          string        `json:"symbol,omitempty"`
	AcceptingOrders bool          `json:"accepting_orders"`
	Active          bool          `json:"active"`
}

// TimeToClose returns the remaining time until market resolution.
func (s *MarketSnapshot) TimeToClose(now time.Time) time.Duration {
	return s.ExpiresAt.Sub(now)
}

// FindOutcome returns the outcome whose name matches (case-insensitive).
func (s *MarketSnapshot) FindOutcome(name string) (OutcomeBook, bool) {
	for _, o := range s.Outcomes {
		if strings.EqualFold(strings.TrimSpace(o.Name), strings.TrimSpace(name)) {
			return o, true
		}
	}
	return OutcomeBook{}, false
}
