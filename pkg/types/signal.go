package types

import "time"

// Strategy identifies which detector produced a trade signal.
type Strategy string

const (
	StrategyOneOfMany  Strategy = "one_of_many"
	StrategyYesNo      Strategy = "yes_no"
	StrategyLateMarket Strategy = "late_market"
)

// Leg is a single BUY order within a trade signal.
type Leg struct {
	Outcome    string  `json:"outcome"`
	TokenID    string  `json:"token_id"`
	NegRisk    bool    `json:"neg_risk"`
	Price      float64 `json:"price"`
	SizeUSD    float64 `json:"size_usd"`
	SizeTokens float64 `json:"size_tokens"`
	SpreadPct  float64 `json:"spread_pct"`
}

// TradeSignal is an executable trade emitted by the signal engine.
// Arb signals carry one leg per outcome with TotalCost equal to the
// sum of leg prices; late-market signals carry a single leg with
// TotalCost equal to price times token count.
type TradeSignal struct {
	Strategy    Strategy  `json:"strategy"`
	PositionID  string    `json:"position_id"`
	MarketID    string    `json:"market_id"`
	ConditionID string    `json:"condition_id"`
	Question    string    `json:"question"`
	Legs        []Leg     `json:"legs"`

	TotalCost      float64 `json:"total_cost"`
	ExpectedPayout float64 `json:"expected_payout"`
	ExpectedEdge   float64 `json:"expected_edge"`

	ExpiresAt  time.Time `json:"expires_at"`
	DetectedAt time.Time `json:"detected_at"`

	// Late-market telemetry, zero for arb strategies.
	Symbol            string  `json:"symbol,omitempty"`
	SpotPrice         float64 `json:"spot_price,omitempty"`
	SpotChangePct     float64 `json:"spot_change_pct,omitempty"`
	SpotVolatilityPct float64 `json:"spot_volatility_pct,omitempty"`
}
