package types

import "time"

// PositionStatus is the lifecycle state of a position.
// Transitions are pending -> open -> closed, or pending -> failed.
type PositionStatus string

const (
	PositionPending PositionStatus = "pending"
	PositionOpen    PositionStatus = "open"
	PositionClosed  PositionStatus = "closed"
	PositionFailed  PositionStatus = "failed"
)

// OrderFill is the per-leg execution record attached to a position.
type OrderFill struct {
	Outcome     string  `json:"outcome"`
	TokenID     string  `json:"token_id"`
	OrderID     string  `json:"order_id"`
	Status      string  `json:"status"`
	Price       float64 `json:"price"`
	FillPrice   float64 `json:"fill_price"`
	SizeTokens  float64 `json:"size_tokens"`
	SlippagePct float64 `json:"slippage_pct"`
}

// Position is the persisted record of a trade from placement to
// settlement. Written by the executor, closed by the resolver.
type Position struct {
	PositionID  string         `json:"position_id"`
	MarketID    string         `json:"market_id"`
	ConditionID string         `json:"condition_id"`
	Question    string         `json:"question"`
	Strategy    Strategy       `json:"strategy"`
	Status      PositionStatus `json:"status"`
	Legs        []Leg          `json:"legs"`
	Orders      []OrderFill    `json:"orders,omitempty"`

	TotalCost       float64 `json:"total_cost"`
	ActualTotalCost float64 `json:"actual_total_cost"`
	ExpectedPayout  float64 `json:"expected_payout"`
	ExpectedEdge    float64 `json:"expected_edge"`
	ActualEdge      float64 `json:"actual_edge,omitempty"`
	AvgSlippagePct  float64 `json:"avg_slippage_pct,omitempty"`

	RealizedPnL float64 `json:"realized_pnl,omitempty"`
	Winner      string  `json:"winner,omitempty"`
	FailReason  string  `json:"fail_reason,omitempty"`

	OpenedAt  time.Time `json:"opened_at"`
	ClosedAt  time.Time `json:"closed_at,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DailyPnL is the per-day settlement rollup, keyed by ISO date.
type DailyPnL struct {
	Date          string             `json:"date"`
	TotalPnL      float64            `json:"total_pnl"`
	TotalTrades   int                `json:"total_trades"`
	WinningTrades int                `json:"winning_trades"`
	WinRate       float64            `json:"win_rate"`
	StrategyPnL   map[string]float64 `json:"strategy_pnl"`
	UpdatedAt     time.Time          `json:"updated_at"`
}
