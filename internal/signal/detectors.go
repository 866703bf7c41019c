package signal

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/pkg/types"
)

// detectOneOfMany looks for categorical markets (>= 3 outcomes) whose
// best asks sum below 1, so buying every outcome locks in the spread.
func (e *Engine) detectOneOfMany(snap *types.MarketSnapshot) *types.TradeSignal {
	if !e.cfg.EnableOneOfMany {
		return nil
	}
	if len(snap.Outcomes) < 3 {
		return nil
	}
	if snap.TimeToClose(time.Now().UTC()) < e.cfg.MinTimeToClose {
		return nil
	}

	n := float64(len(snap.Outcomes))
	positionSizeUSD := e.cfg.MaxArbPositionSize / n

	var totalCost float64
	legs := make([]types.Leg, 0, len(snap.Outcomes))

	for _, outcome := range snap.Outcomes {
		book := outcome.Book
		if !book.HasAsk() {
			return nil
		}
		if book.SpreadPct > e.cfg.MaxSpreadOneOfMany {
			return nil
		}

		requiredTokens := positionSizeUSD / book.BestAsk
		if !book.HasAskDepth(requiredTokens) {
			return nil
		}

		totalCost += book.BestAsk
		legs = append(legs, types.Leg{
			Outcome:    outcome.Name,
			TokenID:    outcome.TokenID,
			NegRisk:    snap.NegRisk,
			Price:      book.BestAsk,
			SizeUSD:    positionSizeUSD,
			SizeTokens: requiredTokens,
			SpreadPct:  book.SpreadPct,
		})
	}

	edge := (1.0 - totalCost) * 100.0
	if edge < e.cfg.MinArbEdgePct {
		return nil
	}

	return &types.TradeSignal{
		Strategy:       types.StrategyOneOfMany,
		PositionID:     newPositionID(snap.MarketID, types.StrategyOneOfMany),
		MarketID:       snap.MarketID,
		ConditionID:    snap.ConditionID,
		Question:       snap.Question,
		Legs:           legs,
		TotalCost:      totalCost,
		ExpectedPayout: 1.0,
		ExpectedEdge:   edge,
		ExpiresAt:      snap.ExpiresAt,
		DetectedAt:     time.Now().UTC(),
	}
}

// detectYesNo looks for binary markets where both sides together cost
// less than 1.
func (e *Engine) detectYesNo(snap *types.MarketSnapshot) *types.TradeSignal {
	if !e.cfg.EnableYesNo {
		return nil
	}
	if len(snap.Outcomes) != 2 {
		return nil
	}
	if !isBinaryPair(snap.Outcomes[0].Name, snap.Outcomes[1].Name) {
		return nil
	}
	if snap.TimeToClose(time.Now().UTC()) < e.cfg.MinTimeToClose {
		return nil
	}

	positionSizeUSD := e.cfg.MaxArbPositionSize / 2.0

	var totalCost float64
	legs := make([]types.Leg, 0, 2)

	for _, outcome := range snap.Outcomes {
		book := outcome.Book
		if !book.HasAsk() {
			return nil
		}
		if book.SpreadPct > e.cfg.MaxSpreadYesNo {
			return nil
		}

		requiredTokens := positionSizeUSD / book.BestAsk
		if !book.HasAskDepth(requiredTokens) {
			return nil
		}

		totalCost += book.BestAsk
		legs = append(legs, types.Leg{
			Outcome:    outcome.Name,
			TokenID:    outcome.TokenID,
			NegRisk:    snap.NegRisk,
			Price:      book.BestAsk,
			SizeUSD:    positionSizeUSD,
			SizeTokens: requiredTokens,
			SpreadPct:  book.SpreadPct,
		})
	}

	edge := (1.0 - totalCost) * 100.0
	if edge < e.cfg.MinArbEdgePct {
		return nil
	}

	return &types.TradeSignal{
		Strategy:       types.StrategyYesNo,
		PositionID:     newPositionID(snap.MarketID, types.StrategyYesNo),
		MarketID:       snap.MarketID,
		ConditionID:    snap.ConditionID,
		Question:       snap.Question,
		Legs:           legs,
		TotalCost:      totalCost,
		ExpectedPayout: 1.0,
		ExpectedEdge:   edge,
		ExpiresAt:      snap.ExpiresAt,
		DetectedAt:     time.Now().UTC(),
	}
}

// isBinaryPair reports whether the two outcome names form a YES/NO or
// UP/DOWN pair, in either order.
func isBinaryPair(a, b string) bool {
	na := strings.ToLower(strings.TrimSpace(a))
	nb := strings.ToLower(strings.TrimSpace(b))
	return (na == "yes" && nb == "no") || (na == "no" && nb == "yes") ||
		(na == "up" && nb == "down") || (na == "down" && nb == "up")
}

// detectLateMarket trades short-horizon directional markets by
// following the spot move inside the entry window.
func (e *Engine) detectLateMarket(snap *types.MarketSnapshot) *types.TradeSignal {
	if !e.cfg.EnableLateMarket {
		return nil
	}
	if !snap.IsLateCandidate || snap.Symbol == "" {
		return nil
	}

	ttc := snap.TimeToClose(time.Now().UTC())
	if ttc < e.cfg.LateWindowEnd || ttc > e.cfg.LateWindowStart {
		return nil
	}

	if _, emitted := e.lateEmitted[snap.MarketID]; emitted {
		return nil
	}

	spot, ok := e.cfg.Feed.Latest(snap.Symbol)
	if !ok {
		e.logger.Debug("late-no-spot-price",
			zap.String("market-id", snap.MarketID),
			zap.String("symbol", snap.Symbol))
		return nil
	}

	volatility := e.cfg.Feed.Volatility(snap.Symbol)
	if volatility > e.cfg.LateMaxVolatilityPct {
		e.logger.Debug("late-too-volatile",
			zap.String("market-id", snap.MarketID),
			zap.Float64("volatility-pct", volatility))
		return nil
	}

	history := e.cfg.Feed.History(snap.Symbol)
	if len(history) < 2 {
		return nil
	}
	oldest, newest := history[0], history[len(history)-1]
	if oldest == 0 {
		return nil
	}
	changePct := (newest - oldest) / oldest * 100.0
	if math.Abs(changePct) < e.cfg.LateMinDeviationPct {
		return nil
	}

	side := "Up"
	if changePct < 0 {
		side = "Down"
	}

	outcome, found := snap.FindOutcome(side)
	if !found {
		return nil
	}

	book := outcome.Book
	if !book.HasAsk() {
		return nil
	}
	if book.BestAsk > e.cfg.LateMaxPrice {
		return nil
	}
	if book.SpreadPct > e.cfg.MaxSpreadLateMarket {
		return nil
	}

	sizeTokens := e.cfg.MaxLatePositionSize / book.BestAsk
	if !book.HasAskDepth(sizeTokens) {
		return nil
	}

	e.lateEmitted[snap.MarketID] = struct{}{}

	totalCost := book.BestAsk * sizeTokens

	return &types.TradeSignal{
		Strategy:    types.StrategyLateMarket,
		PositionID:  newPositionID(snap.MarketID, types.StrategyLateMarket),
		MarketID:    snap.MarketID,
		ConditionID: snap.ConditionID,
		Question:    snap.Question,
		Legs: []types.Leg{{
			Outcome:    outcome.Name,
			TokenID:    outcome.TokenID,
			NegRisk:    snap.NegRisk,
			Price:      book.BestAsk,
			SizeUSD:    totalCost,
			SizeTokens: sizeTokens,
			SpreadPct:  book.SpreadPct,
		}},
		TotalCost:      totalCost,
		ExpectedPayout: sizeTokens,
		ExpectedEdge:   (1.0 - book.BestAsk) * 100.0,
		ExpiresAt:      snap.ExpiresAt,
		DetectedAt:     time.Now().UTC(),

		Symbol:            snap.Symbol,
		SpotPrice:         spot,
		SpotChangePct:     changePct,
		SpotVolatilityPct: volatility,
	}
}
