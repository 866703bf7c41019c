// Package testutil provides shared fakes and fixture builders for
// component tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/quantfold/polymarket-bot/pkg/types"
)

// MockLister is a canned market-metadata lister.
type MockLister struct {
	mu      sync.Mutex
	Markets []*types.RawMarket
	Err     error
	Calls   int
}

// ListMarkets returns the canned markets.
func (m *MockLister) ListMarkets(_ context.Context, _ float64, _ int) ([]*types.RawMarket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Markets, nil
}

// MockBooks serves canned orderbooks keyed by token ID. Unknown tokens
// return nil, matching the real client's failure behavior.
type MockBooks struct {
	mu    sync.Mutex
	Books map[string]*types.Orderbook
	Calls int
}

// Orderbook returns the canned book for a token.
func (m *MockBooks) Orderbook(_ context.Context, tokenID string) *types.Orderbook {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	return m.Books[tokenID]
}

// FetchCount returns how many orderbook fetches were made.
func (m *MockBooks) FetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// NoopCache implements cache.Cache without retaining anything, so
// cached-path short-circuits never trigger in tests.
type NoopCache struct{}

func (NoopCache) Get(string) (interface{}, bool)               { return nil, false }
func (NoopCache) Set(string, interface{}, time.Duration) bool  { return true }
func (NoopCache) Delete(string)                                {}
func (NoopCache) Clear()                                       {}
func (NoopCache) Close()                                       {}

// Book builds a one-level orderbook with the given top of book.
func Book(bestAsk, bestBid, askSize float64, spreadPct float64) *types.Orderbook {
	book := &types.Orderbook{
		BestAsk:   bestAsk,
		BestBid:   bestBid,
		SpreadPct: spreadPct,
	}
	if bestAsk > 0 {
		book.Asks = []types.PriceLevel{{Price: bestAsk, Size: askSize}}
		book.AsksDepth = askSize
	}
	if bestBid > 0 {
		book.Bids = []types.PriceLevel{{Price: bestBid, Size: askSize}}
		book.BidsDepth = askSize
	}
	return book
}

// BinarySnapshot builds a two-outcome snapshot expiring at the given
// offset from now.
func BinarySnapshot(marketID string, names [2]string, asks [2]*types.Orderbook, expiresIn time.Duration) *types.MarketSnapshot {
	return &types.MarketSnapshot{
		MarketID:        marketID,
		ConditionID:     "cond-" + marketID,
		Question:        "test market " + marketID,
		ExpiresAt:       time.Now().UTC().Add(expiresIn),
		Volume:          10000,
		AcceptingOrders: true,
		Active:          true,
		Outcomes: []types.OutcomeBook{
			{Name: names[0], TokenID: "tok-" + marketID + "-0", Book: asks[0]},
			{Name: names[1], TokenID: "tok-" + marketID + "-1", Book: asks[1]},
		},
	}
}
