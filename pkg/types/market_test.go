package types

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawMarketUnmarshalStringifiedFields(t *testing.T) {
	payload := `{
		"id": "mkt-1",
		"conditionId": "0xabc",
		"question": "Bitcoin Up or Down - 5 minute",
		"slug": "btc-up-or-down",
		"endDate": "2026-08-24T12:00:00Z",
		"volume": "12345.5",
		"liquidity": 900.25,
		"active": true,
		"closed": false,
		"acceptingOrders": true,
		"negRisk": false,
		"outcomes": "[\"Up\", \"Down\"]",
		"clobTokenIds": "[\"111\", \"222\"]",
		"outcomePrices": "[\"0.55\", \"0.46\"]"
	}`

	var m RawMarket
	require.NoError(t, json.Unmarshal([]byte(payload), &m))

	assert.Equal(t, "mkt-1", m.ID)
	assert.Equal(t, "0xabc", m.ConditionID)
	assert.Equal(t, 12345.5, m.Volume)
	assert.Equal(t, 900.25, m.Liquidity)
	assert.Equal(t, time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC), m.EndDate)
	assert.Equal(t, []string{"Up", "Down"}, m.Outcomes)
	assert.Equal(t, []string{"111", "222"}, m.ClobTokenIDs)
	assert.Equal(t, []float64{0.55, 0.46}, m.OutcomePrices)
}

func TestRawMarketUnmarshalDirectArrays(t *testing.T) {
	payload := `{
		"id": "mkt-2",
		"question": "Who wins the election?",
		"outcomes": ["A", "B", "C"],
		"clobTokenIds": ["1", "2", "3"],
		"volume": 5000
	}`

	var m RawMarket
	require.NoError(t, json.Unmarshal([]byte(payload), &m))

	assert.Len(t, m.Outcomes, 3)
	assert.Len(t, m.ClobTokenIDs, 3)
	assert.Equal(t, 5000.0, m.Volume)
}

func TestOrderbookHasAskDepth(t *testing.T) {
	tests := []struct {
		name     string
		book     *Orderbook
		required float64
		want     bool
	}{
		{
			name: "single level covers",
			book: &Orderbook{
				Asks:    []PriceLevel{{Price: 0.45, Size: 1000}},
				BestAsk: 0.45,
			},
			required: 111.11,
			want:     true,
		},
		{
			name: "cumulative across levels",
			book: &Orderbook{
				Asks:    []PriceLevel{{Price: 0.45, Size: 60}, {Price: 0.46, Size: 60}},
				BestAsk: 0.45,
			},
			required: 100,
			want:     true,
		},
		{
			name: "insufficient depth",
			book: &Orderbook{
				Asks:    []PriceLevel{{Price: 0.45, Size: 50}},
				BestAsk: 0.45,
			},
			required: 100,
			want:     false,
		},
		{
			name:     "nil book",
			book:     nil,
			required: 1,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.book.HasAskDepth(tt.required))
		})
	}
}

func TestSnapshotFindOutcome(t *testing.T) {
	snap := &MarketSnapshot{
		Outcomes: []OutcomeBook{
			{Name: "Yes", TokenID: "1"},
			{Name: "No", TokenID: "2"},
		},
	}

	o, ok := snap.FindOutcome("YES")
	require.True(t, ok)
	assert.Equal(t, "1", o.TokenID)

	o, ok = snap.FindOutcome(" no ")
	require.True(t, ok)
	assert.Equal(t, "2", o.TokenID)

	_, ok = snap.FindOutcome("maybe")
	assert.False(t, ok)
}
