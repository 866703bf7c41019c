package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Deterministic throwaway key for signing tests. Never funded.
const testPrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func newReadOnlyClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	c, err := New(&Config{
		ClobURL: serverURL,
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return c
}

func TestOrderbookNormalization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/book", r.URL.Path)
		require.Equal(t, "tok-1", r.URL.Query().Get("token_id"))

		w.Header().Set("Content-Type", "application/json")
		// Mixed shapes: string and numeric values, unsorted levels.
		_, _ = w.Write([]byte(`{
			"asks": [
				{"price": "0.47", "size": "200"},
				{"price": 0.45, "size": 1000},
				{"price": "0.46", "size": "300"}
			],
			"bids": [
				{"price": "0.43", "size": "150"},
				{"price": "0.449", "size": "400"}
			]
		}`))
	}))
	defer server.Close()

	c := newReadOnlyClient(t, server.URL)

	book := c.Orderbook(context.Background(), "tok-1")
	require.NotNil(t, book)

	// Asks ascending, bids descending.
	require.Len(t, book.Asks, 3)
	assert.Equal(t, 0.45, book.Asks[0].Price)
	assert.Equal(t, 0.47, book.Asks[2].Price)
	assert.Equal(t, 0.449, book.Bids[0].Price)

	assert.Equal(t, 0.45, book.BestAsk)
	assert.Equal(t, 0.449, book.BestBid)
	assert.InDelta(t, (0.45-0.449)/0.45*100, book.SpreadPct, 1e-9)
	assert.Equal(t, 1500.0, book.AsksDepth)
	assert.Equal(t, 550.0, book.BidsDepth)
}

func TestOrderbookMissingOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	c := newReadOnlyClient(t, server.URL)
	assert.Nil(t, c.Orderbook(context.Background(), "unknown"))
}

func TestOrderbookOneSidedBook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"asks": [{"price": "0.55", "size": "500"}], "bids": []}`))
	}))
	defer server.Close()

	c := newReadOnlyClient(t, server.URL)

	book := c.Orderbook(context.Background(), "tok-1")
	require.NotNil(t, book)
	assert.Equal(t, 0.55, book.BestAsk)
	assert.Zero(t, book.BestBid)
	assert.Zero(t, book.SpreadPct, "spread undefined without both sides")
}

func TestPlaceOrderRequiresCredentials(t *testing.T) {
	c := newReadOnlyClient(t, "http://example.invalid")
	assert.False(t, c.CanTrade())

	_, err := c.PlaceOrder(context.Background(), "tok", 0.5, 100, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestPlaceOrderSignsAndSubmits(t *testing.T) {
	type receivedOrder struct {
		Order     signedOrderJSON `json:"order"`
		Owner     string          `json:"owner"`
		OrderType string          `json:"orderType"`
	}

	var got receivedOrder
	var gotHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/order", r.URL.Path)
		gotHeaders = r.Header.Clone()

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orderID":"ord-1","status":"matched","price":"0.45","size":"111.11"}`))
	}))
	defer server.Close()

	c, err := New(&Config{
		ClobURL:    server.URL,
		PrivateKey: testPrivateKey,
		APIKey:     "key-1",
		Secret:     base64Secret(),
		Passphrase: "pass",
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	require.True(t, c.CanTrade())

	resp, err := c.PlaceOrder(context.Background(), "123456", 0.45, 111.11, false)
	require.NoError(t, err)

	assert.Equal(t, "ord-1", resp.OrderID)
	assert.True(t, resp.Filled())
	assert.Equal(t, 0.45, resp.Price)

	assert.Equal(t, "key-1", got.Owner)
	assert.Equal(t, "GTC", got.OrderType)
	assert.Equal(t, "BUY", got.Order.Side)
	assert.Equal(t, "123456", got.Order.TokenID)
	assert.Equal(t, "49999500", got.Order.MakerAmount, "0.45 * 111.11 USDC in raw units")
	assert.Equal(t, "111110000", got.Order.TakerAmount)
	assert.NotEmpty(t, got.Order.Signature)

	assert.Equal(t, "key-1", gotHeaders.Get("POLY_API_KEY"))
	assert.Equal(t, "pass", gotHeaders.Get("POLY_PASSPHRASE"))
	assert.NotEmpty(t, gotHeaders.Get("POLY_SIGNATURE"))
	assert.NotEmpty(t, gotHeaders.Get("POLY_TIMESTAMP"))
	assert.NotEmpty(t, gotHeaders.Get("POLY_ADDRESS"))
}

func TestCancelOrderBestEffort(t *testing.T) {
	var cancelled bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		cancelled = body["orderID"] == "ord-1"

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, err := New(&Config{
		ClobURL:    server.URL,
		PrivateKey: testPrivateKey,
		APIKey:     "key-1",
		Secret:     base64Secret(),
		Passphrase: "pass",
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	c.CancelOrder(context.Background(), "ord-1")
	assert.True(t, cancelled)

	// No credentials, no panic.
	ro := newReadOnlyClient(t, server.URL)
	ro.CancelOrder(context.Background(), "ord-2")
}

func TestUsdToRawAmount(t *testing.T) {
	tests := []struct {
		usd  float64
		want string
	}{
		{50.0, "50000000"},
		{0.95, "950000"},
		{111.11, "111110000"},
		{0, "0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, usdToRawAmount(tt.usd))
	}
}

// base64Secret returns a URL-safe base64 secret usable by the HMAC signer.
func base64Secret() string {
	return "c2VjcmV0LXNlY3JldC1zZWNyZXQtc2VjcmV0LQ=="
}
