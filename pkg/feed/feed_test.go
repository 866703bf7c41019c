package feed

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestFeed(t *testing.T) *Feed {
	t.Helper()
	return New(Config{
		URL:        "wss://example.invalid/stream",
		Symbols:    []string{"BTCUSDT", "ethusdt"},
		WindowSize: 60,
		Logger:     zaptest.NewLogger(t),
	})
}

func TestLatestAndHistory(t *testing.T) {
	f := newTestFeed(t)

	_, ok := f.Latest("btcusdt")
	assert.False(t, ok, "no ticks yet")

	f.record("btcusdt", 97000)
	f.record("btcusdt", 97100)
	f.record("btcusdt", 97200)

	price, ok := f.Latest("btcusdt")
	require.True(t, ok)
	assert.Equal(t, 97200.0, price)

	assert.Equal(t, []float64{97000, 97100, 97200}, f.History("btcusdt"))
	assert.Empty(t, f.History("ethusdt"))
	assert.Nil(t, f.History("dogeusdt"))
}

func TestRingBufferWrapsAtWindowSize(t *testing.T) {
	f := New(Config{
		URL:        "wss://example.invalid/stream",
		Symbols:    []string{"btcusdt"},
		WindowSize: 5,
		Logger:     zaptest.NewLogger(t),
	})

	for i := 1; i <= 8; i++ {
		f.record("btcusdt", float64(i))
	}

	assert.Equal(t, []float64{4, 5, 6, 7, 8}, f.History("btcusdt"))

	price, ok := f.Latest("btcusdt")
	require.True(t, ok)
	assert.Equal(t, 8.0, price)
}

func TestVolatility(t *testing.T) {
	f := newTestFeed(t)

	assert.Zero(t, f.Volatility("btcusdt"), "fewer than 2 samples")

	f.record("btcusdt", 97000)
	assert.Zero(t, f.Volatility("btcusdt"), "fewer than 2 samples")

	// Constant prices have zero volatility.
	f.record("btcusdt", 97000)
	f.record("btcusdt", 97000)
	assert.Zero(t, f.Volatility("btcusdt"))

	// Linear ramp 97000 -> 97500 over 30 ticks stays well under 1%.
	g := newTestFeed(t)
	for i := 0; i < 30; i++ {
		g.record("btcusdt", 97000+float64(i)*500.0/29.0)
	}
	vol := g.Volatility("btcusdt")
	assert.Greater(t, vol, 0.0)
	assert.Less(t, vol, 1.0)
}

func TestHandleMessageShapes(t *testing.T) {
	f := newTestFeed(t)

	// Combined-stream envelope.
	f.handleMessage([]byte(`{"stream":"btcusdt@ticker","data":{"s":"BTCUSDT","c":"97000.5"}}`))

	price, ok := f.Latest("btcusdt")
	require.True(t, ok)
	assert.Equal(t, 97000.5, price)

	// Bare ticker payload.
	f.handleMessage([]byte(`{"s":"ethusdt","c":"3500.25"}`))

	price, ok = f.Latest("ethusdt")
	require.True(t, ok)
	assert.Equal(t, 3500.25, price)

	// Unknown symbol, malformed price, and junk are all dropped.
	f.handleMessage([]byte(`{"s":"dogeusdt","c":"0.1"}`))
	f.handleMessage([]byte(`{"s":"btcusdt","c":"not-a-number"}`))
	f.handleMessage([]byte(`not json`))

	price, _ = f.Latest("btcusdt")
	assert.Equal(t, 97000.5, price)
}

func TestStreamURL(t *testing.T) {
	f := newTestFeed(t)
	assert.Equal(t,
		"wss://example.invalid/stream?streams=btcusdt@ticker/ethusdt@ticker",
		f.streamURL())

	pinned := New(Config{
		URL:     "wss://example.invalid/stream?streams=btcusdt@ticker",
		Symbols: []string{"btcusdt"},
		Logger:  zaptest.NewLogger(t),
	})
	assert.Equal(t, "wss://example.invalid/stream?streams=btcusdt@ticker", pinned.streamURL())
}

func BenchmarkRecord(b *testing.B) {
	f := New(Config{
		URL:     "wss://example.invalid/stream",
		Symbols: []string{"btcusdt"},
		Logger:  zaptest.NewLogger(b),
	})

	for i := 0; i < b.N; i++ {
		f.record("btcusdt", float64(97000+i%100))
	}
	_ = fmt.Sprint(f.Volatility("btcusdt"))
}
