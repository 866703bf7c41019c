package alerts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quantfold/polymarket-bot/pkg/types"
)

func TestSendPostsToBotEndpoint(t *testing.T) {
	var gotPath atomic.Value
	var gotBody atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotBody.Store(body)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := New(Config{
		BotToken: "test-token",
		ChatID:   "42",
		BaseURL:  server.URL,
		Logger:   zaptest.NewLogger(t),
	})

	n.Send(context.Background(), "hello")

	assert.Equal(t, "/bottest-token/sendMessage", gotPath.Load())
	body, ok := gotBody.Load().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "42", body["chat_id"])
	assert.Equal(t, "hello", body["text"])
}

func TestDisabledNotifierIsNoOp(t *testing.T) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	n := New(Config{
		BaseURL: server.URL,
		Logger:  zaptest.NewLogger(t),
	})

	n.Send(context.Background(), "should not be delivered")
	n.NotifyHalt(context.Background(), "daily loss exceeded")

	assert.Zero(t, calls.Load())
}

func TestNotifyResolutionFormatsPnL(t *testing.T) {
	var gotText atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotText.Store(body["text"])
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := New(Config{
		BotToken: "tok",
		ChatID:   "1",
		BaseURL:  server.URL,
		Logger:   zaptest.NewLogger(t),
	})

	n.NotifyResolution(context.Background(), &types.Position{
		Strategy:    types.StrategyYesNo,
		Question:    "Will it rain?",
		Winner:      "Yes",
		RealizedPnL: 110.16,
	})

	text, ok := gotText.Load().(string)
	require.True(t, ok)
	assert.Contains(t, text, "WIN")
	assert.Contains(t, text, "110.16")
	assert.Contains(t, text, "Yes")
}
