// Package feed maintains a streaming subscription to a spot-price
// ticker socket and exposes point-in-time reads of the latest price,
// rolling volatility, and tick history per symbol.
package feed

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultWindowSize     = 60
	defaultReconnectDelay = 5 * time.Second
	keepaliveSilence      = 30 * time.Second
)

// Config holds feed configuration.
type Config struct {
	URL            string
	Symbols        []string
	WindowSize     int
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	Logger         *zap.Logger
}

// Feed is a spot-price feed over a single multiplexed WebSocket
// connection. Readers never block on the socket; all reads are
// point-in-time snapshots taken under a read lock.
type Feed struct {
	url            string
	symbols        []string
	windowSize     int
	reconnectDelay time.Duration
	dialTimeout    time.Duration
	logger         *zap.Logger

	mu      sync.RWMutex
	windows map[string]*tickWindow

	connMu sync.Mutex
	conn   *websocket.Conn

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	connected   atomic.Bool
	lastMessage atomic.Int64
}

// tickWindow is a fixed-size ring buffer of recent prices.
type tickWindow struct {
	prices []float64
	next   int
	count  int
}

func (w *tickWindow) push(price float64) {
	w.prices[w.next] = price
	w.next = (w.next + 1) % len(w.prices)
	if w.count < len(w.prices) {
		w.count++
	}
}

// snapshot returns prices oldest-first.
func (w *tickWindow) snapshot() []float64 {
	out := make([]float64, 0, w.count)
	start := w.next - w.count
	if start < 0 {
		start += len(w.prices)
	}
	for i := 0; i < w.count; i++ {
		out = append(out, w.prices[(start+i)%len(w.prices)])
	}
	return out
}

// New creates a new feed for the given symbols.
func New(cfg Config) *Feed {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = defaultWindowSize
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	windows := make(map[string]*tickWindow, len(cfg.Symbols))
	symbols := make([]string, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		s = strings.ToLower(s)
		symbols = append(symbols, s)
		windows[s] = &tickWindow{prices: make([]float64, cfg.WindowSize)}
	}

	return &Feed{
		url:            cfg.URL,
		symbols:        symbols,
		windowSize:     cfg.WindowSize,
		reconnectDelay: cfg.ReconnectDelay,
		dialTimeout:    cfg.DialTimeout,
		logger:         cfg.Logger,
		windows:        windows,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start begins the connection loop. It does not block; connection
// failures are retried with a fixed delay.
func (f *Feed) Start() {
	f.logger.Info("feed-starting",
		zap.String("url", f.url),
		zap.Strings("symbols", f.symbols))

	f.wg.Add(2)
	go f.runLoop()
	go f.keepaliveLoop()
}

// Close stops the feed and waits for its goroutines.
func (f *Feed) Close() {
	f.cancel()

	f.connMu.Lock()
	if f.conn != nil {
		_ = f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	f.logger.Info("feed-closed")
}

// IsConnected reports whether the socket is currently up.
func (f *Feed) IsConnected() bool {
	return f.connected.Load()
}

// Latest returns the most recent price for a symbol.
func (f *Feed) Latest(symbol string) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	w, ok := f.windows[strings.ToLower(symbol)]
	if !ok || w.count == 0 {
		return 0, false
	}
	last := w.next - 1
	if last < 0 {
		last += len(w.prices)
	}
	return w.prices[last], true
}

// History returns a snapshot of the ring buffer, oldest first.
func (f *Feed) History(symbol string) []float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	w, ok := f.windows[strings.ToLower(symbol)]
	if !ok {
		return nil
	}
	return w.snapshot()
}

// Volatility returns the rolling volatility for a symbol as the
// standard deviation over the window divided by the mean, in percent.
// Returns 0 with fewer than 2 samples.
func (f *Feed) Volatility(symbol string) float64 {
	prices := f.History(symbol)
	if len(prices) < 2 {
		return 0
	}

	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(len(prices))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, p := range prices {
		d := p - mean
		variance += d * d
	}
	variance /= float64(len(prices))

	return math.Sqrt(variance) / mean * 100.0
}

// runLoop dials, reads until failure, and redials after a fixed delay.
func (f *Feed) runLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		err := f.connect()
		if err != nil {
			f.logger.Warn("feed-connect-failed", zap.Error(err))
			ReconnectsTotal.Inc()
			f.sleep(f.reconnectDelay)
			continue
		}

		f.readMessages()

		f.connected.Store(false)
		ConnectedGauge.Set(0)

		select {
		case <-f.ctx.Done():
			return
		default:
		}

		f.logger.Warn("feed-disconnected", zap.Duration("retry-in", f.reconnectDelay))
		ReconnectsTotal.Inc()
		f.sleep(f.reconnectDelay)
	}
}

func (f *Feed) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: f.dialTimeout}

	conn, _, err := dialer.DialContext(f.ctx, f.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	f.connected.Store(true)
	f.lastMessage.Store(time.Now().Unix())
	ConnectedGauge.Set(1)

	f.logger.Info("feed-connected", zap.Strings("symbols", f.symbols))
	return nil
}

// streamURL appends the combined-stream path for the configured
// symbols when the base URL does not already carry one.
func (f *Feed) streamURL() string {
	if strings.Contains(f.url, "streams=") {
		return f.url
	}

	streams := make([]string, 0, len(f.symbols))
	for _, s := range f.symbols {
		streams = append(streams, s+"@ticker")
	}

	sep := "?"
	if strings.Contains(f.url, "?") {
		sep = "&"
	}
	return f.url + sep + "streams=" + strings.Join(streams, "/")
}

// tickerMessage is a single per-symbol ticker payload, optionally
// wrapped in a combined-stream envelope.
type tickerMessage struct {
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

func (f *Feed) readMessages() {
	f.connMu.Lock()
	conn := f.conn
	f.connMu.Unlock()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.ctx.Done():
			default:
				f.logger.Warn("feed-read-error", zap.Error(err))
			}
			return
		}

		f.lastMessage.Store(time.Now().Unix())
		f.handleMessage(message)
	}
}

func (f *Feed) handleMessage(message []byte) {
	payload := message

	var envelope streamEnvelope
	if err := json.Unmarshal(message, &envelope); err == nil && len(envelope.Data) > 0 {
		payload = envelope.Data
	}

	var tick tickerMessage
	if err := json.Unmarshal(payload, &tick); err != nil || tick.Symbol == "" || tick.Close == "" {
		return
	}

	price, err := strconv.ParseFloat(tick.Close, 64)
	if err != nil || price <= 0 {
		return
	}

	f.record(strings.ToLower(tick.Symbol), price)
}

// record pushes a tick into the symbol's window. Unknown symbols are
// ignored.
func (f *Feed) record(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.windows[symbol]
	if !ok {
		return
	}
	w.push(price)
	MessagesTotal.Inc()
}

// keepaliveLoop pings after 30 s of silence; a second silent window
// closes the connection to force a reconnect.
func (f *Feed) keepaliveLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(keepaliveSilence)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			if !f.connected.Load() {
				continue
			}

			silence := time.Since(time.Unix(f.lastMessage.Load(), 0))
			switch {
			case silence >= 2*keepaliveSilence:
				f.logger.Warn("feed-stale-connection", zap.Duration("silence", silence))
				f.connMu.Lock()
				if f.conn != nil {
					_ = f.conn.Close()
				}
				f.connMu.Unlock()
			case silence >= keepaliveSilence:
				f.connMu.Lock()
				conn := f.conn
				f.connMu.Unlock()
				if conn != nil {
					deadline := time.Now().Add(5 * time.Second)
					err := conn.WriteControl(websocket.PingMessage, nil, deadline)
					if err != nil {
						f.logger.Warn("feed-ping-failed", zap.Error(err))
					}
				}
			}
		}
	}
}

func (f *Feed) sleep(d time.Duration) {
	select {
	case <-f.ctx.Done():
	case <-time.After(d):
	}
}
