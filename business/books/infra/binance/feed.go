package binance

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/quantor/triarb/business/books/domain"
	"github.com/quantor/triarb/internal/apperror"
	"github.com/quantor/triarb/internal/logger"
	"github.com/quantor/triarb/internal/wsconn"
)

const meterName = "triarb/books/binance"

// FeedConfig holds configuration for the depth feed.
type FeedConfig struct {
	BaseURL      string        // WebSocket base URL
	Pairs        []domain.Pair // markets to stream
	DepthSpeedMs int           // depth update speed (100 or 1000)
	StaleTimeout time.Duration // how long before a snapshot is considered stale
}

// DefaultFeedConfig returns sensible defaults.
func DefaultFeedConfig(pairs []domain.Pair) FeedConfig {
	return FeedConfig{
		BaseURL:      "wss://stream.binance.com:9443",
		Pairs:        pairs,
		DepthSpeedMs: 100,
		StaleTimeout: 5 * time.Second,
	}
}

type bookState struct {
	mu         sync.RWMutex
	book       domain.Book
	lastUpdate time.Time
}

type feedMetrics struct {
	messagesReceived metric.Int64Counter
	depthUpdates     metric.Int64Counter
	parseErrors      metric.Int64Counter
}

// Feed maintains live order-book snapshots from Binance partial depth
// streams. It implements the books context's BookSource port.
type Feed struct {
	config FeedConfig
	logger logger.LoggerInterface

	conn   *wsconn.Client
	connMu sync.RWMutex

	// book state per Binance symbol
	books  map[string]*bookState
	byPair map[domain.Pair]string

	metrics *feedMetrics
}

// NewFeed creates a depth feed for the configured pairs.
func NewFeed(cfg FeedConfig, log logger.LoggerInterface) (*Feed, error) {
	if len(cfg.Pairs) == 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no pairs configured"))
	}

	f := &Feed{
		config: cfg,
		logger: log,
		books:  make(map[string]*bookState, len(cfg.Pairs)),
		byPair: make(map[domain.Pair]string, len(cfg.Pairs)),
	}
	for _, pair := range cfg.Pairs {
		sym := Symbol(pair)
		f.books[sym] = &bookState{book: domain.Book{Pair: pair}}
		f.byPair[pair] = sym
	}

	if err := f.initMetrics(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Feed) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	f.metrics = &feedMetrics{}

	f.metrics.messagesReceived, err = meter.Int64Counter(
		"binance_messages_total",
		metric.WithDescription("Total messages received"),
	)
	if err != nil {
		return err
	}

	f.metrics.depthUpdates, err = meter.Int64Counter(
		"binance_depth_updates_total",
		metric.WithDescription("Total depth updates received"),
	)
	if err != nil {
		return err
	}

	f.metrics.parseErrors, err = meter.Int64Counter(
		"binance_parse_errors_total",
		metric.WithDescription("Message parse errors"),
	)
	return err
}

// Connect establishes the combined-stream connection. The combined
// URL auto-subscribes every configured depth stream.
func (f *Feed) Connect(ctx context.Context) error {
	wsURL, err := f.buildStreamURL()
	if err != nil {
		return err
	}

	wsCfg := wsconn.DefaultConfig(wsURL, "binance-depth")
	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeExchangeConnectionFailed, "binance depth feed")
	}
	conn.OnMessage(f.handleMessage)

	if err := conn.Connect(ctx); err != nil {
		return err
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	f.logger.Info(ctx, "binance depth feed connected",
		"url", wsURL, "pairs", len(f.config.Pairs))
	return nil
}

// buildStreamURL constructs the combined streams WebSocket URL.
func (f *Feed) buildStreamURL() (string, error) {
	streams := make([]string, 0, len(f.config.Pairs))
	for _, pair := range f.config.Pairs {
		streams = append(streams, DepthStream(Symbol(pair), f.config.DepthSpeedMs))
	}

	u, err := url.Parse(f.config.BaseURL)
	if err != nil {
		return "", err
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(streams, "/")
	return u.String(), nil
}

// handleMessage processes incoming WebSocket messages.
func (f *Feed) handleMessage(ctx context.Context, data []byte) {
	f.metrics.messagesReceived.Add(ctx, 1)

	var event StreamEvent
	if err := json.Unmarshal(data, &event); err != nil || event.Stream == "" {
		// Might be a subscription response; those carry no stream.
		var resp WSResponse
		if json.Unmarshal(data, &resp) == nil {
			return
		}
		f.metrics.parseErrors.Add(ctx, 1)
		return
	}

	var depth PartialDepthEvent
	if err := json.Unmarshal(event.Data, &depth); err != nil {
		f.metrics.parseErrors.Add(ctx, 1)
		f.logger.Warn(ctx, "failed to parse depth event", "error", err.Error())
		return
	}

	f.applyDepth(ctx, symbolFromStream(event.Stream), &depth)
}

// applyDepth replaces a symbol's snapshot with the latest depth event.
func (f *Feed) applyDepth(ctx context.Context, symbol string, depth *PartialDepthEvent) {
	state, ok := f.books[symbol]
	if !ok {
		return
	}

	bids, err := ParseLevels(depth.Bids)
	if err != nil {
		f.metrics.parseErrors.Add(ctx, 1)
		return
	}
	asks, err := ParseLevels(depth.Asks)
	if err != nil {
		f.metrics.parseErrors.Add(ctx, 1)
		return
	}

	now := time.Now()
	state.mu.Lock()
	state.book.Bids = bids
	state.book.Asks = asks
	state.book.Timestamp = now
	state.lastUpdate = now
	state.mu.Unlock()

	f.metrics.depthUpdates.Add(ctx, 1)
}

// Book returns the latest snapshot for a pair. ok is false for
// unknown pairs and for snapshots older than the stale timeout.
func (f *Feed) Book(pair domain.Pair) (domain.Book, bool) {
	sym, ok := f.byPair[pair]
	if !ok {
		return domain.Book{}, false
	}

	state := f.books[sym]
	state.mu.RLock()
	defer state.mu.RUnlock()

	if state.lastUpdate.IsZero() {
		return domain.Book{}, false
	}
	if f.config.StaleTimeout > 0 && time.Since(state.lastUpdate) > f.config.StaleTimeout {
		return domain.Book{}, false
	}
	return state.book, true
}

// IsConnected returns whether the feed's connection is established.
func (f *Feed) IsConnected() bool {
	f.connMu.RLock()
	defer f.connMu.RUnlock()
	return f.conn != nil && f.conn.IsConnected()
}

// Close closes the feed connection.
func (f *Feed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
