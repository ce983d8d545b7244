package binance

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	booksDomain "github.com/quantor/triarb/business/books/domain"
	"github.com/quantor/triarb/business/execution/domain"
	"github.com/quantor/triarb/internal/apperror"
	"github.com/quantor/triarb/internal/asset"
	"github.com/quantor/triarb/internal/cache"
	"github.com/quantor/triarb/internal/logger"
	"github.com/quantor/triarb/internal/wsconn"
)

// ConnectorConfig holds everything the live connector needs.
type ConnectorConfig struct {
	Client            ClientConfig
	StreamURL         string
	Pairs             []booksDomain.Pair
	BalanceTTL        time.Duration
	KeepAliveInterval time.Duration
	EventBuffer       int
}

// DefaultConnectorConfig returns production defaults. Binance expires
// listen keys after 60 minutes without a keepalive.
func DefaultConnectorConfig(pairs []booksDomain.Pair) ConnectorConfig {
	return ConnectorConfig{
		Client:            DefaultClientConfig(),
		StreamURL:         "wss://stream.binance.com:9443",
		Pairs:             pairs,
		BalanceTTL:        5 * time.Second,
		KeepAliveInterval: 30 * time.Minute,
		EventBuffer:       64,
	}
}

// Connector drives live spot orders over REST and surfaces their
// lifecycle from the user data stream.
type Connector struct {
	config ConnectorConfig
	client *Client
	assets *asset.Registry
	logger logger.LoggerInterface

	byPair map[string]booksDomain.Pair // keyed by Binance symbol

	balances *cache.Cache[string, decimal.Decimal]

	streamMu  sync.Mutex
	stream    *wsconn.Client
	listenKey string

	events    chan domain.Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewConnector creates a live connector for the given pairs.
func NewConnector(cfg ConnectorConfig, assets *asset.Registry, log logger.LoggerInterface) (*Connector, error) {
	if len(cfg.Pairs) == 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no pairs configured"))
	}

	client, err := NewClient(cfg.Client, log)
	if err != nil {
		return nil, err
	}

	byPair := make(map[string]booksDomain.Pair, len(cfg.Pairs))
	for _, pair := range cfg.Pairs {
		byPair[Symbol(pair)] = pair
	}

	return &Connector{
		config:   cfg,
		client:   client,
		assets:   assets,
		logger:   log,
		byPair:   byPair,
		balances: cache.New[string, decimal.Decimal](time.Minute),
		events:   make(chan domain.Event, cfg.EventBuffer),
		done:     make(chan struct{}),
	}, nil
}

// Start opens the user data stream and keeps its listen key alive.
func (c *Connector) Start(ctx context.Context) error {
	listenKey, err := c.client.createListenKey(ctx)
	if err != nil {
		return err
	}

	wsCfg := wsconn.DefaultConfig(c.config.StreamURL+"/ws/"+listenKey, "binance-user")
	stream, err := wsconn.New(wsCfg)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeExchangeConnectionFailed, "user data stream")
	}
	stream.OnMessage(c.handleStream)

	if err := stream.Connect(ctx); err != nil {
		return err
	}

	c.streamMu.Lock()
	c.stream = stream
	c.listenKey = listenKey
	c.streamMu.Unlock()

	c.wg.Add(1)
	go c.keepAliveLoop(ctx)

	c.logger.Info(ctx, "binance user data stream connected", "pairs", len(c.config.Pairs))
	return nil
}

// PlaceOrder submits a limit order. The exchange acknowledgment is
// emitted immediately from the REST response; fills arrive later on
// the user data stream.
func (c *Connector) PlaceOrder(ctx context.Context, order *domain.Order) error {
	price := c.assets.Quantize(order.Pair.Quote, order.Price)
	quantity := c.assets.Quantize(order.Pair.Base, order.AmountRemaining)
	if !quantity.IsPositive() {
		return apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext(order.Pair.String()))
	}

	symbol := Symbol(order.Pair)
	resp, err := c.client.placeOrder(ctx, symbol,
		restSide(order.Side), price.String(), quantity.String())
	if err != nil {
		return err
	}

	c.invalidateBalances(order.Pair)

	c.logger.Info(ctx, "order placed",
		"symbol", symbol, "side", string(order.Side),
		"price", price.String(), "quantity", quantity.String(),
		"orderId", resp.OrderID)

	c.emit(domain.Event{
		Type:      domain.EventPlaced,
		Pair:      order.Pair,
		OrderID:   strconv.FormatInt(resp.OrderID, 10),
		Timestamp: time.Now(),
	})
	return nil
}

// CancelOrder requests cancellation by exchange id. The cancel
// acknowledgment arrives on the user data stream.
func (c *Connector) CancelOrder(ctx context.Context, order *domain.Order) error {
	orderID, err := strconv.ParseInt(order.ID, 10, 64)
	if err != nil {
		return apperror.New(apperror.CodeOrderNotFound,
			apperror.WithContext(order.ID))
	}

	_, err = c.client.cancelOrder(ctx, Symbol(order.Pair), orderID)
	return err
}

// Balance returns the free balance for a currency, served from a
// short-lived cache to keep the account endpoint off the hot path.
func (c *Connector) Balance(ctx context.Context, currency string) (decimal.Decimal, error) {
	if free, ok := c.balances.Get(ctx, currency); ok {
		return free, nil
	}

	account, err := c.client.account(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	var requested decimal.Decimal
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			continue
		}
		c.balances.Set(ctx, b.Asset, free, c.config.BalanceTTL)
		if b.Asset == currency {
			requested = free
		}
	}
	return requested, nil
}

// Events returns the order notification stream.
func (c *Connector) Events() <-chan domain.Event {
	return c.events
}

// Close shuts down the stream and closes the event channel.
func (c *Connector) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.streamMu.Lock()
		if c.stream != nil {
			err = c.stream.Close()
		}
		c.streamMu.Unlock()

		c.wg.Wait()
		c.balances.Close()
		close(c.events)
	})
	return err
}

// handleStream translates user data stream messages into events.
func (c *Connector) handleStream(ctx context.Context, data []byte) {
	var report executionReport
	if err := json.Unmarshal(data, &report); err != nil || report.EventType != "executionReport" {
		// Balance and listen key events share the stream; skip them.
		return
	}

	pair, ok := c.byPair[report.Symbol]
	if !ok {
		return
	}

	id := strconv.FormatInt(report.OrderID, 10)
	ts := time.UnixMilli(report.EventTime)

	switch report.OrderStatus {
	case statusNew:
		c.emit(domain.Event{Type: domain.EventPlaced, Pair: pair, OrderID: id, Timestamp: ts})

	case statusPartiallyFilled:
		c.emitFill(ctx, pair, id, report.LastFilled, ts)

	case statusFilled:
		c.emitFill(ctx, pair, id, report.LastFilled, ts)
		c.emit(domain.Event{Type: domain.EventComplete, Pair: pair, OrderID: id, Timestamp: ts})
		c.invalidateBalances(pair)

	case statusCanceled:
		c.emit(domain.Event{Type: domain.EventCancel, Pair: pair, OrderID: id, Timestamp: ts})
		c.invalidateBalances(pair)

	case statusRejected, statusExpired:
		c.emit(domain.Event{
			Type:      domain.EventFail,
			Pair:      pair,
			OrderID:   id,
			Reason:    report.RejectReason,
			Timestamp: ts,
		})
	}
}

func (c *Connector) emitFill(ctx context.Context, pair booksDomain.Pair, id, lastFilled string, ts time.Time) {
	amount, err := decimal.NewFromString(lastFilled)
	if err != nil || !amount.IsPositive() {
		c.logger.Warn(ctx, "unparseable fill quantity",
			"symbol", Symbol(pair), "orderId", id, "quantity", lastFilled)
		return
	}
	c.emit(domain.Event{
		Type:      domain.EventFill,
		Pair:      pair,
		OrderID:   id,
		Amount:    amount,
		Timestamp: ts,
	})
}

// invalidateBalances drops cached balances touched by a pair's fills.
func (c *Connector) invalidateBalances(pair booksDomain.Pair) {
	c.balances.Delete(pair.Base)
	c.balances.Delete(pair.Quote)
}

func (c *Connector) keepAliveLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.streamMu.Lock()
			listenKey := c.listenKey
			c.streamMu.Unlock()

			if err := c.client.keepAliveListenKey(ctx, listenKey); err != nil {
				c.logger.Warn(ctx, "listen key keepalive failed", "error", err.Error())
			}
		}
	}
}

// emit delivers an event without blocking the stream handler forever.
func (c *Connector) emit(ev domain.Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
