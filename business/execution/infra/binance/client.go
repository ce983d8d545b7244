package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/quantor/triarb/internal/apperror"
	"github.com/quantor/triarb/internal/circuitbreaker"
	"github.com/quantor/triarb/internal/httpclient"
	"github.com/quantor/triarb/internal/logger"
	"github.com/quantor/triarb/internal/ratelimit"
)

// ClientConfig holds REST API credentials and endpoints.
type ClientConfig struct {
	BaseURL         string
	APIKey          string
	APISecret       string
	RecvWindow      time.Duration
	RateLimitPerMin int
}

// DefaultClientConfig returns production endpoint defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:         "https://api.binance.com",
		RecvWindow:      5 * time.Second,
		RateLimitPerMin: 1200,
	}
}

// Client is the signed REST client for the spot trading endpoints.
// Order and account calls run behind separate circuit breakers so a
// broken trading endpoint does not blind the balance path.
type Client struct {
	config  ClientConfig
	http    httpclient.Client
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface

	orderBreaker   *circuitbreaker.CircuitBreaker[*orderResponse]
	cancelBreaker  *circuitbreaker.CircuitBreaker[*cancelResponse]
	accountBreaker *circuitbreaker.CircuitBreaker[*accountResponse]
}

// NewClient creates a REST client.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("binance api credentials missing"))
	}

	httpClient, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("binance-trade"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(10*time.Second),
		httpclient.WithHeaders(map[string]string{
			"X-MBX-APIKEY": cfg.APIKey,
		}),
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		config:         cfg,
		http:           httpClient,
		limiter:        ratelimit.New(cfg.RateLimitPerMin),
		logger:         log,
		orderBreaker:   circuitbreaker.New[*orderResponse](circuitbreaker.DefaultConfig("binance-order")),
		cancelBreaker:  circuitbreaker.New[*cancelResponse](circuitbreaker.DefaultConfig("binance-cancel")),
		accountBreaker: circuitbreaker.New[*accountResponse](circuitbreaker.DefaultConfig("binance-account")),
	}, nil
}

// placeOrder submits a GTC limit order.
func (c *Client) placeOrder(ctx context.Context, symbol, side, price, quantity string) (*orderResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]string{
		"symbol":      symbol,
		"side":        side,
		"type":        "LIMIT",
		"timeInForce": "GTC",
		"price":       price,
		"quantity":    quantity,
	}

	return c.orderBreaker.Execute(func() (*orderResponse, error) {
		var result orderResponse
		resp, err := c.http.NewRequestWithOptions(
			httpclient.WithResponseErrorHandler(handleAPIError),
		).
			SetQueryParams(c.sign(params)).
			SetResult(&result).
			Post(ctx, "/api/v3/order")
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeOrderPlacementFailed, symbol)
		}
		if resp.IsError() {
			return nil, apperror.New(apperror.CodeOrderPlacementFailed,
				apperror.WithContext(resp.String()))
		}
		return &result, nil
	})
}

// cancelOrder cancels a resting order by exchange id.
func (c *Client) cancelOrder(ctx context.Context, symbol string, orderID int64) (*cancelResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]string{
		"symbol":  symbol,
		"orderId": strconv.FormatInt(orderID, 10),
	}

	return c.cancelBreaker.Execute(func() (*cancelResponse, error) {
		var result cancelResponse
		resp, err := c.http.NewRequestWithOptions(
			httpclient.WithResponseErrorHandler(handleAPIError),
		).
			SetQueryParams(c.sign(params)).
			SetResult(&result).
			Delete(ctx, "/api/v3/order")
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeOrderCancelFailed, symbol)
		}
		if resp.IsError() {
			return nil, apperror.New(apperror.CodeOrderCancelFailed,
				apperror.WithContext(resp.String()))
		}
		return &result, nil
	})
}

// account fetches the signed account snapshot.
func (c *Client) account(ctx context.Context) (*accountResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return c.accountBreaker.Execute(func() (*accountResponse, error) {
		var result accountResponse
		resp, err := c.http.NewRequestWithOptions(
			httpclient.WithResponseErrorHandler(handleAPIError),
		).
			SetQueryParams(c.sign(map[string]string{})).
			SetResult(&result).
			Get(ctx, "/api/v3/account")
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeBalanceFetchFailed, "account")
		}
		if resp.IsError() {
			return nil, apperror.New(apperror.CodeBalanceFetchFailed,
				apperror.WithContext(resp.String()))
		}
		return &result, nil
	})
}

// createListenKey opens a user data stream. The endpoint only needs
// the API key header, not a signature.
func (c *Client) createListenKey(ctx context.Context) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var result listenKeyResponse
	resp, err := c.http.NewRequest().
		SetResult(&result).
		Post(ctx, "/api/v3/userDataStream")
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeExchangeConnectionFailed, "listen key")
	}
	if resp.IsError() || result.ListenKey == "" {
		return "", apperror.New(apperror.CodeExchangeConnectionFailed,
			apperror.WithContext(resp.String()))
	}
	return result.ListenKey, nil
}

// keepAliveListenKey extends a user data stream's validity.
func (c *Client) keepAliveListenKey(ctx context.Context, listenKey string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.http.NewRequest().
		SetQueryParam("listenKey", listenKey).
		Put(ctx, "/api/v3/userDataStream")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apperror.New(apperror.CodeExchangeAPIError,
			apperror.WithContext(resp.String()))
	}
	return nil
}

// sign adds the timestamp and HMAC-SHA256 signature Binance requires
// on trading endpoints. Parameters are signed in sorted key order.
func (c *Client) sign(params map[string]string) map[string]string {
	signed := make(map[string]string, len(params)+3)
	for k, v := range params {
		signed[k] = v
	}
	signed["timestamp"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	if c.config.RecvWindow > 0 {
		signed["recvWindow"] = strconv.FormatInt(c.config.RecvWindow.Milliseconds(), 10)
	}

	keys := make([]string, 0, len(signed))
	for k := range signed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		values.Set(k, signed[k])
	}
	payload := values.Encode()

	mac := hmac.New(sha256.New, []byte(c.config.APISecret))
	mac.Write([]byte(payload))
	signed["signature"] = hex.EncodeToString(mac.Sum(nil))

	return signed
}

// handleAPIError surfaces Binance's error envelope as an AppError.
func handleAPIError(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		code := apperror.CodeExchangeAPIError
		if statusCode == 429 || statusCode == 418 {
			code = apperror.CodeExchangeRateLimited
		}
		return apperror.New(code,
			apperror.WithContext(apiErr.Message),
			apperror.WithStatusCode(statusCode))
	}
	return apperror.New(apperror.CodeExchangeAPIError,
		apperror.WithStatusCode(statusCode))
}
