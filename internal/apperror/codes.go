package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Execution-specific error codes
const (
	// Exchange connectivity
	CodeExchangeConnectionFailed Code = "EXCHANGE_CONNECTION_FAILED"
	CodeExchangeAPIError         Code = "EXCHANGE_API_ERROR"
	CodeExchangeRateLimited      Code = "EXCHANGE_RATE_LIMITED"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketReconnecting    Code = "WEBSOCKET_RECONNECTING"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Order lifecycle
	CodeOrderPlacementFailed Code = "ORDER_PLACEMENT_FAILED"
	CodeOrderCancelFailed    Code = "ORDER_CANCEL_FAILED"
	CodeOrderNotFound        Code = "ORDER_NOT_FOUND"
	CodeUnknownTradingPair   Code = "UNKNOWN_TRADING_PAIR"
	CodeNoOpportunity        Code = "NO_OPPORTUNITY"
	CodeTrackerBusy          Code = "TRACKER_BUSY"

	// Market data
	CodeOrderbookFetchFailed Code = "ORDERBOOK_FETCH_FAILED"
	CodeInvalidOrderbook     Code = "INVALID_ORDERBOOK"
	CodeStaleOrderbook       Code = "STALE_ORDERBOOK"
	CodeBalanceFetchFailed   Code = "BALANCE_FETCH_FAILED"

	// Opportunity sizing
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeInvalidTradeSize      Code = "INVALID_TRADE_SIZE"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
