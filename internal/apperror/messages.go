package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Exchange connectivity
	CodeExchangeConnectionFailed: "Failed to connect to exchange",
	CodeExchangeAPIError:         "Exchange API error",
	CodeExchangeRateLimited:      "Exchange rate limit exceeded",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketReconnecting:    "WebSocket reconnecting",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Order lifecycle
	CodeOrderPlacementFailed: "Order placement failed",
	CodeOrderCancelFailed:    "Order cancellation failed",
	CodeOrderNotFound:        "Order not found",
	CodeUnknownTradingPair:   "Trading pair is not part of the configured triangle",
	CodeNoOpportunity:        "No opportunity is currently being tracked",
	CodeTrackerBusy:          "Tracker is already working an opportunity",

	// Market data
	CodeOrderbookFetchFailed: "Failed to fetch orderbook",
	CodeInvalidOrderbook:     "Invalid orderbook data",
	CodeStaleOrderbook:       "Orderbook data is stale",
	CodeBalanceFetchFailed:   "Failed to fetch wallet balance",

	// Opportunity sizing
	CodeInsufficientLiquidity: "Insufficient liquidity for trade size",
	CodeInvalidTradeSize:      "Invalid trade size",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
