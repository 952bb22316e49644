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
	CodeConfigInvalid: "Configuration invalid",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError:     "Internal server error",
	CodeUnknownError:      "An unknown error occurred",
	CodeResourceExhausted: "Resource bound exceeded",

	// Transport errors
	CodeTransportDial:       "Failed to dial transport endpoint",
	CodeTransportHandshake:  "WebSocket handshake failed",
	CodeTransportClosed:     "Transport session closed",
	CodeTransportWriteError: "Failed to write to transport session",

	// Decode errors
	CodeDecodeMalformed: "Malformed message payload",

	// Subscription errors
	CodeSubscriptionRejected: "Subscription request rejected",

	// Venue errors
	CodeOKXAPIError:     "OKX API error",
	CodeBinanceAPIError: "Binance API error",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
