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
	CodeConfigInvalid Code = "CONFIG_INVALID"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError     Code = "INTERNAL_ERROR"
	CodeUnknownError      Code = "UNKNOWN_ERROR"
	CodeResourceExhausted Code = "RESOURCE_EXHAUSTED"
)

// Transport (C1/C2) errors
const (
	CodeTransportDial       Code = "TRANSPORT_DIAL_FAILED"
	CodeTransportHandshake  Code = "TRANSPORT_HANDSHAKE_FAILED"
	CodeTransportClosed     Code = "TRANSPORT_CLOSED"
	CodeTransportWriteError Code = "TRANSPORT_WRITE_FAILED"
)

// Decode / wire-format errors
const (
	CodeDecodeMalformed Code = "DECODE_MALFORMED"
)

// Subscription errors
const (
	CodeSubscriptionRejected Code = "SUBSCRIPTION_REJECTED"
)

// Venue-specific errors
const (
	CodeOKXAPIError     Code = "OKX_API_ERROR"
	CodeBinanceAPIError Code = "BINANCE_API_ERROR"
)

// Circuit breaker errors
const (
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
