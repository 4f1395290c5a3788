package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField Code = "REQUIRED_FIELD"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeInvalidState  Code = "INVALID_STATE"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Market and pool error codes
const (
	// Market lifecycle
	CodeInvalidConfig    Code = "INVALID_CONFIG"
	CodeMarketExpired    Code = "MARKET_EXPIRED"
	CodeMarketNotExpired Code = "MARKET_NOT_EXPIRED"
	CodeAlreadyResolved  Code = "ALREADY_RESOLVED"
	CodeMarketNotFound   Code = "MARKET_NOT_FOUND"
	CodeTokenNotEnabled  Code = "TOKEN_NOT_ENABLED"

	// Trading and liquidity
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeInsufficientBalance   Code = "INSUFFICIENT_BALANCE"
	CodeSlippageExceeded      Code = "SLIPPAGE_EXCEEDED"
	CodeArithmeticOverflow    Code = "ARITHMETIC_OVERFLOW"

	// Access control
	CodeUnauthorized Code = "UNAUTHORIZED"

	// Collaborators
	CodeVaultWithdrawalShortfall Code = "VAULT_WITHDRAWAL_SHORTFALL"
	CodeVaultUnavailable         Code = "VAULT_UNAVAILABLE"
	CodePublishFailed            Code = "PUBLISH_FAILED"

	// Oracle
	CodeProposalNotFound Code = "PROPOSAL_NOT_FOUND"
	CodeLivenessActive   Code = "LIVENESS_ACTIVE"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"

	// Circuit breaker errors
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
