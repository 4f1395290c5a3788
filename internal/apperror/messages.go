package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField: "Required field is missing",
	CodeInvalidInput:  "Invalid input provided",
	CodeInvalidState:  "Invalid state for this operation",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Market lifecycle
	CodeInvalidConfig:    "Invalid market or token configuration",
	CodeMarketExpired:    "Market trading period has ended",
	CodeMarketNotExpired: "Market has not reached the required lifecycle phase",
	CodeAlreadyResolved:  "Market is already resolved",
	CodeMarketNotFound:   "Market not found",
	CodeTokenNotEnabled:  "Collateral token is not enabled",

	// Trading and liquidity
	CodeInsufficientLiquidity: "Pool cannot cover the payout",
	CodeInsufficientBalance:   "Insufficient balance",
	CodeSlippageExceeded:      "Output below the requested minimum",
	CodeArithmeticOverflow:    "Arithmetic overflow",

	// Access control
	CodeUnauthorized: "Caller is not authorized",

	// Collaborators
	CodeVaultWithdrawalShortfall: "Vault returned less collateral than requested",
	CodeVaultUnavailable:         "Collateral vault unavailable",
	CodePublishFailed:            "Failed to publish event",

	// Oracle
	CodeProposalNotFound: "No resolution proposal for market",
	CodeLivenessActive:   "Proposal liveness window still open",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection failed",
	CodeWebSocketClosed:          "WebSocket connection closed",

	// Circuit breaker errors
	CodeCircuitOpen: "Circuit breaker is open",
}
