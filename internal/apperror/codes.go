package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeServiceTimeout     Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain and node error codes
const (
	CodeNodeConnectionFailed Code = "NODE_CONNECTION_FAILED"
	CodeNodeError            Code = "NODE_ERROR"
	CodeSubscriptionFailed   Code = "SUBSCRIPTION_FAILED"
	CodeUnsupportedNetwork   Code = "UNSUPPORTED_NETWORK"
	CodeNonceUnavailable     Code = "NONCE_UNAVAILABLE"
	CodeSigningFailed        Code = "SIGNING_FAILED"
	CodeWalletLoadFailed     Code = "WALLET_LOAD_FAILED"
	CodeTransactionExpired   Code = "TRANSACTION_EXPIRED"
	CodeTransactionReverted  Code = "TRANSACTION_REVERTED"
)

// Contract and trading error codes
const (
	CodeContractCallFailed    Code = "CONTRACT_CALL_FAILED"
	CodeContractABIError      Code = "CONTRACT_ABI_ERROR"
	CodeInvalidAmount         Code = "INVALID_AMOUNT"
	CodeInvalidSlippage       Code = "INVALID_SLIPPAGE"
	CodeInvalidQuote          Code = "INVALID_QUOTE"
	CodeInsufficientAllowance Code = "INSUFFICIENT_ALLOWANCE"
	CodeApprovalFailed        Code = "APPROVAL_FAILED"
	CodeSwapFailed            Code = "SWAP_FAILED"
	CodeRefuelFailed          Code = "REFUEL_FAILED"
	CodePairNotFound          Code = "PAIR_NOT_FOUND"

	// Circuit breaker errors
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
