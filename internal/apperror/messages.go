package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeServiceTimeout:     "Service request timeout",
	CodeServiceUnavailable: "Service temporarily unavailable",
	CodeRateLimitExceeded:  "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeNodeConnectionFailed: "Failed to connect to blockchain node",
	CodeNodeError:            "Blockchain node rejected the request",
	CodeSubscriptionFailed:   "Failed to subscribe to node events",
	CodeUnsupportedNetwork:   "Unsupported network",
	CodeNonceUnavailable:     "Could not obtain account nonce",
	CodeSigningFailed:        "Failed to sign transaction",
	CodeWalletLoadFailed:     "Failed to load wallet",
	CodeTransactionExpired:   "Transaction receipt not observed before expiry",
	CodeTransactionReverted:  "Transaction reverted on-chain",

	CodeContractCallFailed:    "Smart contract call failed",
	CodeContractABIError:      "Contract ABI encode/decode failed",
	CodeInvalidAmount:         "Invalid token amount",
	CodeInvalidSlippage:       "Slippage must be between 0 and 100 percent",
	CodeInvalidQuote:          "Invalid quote data",
	CodeInsufficientAllowance: "Allowance is below the requested amount",
	CodeApprovalFailed:        "Token approval did not confirm",
	CodeSwapFailed:            "Swap did not confirm",
	CodeRefuelFailed:          "Gas refuel failed after swap",
	CodePairNotFound:          "Liquidity pair not found",

	CodeCircuitOpen: "Circuit breaker is open",
}
