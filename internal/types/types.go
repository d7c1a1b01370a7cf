// Package types provides common type definitions for the fairfund scanner system.
package types

// ProjectStatus represents the lifecycle state of a campaign
type ProjectStatus string

const (
	// StatusActive represents a campaign still collecting contributions
	StatusActive ProjectStatus = "active"
	// StatusFunded represents a campaign that met its goal (or whose funds were withdrawn)
	StatusFunded ProjectStatus = "funded"
	// StatusFailed represents a cancelled campaign or one that missed its deadline
	StatusFailed ProjectStatus = "failed"
)

// ActionStatus represents the state of a write-action pipeline
type ActionStatus string

const (
	// ActionIdle represents an action that has not been invoked yet
	ActionIdle ActionStatus = "idle"
	// ActionPending represents an action with an in-flight transaction pipeline
	ActionPending ActionStatus = "pending"
	// ActionSuccess represents an action whose transaction confirmed on-chain
	ActionSuccess ActionStatus = "success"
	// ActionError represents an action that failed at any pipeline step
	ActionError ActionStatus = "error"
)

// ActionKind identifies the write-action pipelines the orchestrator runs
type ActionKind string

const (
	// ActionFund contributes tokens to a campaign
	ActionFund ActionKind = "fund"
	// ActionRefund reclaims a contribution from a failed campaign
	ActionRefund ActionKind = "refund"
	// ActionWithdraw moves raised funds to the campaign creator
	ActionWithdraw ActionKind = "withdraw"
	// ActionCreate registers a new campaign on the escrow contract
	ActionCreate ActionKind = "create"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Error codes shared between services and the API layer.
// The taxonomy: configuration, connectivity, validation, transaction.
// Metadata-resolution failures have no code on purpose - they are silently
// downgraded to a fallback display value and never surfaced.
const (
	// ErrCodeNotConfigured means the RPC URL or escrow address is missing
	ErrCodeNotConfigured = "NOT_CONFIGURED"
	// ErrCodeWalletNotConnected means no signing session is available
	ErrCodeWalletNotConnected = "WALLET_NOT_CONNECTED"
	// ErrCodeInvalidAmount means a user-supplied amount failed to parse
	ErrCodeInvalidAmount = "INVALID_AMOUNT"
	// ErrCodeUnsupportedToken means the token is not on the allowlist
	ErrCodeUnsupportedToken = "UNSUPPORTED_TOKEN"
	// ErrCodeInsufficientBalance means the wallet cannot cover the contribution
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	// ErrCodeTxFailed means an on-chain transaction reverted or failed
	ErrCodeTxFailed = "TX_FAILED"
	// ErrCodeProjectNotFound means the campaign id does not exist on-chain
	ErrCodeProjectNotFound = "PROJECT_NOT_FOUND"
	// ErrCodeInvalidInput means a request parameter failed validation
	ErrCodeInvalidInput = "INVALID_INPUT"
)

// NewServiceError creates a ServiceError with the given code and message
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message}
}
