// Package txerrors classifies raw wallet, RPC and contract errors into a
// small closed taxonomy with user-facing messages.
package txerrors

import "fmt"

// Category is the closed set of error classes a write can fail with.
type Category int

const (
	// CategoryUserRejected means the wallet prompt was declined.
	CategoryUserRejected Category = iota
	// CategoryInsufficientFunds means the account cannot pay value + gas.
	CategoryInsufficientFunds
	// CategoryNetwork covers transport, timeout and upstream server failures.
	CategoryNetwork
	// CategoryContractRevert means the contract rejected the call.
	CategoryContractRevert
	// CategoryGasEstimation means the node could not estimate gas.
	CategoryGasEstimation
	// CategoryUnknown is the fallback.
	CategoryUnknown
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryUserRejected:
		return "user_rejected"
	case CategoryInsufficientFunds:
		return "insufficient_funds"
	case CategoryNetwork:
		return "network_error"
	case CategoryContractRevert:
		return "contract_revert"
	case CategoryGasEstimation:
		return "gas_estimation_failed"
	default:
		return "unknown"
	}
}

// Recoverable reports whether retrying the same write can succeed.
func (c Category) Recoverable() bool {
	switch c {
	case CategoryUserRejected, CategoryNetwork, CategoryGasEstimation:
		return true
	}
	return false
}

// ParsedError is the only error shape callers of the lifecycle manager see.
type ParsedError struct {
	Category         Category
	UserMessage      string
	TechnicalMessage string
	Recoverable      bool

	// Reason is the revert reason string, when one was returned.
	Reason string
	// DecodedName is the custom error name decoded from revert data.
	DecodedName string
	// Code is the numeric wallet/RPC code, 0 when absent.
	Code int

	Original error
}

// Error implements the error interface.
func (e *ParsedError) Error() string {
	if e.TechnicalMessage != "" {
		return fmt.Sprintf("%s: %s", e.Category, e.TechnicalMessage)
	}
	return e.Category.String()
}

// Unwrap returns the original error for errors.Is/As.
func (e *ParsedError) Unwrap() error {
	return e.Original
}

// IsUserRejected reports whether err parses as a wallet rejection.
func IsUserRejected(err error) bool {
	pe := Parse(err)
	return pe != nil && pe.Category == CategoryUserRejected
}
