package types

import (
	"errors"
	"fmt"
)

// ErrorClass groups errors by the policy applied to them.
type ErrorClass string

const (
	ClassTransient ErrorClass = "TRANSIENT" // retry with backoff
	ClassLocal     ErrorClass = "LOCAL"     // refresh/realign and retry once
	ClassRejected  ErrorClass = "REJECTED"  // surfaced venue rejection
	ClassSemantic  ErrorClass = "SEMANTIC"  // abort via cancel-and-end
	ClassFatal     ErrorClass = "FATAL"     // terminal, operator attention
)

// Stable error codes. These strings appear in structured logs and in task
// cancel reasons; they must not change.
const (
	CodeBelowMinNotional      = "BelowMinNotional"
	CodeMarketInfoUnavailable = "MarketInfoUnavailable"
	CodePrecisionRejected     = "PrecisionRejected"
	CodeAuthExpired           = "AuthExpired"
	CodeNetworkError          = "NetworkError"
	CodeRejected              = "Rejected"
	CodeAcceptingOrdersFalse  = "AcceptingOrdersFalse"
	CodeCostInvalid           = "CostInvalid"
	CodePriceInvalid          = "PriceInvalid"
	CodePositionInsufficient  = "PositionInsufficient"
	CodeSharesMisalignment    = "SharesMisalignment"
	CodeFilledButEmpty        = "FilledButEmpty"
	CodeHedgeFailed           = "HedgeFailedAfterLossHedge"
	CodeWSUnavailable         = "WSUnavailable"
	CodeDepthUnstable         = "DepthUnstable"
	CodeOrderTimeout          = "OrderTimeout"
	CodeExternalCancel        = "ExternalCancel"
)

// VenueError is a typed failure from a venue gateway or the task engine.
type VenueError struct {
	Code     string
	Class    ErrorClass
	Message  string
	OrderRef string // order hash or id when known
}

func (e *VenueError) Error() string {
	if e.OrderRef != "" {
		return fmt.Sprintf("%s (order %s): %s", e.Code, e.OrderRef, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewVenueError builds a typed error with a formatted message.
func NewVenueError(code string, class ErrorClass, format string, args ...any) *VenueError {
	return &VenueError{Code: code, Class: class, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode extracts the stable code from any error, or "Unknown".
func ErrorCode(err error) string {
	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return "Unknown"
}

// IsTransient reports whether the error should be retried with backoff.
func IsTransient(err error) bool {
	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.Class == ClassTransient
	}
	return false
}

// ErrOrderNotFound is the sentinel for a status query the venue answers
// with "no such order".
var ErrOrderNotFound = errors.New("order not found")
