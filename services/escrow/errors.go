package escrow

import (
	"errors"
	"fmt"
)

// Error codes for the settlement engine's failure taxonomy.
const (
	CodeValidation          = "validation_error"
	CodePriceMismatch       = "price_mismatch"
	CodePaymentDeclined     = "payment_declined"
	CodeProviderTimeout     = "provider_timeout"
	CodeInvalidTransition   = "invalid_state_transition"
	CodeDuplicateSubmission = "duplicate_submission"
	CodeRetryExhausted      = "settlement_retry_exhausted"
	CodeNotFound            = "order_not_found"
)

// EscrowError is a typed engine failure.
type EscrowError struct {
	Code    string
	Message string
}

func (e *EscrowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is an EscrowError carrying the given code.
func IsCode(err error, code string) bool {
	var ee *EscrowError
	return errors.As(err, &ee) && ee.Code == code
}

// CodeOf returns the error's code, or empty if it is not an engine error.
func CodeOf(err error) string {
	var ee *EscrowError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

func newValidationError(format string, args ...interface{}) error {
	return &EscrowError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func newPriceMismatch(quoted, computed int64) error {
	return &EscrowError{
		Code:    CodePriceMismatch,
		Message: fmt.Sprintf("quoted total %d disagrees with computed total %d; request a fresh quote", quoted, computed),
	}
}

func newPaymentDeclined(reason string) error {
	return &EscrowError{Code: CodePaymentDeclined, Message: reason}
}

func newProviderTimeout(msg string) error {
	return &EscrowError{Code: CodeProviderTimeout, Message: msg}
}

func newInvalidTransition(format string, args ...interface{}) error {
	return &EscrowError{Code: CodeInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func newDuplicateSubmission(format string, args ...interface{}) error {
	return &EscrowError{Code: CodeDuplicateSubmission, Message: fmt.Sprintf(format, args...)}
}

func newNotFound(orderNumber string) error {
	return &EscrowError{Code: CodeNotFound, Message: fmt.Sprintf("order %s not found", orderNumber)}
}
