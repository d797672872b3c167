package payment

import (
	"errors"
	"fmt"
)

// ErrProviderTimeout means polling exceeded the maximum wait. The charge
// is treated as failed; the buyer may retry with a fresh key.
var ErrProviderTimeout = errors.New("payment provider timed out")

// DeclinedError carries the provider's rejection reason where available.
type DeclinedError struct {
	Provider string
	Reason   string
}

func (e *DeclinedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: payment declined", e.Provider)
	}
	return fmt.Sprintf("%s: payment declined: %s", e.Provider, e.Reason)
}

// RefundError wraps a failed refund attempt.
type RefundError struct {
	Provider string
	Err      error
}

func (e *RefundError) Error() string {
	return fmt.Sprintf("%s: refund failed: %v", e.Provider, e.Err)
}

func (e *RefundError) Unwrap() error { return e.Err }
