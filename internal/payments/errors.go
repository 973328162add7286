package payments

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
)

// ProviderError wraps a processor failure with its machine-readable code,
// upper-cased so clients can match on it regardless of processor casing.
type ProviderError struct {
	Code string
	err  error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("payments: %s: %v", e.Code, e.err)
	}
	return fmt.Sprintf("payments: %v", e.err)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// ErrorCode extracts the upper-cased processor code from err, if present.
func ErrorCode(err error) (string, bool) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.Code != "" {
		return providerErr.Code, true
	}
	return "", false
}

func wrapStripeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := strings.ToUpper(string(stripeErr.Code))
		if code == "" {
			code = strings.ToUpper(string(stripeErr.Type))
		}
		return &ProviderError{
			Code: code,
			err:  fmt.Errorf("%s: %w", op, err),
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
