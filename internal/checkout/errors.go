package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/restaurant-ordering/internal/domain"
)

var (
	ErrEmptyCart            = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition    = errors.New("illegal transition of checkout step")
	ErrSubmissionInProgress = errors.New("order submission already in progress")
	ErrGatewayTimeout       = errors.New("payment gateway did not respond in time")
	ErrCheckoutCancelled    = errors.New("checkout was cancelled")
	ErrFlowClosed           = errors.New("checkout is already completed")
	ErrOrdersUnavailable    = errors.New("order service is not configured")
)

const genericPaymentFailure = "payment could not be processed, please try again"

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists the required fields of a step that are missing.
type ValidationError struct {
	Step   domain.CheckoutStep
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return fmt.Sprintf("%s step is incomplete: %s", strings.ToLower(e.Step.String()), strings.Join(names, ", "))
}

// GatewayError is a failed payment. Reason is safe to show to the customer.
type GatewayError struct {
	Reason string
	Err    error
}

func (e *GatewayError) Error() string {
	return "payment failed: " + e.Reason
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

type OrderSubmissionError struct {
	Err error
}

func (e *OrderSubmissionError) Error() string {
	return fmt.Sprintf("order submission failed: %v", e.Err)
}

func (e *OrderSubmissionError) Unwrap() error {
	return e.Err
}
