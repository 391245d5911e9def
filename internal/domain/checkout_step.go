package domain

type CheckoutStep string

const (
	CheckoutStepDelivery   CheckoutStep = "DELIVERY"
	CheckoutStepPayment    CheckoutStep = "PAYMENT"
	CheckoutStepReview     CheckoutStep = "REVIEW"
	CheckoutStepSubmitting CheckoutStep = "SUBMITTING"
	CheckoutStepSucceeded  CheckoutStep = "SUCCEEDED"
	CheckoutStepFailed     CheckoutStep = "FAILED"
)

var checkoutTransitions = map[CheckoutStep][]CheckoutStep{
	CheckoutStepDelivery:   {CheckoutStepPayment},
	CheckoutStepPayment:    {CheckoutStepDelivery, CheckoutStepReview},
	CheckoutStepReview:     {CheckoutStepPayment, CheckoutStepSubmitting},
	CheckoutStepSubmitting: {CheckoutStepSucceeded, CheckoutStepFailed},
	CheckoutStepFailed:     {CheckoutStepReview},
}

// CanTransitionTo reports whether the wizard may move from one step to another.
func CanTransitionTo(from, to CheckoutStep) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutStep) IsTerminal() bool {
	return s == CheckoutStepSucceeded
}

// IsEditable reports whether form data may still change in this step.
func (s CheckoutStep) IsEditable() bool {
	return s == CheckoutStepDelivery || s == CheckoutStepPayment || s == CheckoutStepReview
}

// String representation (for logging)
func (s CheckoutStep) String() string {
	return string(s)
}
