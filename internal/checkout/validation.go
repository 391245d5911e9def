package checkout

import (
	"strings"

	"github.com/fjod/restaurant-ordering/internal/domain"
)

type fieldRule struct {
	field   string
	applies func(s *domain.CheckoutSession) bool
	value   func(s *domain.CheckoutSession) string
}

func forDelivery(s *domain.CheckoutSession) bool {
	return s.DeliveryType == domain.DeliveryTypeDelivery
}

func forCard(s *domain.CheckoutSession) bool {
	return s.Payment.Method == domain.PaymentMethodCard
}

// stepRules lists the required fields of each data-entry step.
var stepRules = map[domain.CheckoutStep][]fieldRule{
	domain.CheckoutStepDelivery: {
		{"address", forDelivery, func(s *domain.CheckoutSession) string { return s.Delivery.Address }},
		{"city", forDelivery, func(s *domain.CheckoutSession) string { return s.Delivery.City }},
		{"postal_code", forDelivery, func(s *domain.CheckoutSession) string { return s.Delivery.PostalCode }},
		{"phone", forDelivery, func(s *domain.CheckoutSession) string { return s.Delivery.Phone }},
	},
	domain.CheckoutStepPayment: {
		{"card_number", forCard, func(s *domain.CheckoutSession) string { return s.Payment.CardNumber }},
		{"expiry", forCard, func(s *domain.CheckoutSession) string { return s.Payment.Expiry }},
		{"cvv", forCard, func(s *domain.CheckoutSession) string { return s.Payment.CVV }},
		{"cardholder_name", forCard, func(s *domain.CheckoutSession) string { return s.Payment.CardholderName }},
	},
}

// validateStep returns nil when every applicable rule of step is satisfied.
func validateStep(step domain.CheckoutStep, s *domain.CheckoutSession) *ValidationError {
	var missing []FieldError
	for _, rule := range stepRules[step] {
		if !rule.applies(s) {
			continue
		}
		if strings.TrimSpace(rule.value(s)) == "" {
			missing = append(missing, FieldError{Field: rule.field, Message: "is required"})
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Step: step, Fields: missing}
}
