package payment

import (
	"context"
	"fmt"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SandboxGateway never moves money. Every intent it creates is flagged TestMode.
type SandboxGateway struct{}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{}
}

func (SandboxGateway) CreatePaymentIntent(_ context.Context, amount decimal.Decimal, _ domain.OrderDraft) (*Intent, error) {
	id := "pi_sandbox_" + uuid.NewString()
	return &Intent{
		ID:           id,
		ClientSecret: fmt.Sprintf("%s_secret_sandbox", id),
		Amount:       amount,
		TestMode:     true,
	}, nil
}

func (SandboxGateway) ConfirmPayment(context.Context, string, domain.PaymentInfo) (*Confirmation, error) {
	orderID := PlaceholderOrderID()
	return &Confirmation{
		Succeeded:  true,
		OrderID:    orderID,
		PaymentRef: "sandbox",
	}, nil
}
