package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
)

type fakeIntents struct {
	mu           sync.Mutex
	created      []*stripe.PaymentIntentParams
	newErr       error
	confirmErr   error
	confirmState stripe.PaymentIntentStatus
	lastError    *stripe.Error
	confirmedIDs []string
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return nil, f.newErr
	}
	f.created = append(f.created, params)
	id := fmt.Sprintf("pi_%d", len(f.created))
	return &stripe.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_xyz",
		Amount:       *params.Amount,
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
	}, nil
}

func (f *fakeIntents) Confirm(id string, _ *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmedIDs = append(f.confirmedIDs, id)
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	status := f.confirmState
	if status == "" {
		status = stripe.PaymentIntentStatusSucceeded
	}
	return &stripe.PaymentIntent{ID: id, Status: status, LastPaymentError: f.lastError}, nil
}

type fakeRecorder struct {
	err    error
	drafts []domain.OrderDraft
	refs   []string
}

func (f *fakeRecorder) RecordPaidOrder(_ context.Context, draft domain.OrderDraft, ref string) (string, error) {
	f.drafts = append(f.drafts, draft)
	f.refs = append(f.refs, ref)
	if f.err != nil {
		return "", f.err
	}
	return "order-1", nil
}

var errTransport = errors.New("connection reset")

// flakyGateway fails every call with err.
type flakyGateway struct {
	err   error
	calls int
}

func (f *flakyGateway) CreatePaymentIntent(context.Context, decimal.Decimal, domain.OrderDraft) (*Intent, error) {
	f.calls++
	return nil, f.err
}

func (f *flakyGateway) ConfirmPayment(context.Context, string, domain.PaymentInfo) (*Confirmation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Confirmation{Reason: "card declined"}, nil
}
