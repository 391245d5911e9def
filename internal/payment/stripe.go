package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const (
	maxMetadataValue = 500

	// pendingTTL drops drafts of intents that were created but never confirmed.
	pendingTTL = time.Hour
)

// PaidOrderRecorder persists an order once its payment has been captured.
type PaidOrderRecorder interface {
	RecordPaidOrder(ctx context.Context, draft domain.OrderDraft, paymentRef string) (string, error)
}

// intentAPI is the subset of the Stripe payment intent client we use.
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
}

type StripeGateway struct {
	intents  intentAPI
	orders   PaidOrderRecorder
	currency stripe.Currency
	log      *slog.Logger

	mu      sync.Mutex
	pending map[string]pendingIntent
	now     func() time.Time
}

type pendingIntent struct {
	draft   domain.OrderDraft
	created time.Time
}

func NewStripeGateway(secretKey string, orders PaidOrderRecorder, log *slog.Logger) *StripeGateway {
	sc := client.New(secretKey, nil)
	return newStripeGateway(sc.PaymentIntents, orders, log)
}

func newStripeGateway(intents intentAPI, orders PaidOrderRecorder, log *slog.Logger) *StripeGateway {
	return &StripeGateway{
		intents:  intents,
		orders:   orders,
		currency: stripe.CurrencyUSD,
		log:      log,
		pending:  make(map[string]pendingIntent),
		now:      time.Now,
	}
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, draft domain.OrderDraft) (*Intent, error) {
	cents := AmountInCents(amount)
	if cents <= 0 {
		return nil, fmt.Errorf("invalid payment amount %s", amount.StringFixed(2))
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(cents),
		Currency:           stripe.String(string(g.currency)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	params.AddMetadata("session_id", draft.SessionID)
	params.AddMetadata("delivery_type", string(draft.DeliveryType))
	if draft.DeliveryType == domain.DeliveryTypeDelivery {
		params.AddMetadata("delivery_address", truncate(draft.Delivery.Address))
	}
	if items, err := json.Marshal(domain.OrderItemsFromLines(draft.Items)); err == nil && len(items) <= maxMetadataValue {
		params.AddMetadata("items", string(items))
	}

	pi, err := g.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	g.mu.Lock()
	now := g.now()
	for id, p := range g.pending {
		if now.Sub(p.created) > pendingTTL {
			delete(g.pending, id)
		}
	}
	g.pending[pi.ID] = pendingIntent{draft: draft, created: now}
	g.mu.Unlock()

	g.log.InfoContext(ctx, "payment intent created",
		slog.String("intent_id", pi.ID),
		slog.Int64("amount_cents", cents),
	)

	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Amount: amount}, nil
}

func (g *StripeGateway) ConfirmPayment(ctx context.Context, clientSecret string, details domain.PaymentInfo) (*Confirmation, error) {
	id, ok := intentIDFromSecret(clientSecret)
	if !ok {
		return nil, ErrUnknownIntent
	}

	g.mu.Lock()
	p, ok := g.pending[id]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntent, id)
	}
	// every confirmation is final for its intent; a retry creates a new one
	defer g.forget(id)
	draft := p.draft

	if strings.TrimSpace(details.PaymentMethodToken) == "" {
		return &Confirmation{Reason: "payment method token is required"}, nil
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(details.PaymentMethodToken),
	}
	params.Context = ctx

	pi, err := g.intents.Confirm(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return &Confirmation{PaymentRef: id, Reason: stripeErr.Msg}, nil
		}
		return nil, fmt.Errorf("confirm payment intent: %w", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		reason := fmt.Sprintf("payment %s", pi.Status)
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			reason = pi.LastPaymentError.Msg
		}
		return &Confirmation{PaymentRef: pi.ID, Reason: reason}, nil
	}

	// The charge is captured at this point; an order we fail to record is still paid.
	orderID, err := g.orders.RecordPaidOrder(ctx, draft, pi.ID)
	if err != nil {
		g.log.ErrorContext(ctx, "paid order not recorded",
			slog.String("intent_id", pi.ID),
			slog.Any("error", err),
		)
		orderID = pi.ID
	}

	return &Confirmation{Succeeded: true, OrderID: orderID, PaymentRef: pi.ID}, nil
}

func (g *StripeGateway) pendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *StripeGateway) forget(id string) {
	g.mu.Lock()
	delete(g.pending, id)
	g.mu.Unlock()
}

// intentIDFromSecret extracts "pi_123" from "pi_123_secret_abc".
func intentIDFromSecret(secret string) (string, bool) {
	i := strings.Index(secret, "_secret_")
	if i <= 0 {
		return "", false
	}
	return secret[:i], true
}

func truncate(s string) string {
	if len(s) > maxMetadataValue {
		return s[:maxMetadataValue]
	}
	return s
}
