// Package checkout implements the checkout wizard: delivery details, payment details, review,
// then a single submission to the payment gateway or the order service.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/fjod/restaurant-ordering/internal/payment"
	"github.com/fjod/restaurant-ordering/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultSubmitTimeout = 30 * time.Second

var tracer = otel.Tracer("github.com/fjod/restaurant-ordering/internal/checkout")

// CartSource is the cart a checkout was started from.
type CartSource interface {
	Snapshot() domain.Cart
	Clear(ctx context.Context)
}

// OrderSubmitter places orders that are paid on delivery.
type OrderSubmitter interface {
	PlaceOrder(ctx context.Context, draft domain.OrderDraft) (string, error)
}

type Deps struct {
	Gateway payment.Gateway
	Orders  OrderSubmitter
	Pricing Pricing
	Timeout time.Duration
	Log     *slog.Logger
	Now     func() time.Time
}

type Result struct {
	OrderID  string        `json:"order_id"`
	Totals   domain.Totals `json:"totals"`
	TestMode bool          `json:"test_mode"`
}

type Flow struct {
	mu        sync.Mutex
	sessionID string
	cart      CartSource
	deps      Deps
	session   domain.CheckoutSession
	result    *Result
	cancelled bool
}

// Begin snapshots cart and opens the wizard at the delivery step.
func Begin(ctx context.Context, sessionID string, cart CartSource, deps Deps) (*Flow, error) {
	snapshot := cart.Snapshot()
	if snapshot.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultSubmitTimeout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Pricing == (Pricing{}) {
		deps.Pricing = DefaultPricing()
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	deps.Log = deps.Log.With(slog.String("session_id", sessionID))

	f := &Flow{
		sessionID: sessionID,
		cart:      cart,
		deps:      deps,
		session: domain.CheckoutSession{
			Snapshot:     domain.NewCartSnapshot(snapshot, deps.Now()),
			DeliveryType: domain.DeliveryTypeDelivery,
			Payment:      domain.PaymentInfo{Method: domain.PaymentMethodCard},
			CurrentStep:  domain.CheckoutStepDelivery,
		},
	}
	deps.Log.InfoContext(ctx, "checkout started",
		slog.Int("items", snapshot.TotalItemCount()),
		slog.String("subtotal", f.session.Snapshot.Subtotal.StringFixed(2)),
	)
	return f, nil
}

func (f *Flow) SessionID() string {
	return f.sessionID
}

func (f *Flow) Step() domain.CheckoutStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session.CurrentStep
}

// Session returns a copy of the wizard state.
func (f *Flow) Session() domain.CheckoutSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.session
	s.Snapshot.Items = domain.Cart{Items: f.session.Snapshot.Items}.Clone().Items
	return s
}

// Totals is recomputed from the snapshot subtotal and delivery type on every call.
func (f *Flow) Totals() domain.Totals {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result != nil {
		return f.result.Totals
	}
	return f.totalsLocked()
}

func (f *Flow) UpdateDelivery(info domain.DeliveryInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editableLocked(); err != nil {
		return err
	}
	f.session.Delivery = info
	return nil
}

func (f *Flow) SetDeliveryType(t domain.DeliveryType) error {
	if !t.Valid() {
		return &ValidationError{
			Step:   domain.CheckoutStepDelivery,
			Fields: []FieldError{{Field: "delivery_type", Message: "must be delivery or pickup"}},
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editableLocked(); err != nil {
		return err
	}
	f.session.DeliveryType = t
	return nil
}

func (f *Flow) UpdatePayment(info domain.PaymentInfo) error {
	if !info.Method.Valid() {
		return &ValidationError{
			Step:   domain.CheckoutStepPayment,
			Fields: []FieldError{{Field: "method", Message: "must be card, wallet or cash"}},
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editableLocked(); err != nil {
		return err
	}
	f.session.Payment = info
	return nil
}

// Next advances one step once the current step's required fields are filled in.
func (f *Flow) Next() (domain.CheckoutStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editableLocked(); err != nil {
		return f.session.CurrentStep, err
	}

	var to domain.CheckoutStep
	switch f.session.CurrentStep {
	case domain.CheckoutStepDelivery:
		to = domain.CheckoutStepPayment
	case domain.CheckoutStepPayment:
		to = domain.CheckoutStepReview
	default:
		return f.session.CurrentStep, ErrIllegalTransition
	}
	if verr := validateStep(f.session.CurrentStep, &f.session); verr != nil {
		return f.session.CurrentStep, verr
	}
	return f.moveLocked(to)
}

// Back returns to the previous data step. Entered data is kept.
func (f *Flow) Back() (domain.CheckoutStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editableLocked(); err != nil {
		return f.session.CurrentStep, err
	}

	var to domain.CheckoutStep
	switch f.session.CurrentStep {
	case domain.CheckoutStepPayment:
		to = domain.CheckoutStepDelivery
	case domain.CheckoutStepReview:
		to = domain.CheckoutStepPayment
	default:
		return f.session.CurrentStep, ErrIllegalTransition
	}
	return f.moveLocked(to)
}

// Cancel abandons the checkout. The cart is left alone. An in-flight submission still
// completes and is reconciled, but its result is discarded.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result != nil {
		return
	}
	f.cancelled = true
}

// Submit places the order from the review step. The lock is not held during the
// collaborator call; the Submitting step keeps a second submission out.
func (f *Flow) Submit(ctx context.Context) (*Result, error) {
	f.mu.Lock()
	if err := f.openLocked(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	switch f.session.CurrentStep {
	case domain.CheckoutStepSubmitting:
		f.mu.Unlock()
		return nil, ErrSubmissionInProgress
	case domain.CheckoutStepReview:
	default:
		f.mu.Unlock()
		return nil, ErrIllegalTransition
	}
	for _, step := range []domain.CheckoutStep{domain.CheckoutStepDelivery, domain.CheckoutStepPayment} {
		if verr := validateStep(step, &f.session); verr != nil {
			f.mu.Unlock()
			return nil, verr
		}
	}
	if _, err := f.moveLocked(domain.CheckoutStepSubmitting); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	totals := f.totalsLocked()
	draft := domain.OrderDraft{
		SessionID:     f.sessionID,
		Items:         domain.Cart{Items: f.session.Snapshot.Items}.Clone().Items,
		DeliveryType:  f.session.DeliveryType,
		Delivery:      f.session.Delivery,
		PaymentMethod: f.session.Payment.Method,
		Totals:        totals,
	}
	details := f.session.Payment
	f.mu.Unlock()

	ctx, span := tracer.Start(ctx, "checkout.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.method", string(details.Method)),
		attribute.String("order.total", totals.GrandTotal.StringFixed(2)),
	)

	callCtx, cancel := context.WithTimeout(ctx, f.deps.Timeout)
	res, err := f.placeGuarded(callCtx, draft, details)
	cancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return f.finish(context.WithoutCancel(ctx), res, err)
}

// placeGuarded turns a collaborator panic into a submission failure so the flow
// always leaves the Submitting step.
func (f *Flow) placeGuarded(ctx context.Context, draft domain.OrderDraft, details domain.PaymentInfo) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			f.deps.Log.ErrorContext(ctx, "checkout collaborator panicked", slog.Any("panic", p))
			res, err = nil, &OrderSubmissionError{Err: fmt.Errorf("order placement aborted: %v", p)}
		}
	}()
	return f.place(ctx, draft, details)
}

func (f *Flow) place(ctx context.Context, draft domain.OrderDraft, details domain.PaymentInfo) (*Result, error) {
	if !details.Method.UsesGateway() {
		if f.deps.Orders == nil {
			return nil, &OrderSubmissionError{Err: ErrOrdersUnavailable}
		}
		spanCtx, span := tracer.Start(ctx, "orders.place_order")
		orderID, err := f.deps.Orders.PlaceOrder(spanCtx, draft)
		endSpan(span, err)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = ErrGatewayTimeout
			}
			return nil, &OrderSubmissionError{Err: err}
		}
		return &Result{OrderID: orderID, Totals: draft.Totals}, nil
	}
	if f.deps.Gateway == nil {
		return nil, &GatewayError{Reason: genericPaymentFailure, Err: payment.ErrGatewayUnavailable}
	}

	spanCtx, span := tracer.Start(ctx, "payment.create_intent")
	intent, err := f.deps.Gateway.CreatePaymentIntent(spanCtx, draft.Totals.GrandTotal, draft)
	endSpan(span, err)
	if err != nil {
		return nil, gatewayFailure(ctx, err)
	}
	if intent.TestMode {
		return &Result{OrderID: payment.PlaceholderOrderID(), Totals: draft.Totals, TestMode: true}, nil
	}

	spanCtx, span = tracer.Start(ctx, "payment.confirm")
	conf, err := f.deps.Gateway.ConfirmPayment(spanCtx, intent.ClientSecret, details)
	endSpan(span, err)
	if err != nil {
		return nil, gatewayFailure(ctx, err)
	}
	if !conf.Succeeded {
		reason := conf.Reason
		if reason == "" {
			reason = genericPaymentFailure
		}
		return nil, &GatewayError{Reason: reason}
	}
	orderID := conf.OrderID
	if orderID == "" {
		orderID = conf.PaymentRef
	}
	return &Result{OrderID: orderID, Totals: draft.Totals}, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func gatewayFailure(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &GatewayError{Reason: ErrGatewayTimeout.Error(), Err: ErrGatewayTimeout}
	}
	return &GatewayError{Reason: genericPaymentFailure, Err: err}
}

// finish applies the submission outcome. A placed order always clears the cart,
// even when the customer has walked away in the meantime.
func (f *Flow) finish(ctx context.Context, res *Result, err error) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	log := f.deps.Log

	if err != nil {
		_, _ = f.moveLocked(domain.CheckoutStepFailed)
		_, _ = f.moveLocked(domain.CheckoutStepReview)
		log.WarnContext(ctx, "checkout submission failed", slog.Any("error", err))
		if f.cancelled {
			return nil, ErrCheckoutCancelled
		}
		return nil, err
	}

	f.cart.Clear(ctx)
	_, _ = f.moveLocked(domain.CheckoutStepSucceeded)
	f.session.Snapshot = domain.CartSnapshot{}
	f.result = res
	log.InfoContext(ctx, "order placed",
		slog.String("order_id", res.OrderID),
		slog.Bool("test_mode", res.TestMode),
		slog.String("total", res.Totals.GrandTotal.StringFixed(2)),
	)
	if f.cancelled {
		return nil, ErrCheckoutCancelled
	}
	return res, nil
}

func (f *Flow) Result() (*Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == nil || f.cancelled {
		return nil, false
	}
	r := *f.result
	return &r, true
}

func (f *Flow) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func (f *Flow) totalsLocked() domain.Totals {
	return f.deps.Pricing.Compute(f.session.Snapshot.Subtotal, f.session.DeliveryType)
}

func (f *Flow) openLocked() error {
	if f.cancelled {
		return ErrCheckoutCancelled
	}
	if f.result != nil {
		return ErrFlowClosed
	}
	return nil
}

func (f *Flow) editableLocked() error {
	if err := f.openLocked(); err != nil {
		return err
	}
	if !f.session.CurrentStep.IsEditable() {
		return ErrSubmissionInProgress
	}
	return nil
}

func (f *Flow) moveLocked(to domain.CheckoutStep) (domain.CheckoutStep, error) {
	if !domain.CanTransitionTo(f.session.CurrentStep, to) {
		return f.session.CurrentStep, ErrIllegalTransition
	}
	f.session.CurrentStep = to
	return to, nil
}
