package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fjod/restaurant-ordering/internal/domain"
)

type spanRecord struct {
	name   string
	ended  bool
	failed bool
}

type recordingTracer struct {
	noop.Tracer
	mu    sync.Mutex
	spans []*spanRecord
}

func (r *recordingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := &spanRecord{name: name}
	r.spans = append(r.spans, rec)
	span := &recordingSpan{rec: rec, mu: &r.mu}
	return trace.ContextWithSpan(ctx, span), span
}

func (r *recordingTracer) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = nil
}

func (r *recordingTracer) snapshot() []spanRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]spanRecord, len(r.spans))
	for i, s := range r.spans {
		out[i] = *s
	}
	return out
}

type recordingSpan struct {
	noop.Span
	rec *spanRecord
	mu  *sync.Mutex
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == codes.Error {
		s.rec.failed = true
	}
}

func (s *recordingSpan) End(...trace.SpanEndOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.ended = true
}

type recordingProvider struct {
	noop.TracerProvider
	tracer *recordingTracer
}

func (p recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return p.tracer
}

var (
	installTracer sync.Once
	spans         = &recordingTracer{}
)

// recordSpans routes the package tracer to an in-memory recorder. The global
// provider delegates only once, so every test shares the same recorder.
func recordSpans(t *testing.T) *recordingTracer {
	t.Helper()
	installTracer.Do(func() {
		otel.SetTracerProvider(recordingProvider{tracer: spans})
	})
	spans.reset()
	return spans
}

func spanNames(recs []spanRecord) []string {
	names := make([]string, len(recs))
	for i, r := range recs {
		names[i] = r.name
	}
	return names
}

func TestSubmit_CardPaymentTracesGatewayCalls(t *testing.T) {
	rec := recordSpans(t)
	f := newFlow(t, pizzaCart(), &MockGateway{}, &MockOrders{})
	toReview(t, f, validCard())

	_, err := f.Submit(context.Background())
	require.NoError(t, err)

	got := rec.snapshot()
	assert.Equal(t, []string{"checkout.submit", "payment.create_intent", "payment.confirm"}, spanNames(got))
	for _, s := range got {
		assert.True(t, s.ended, s.name)
		assert.False(t, s.failed, s.name)
	}
}

func TestSubmit_ConfirmErrorMarksSpan(t *testing.T) {
	rec := recordSpans(t)
	f := newFlow(t, pizzaCart(), &MockGateway{confirmErr: errors.New("connection reset")}, &MockOrders{})
	toReview(t, f, validCard())

	_, err := f.Submit(context.Background())
	require.Error(t, err)

	got := rec.snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, "payment.confirm", got[2].name)
	assert.True(t, got[2].ended)
	assert.True(t, got[2].failed)
	assert.False(t, got[1].failed)
}

func TestSubmit_CashTracesOrderPlacement(t *testing.T) {
	rec := recordSpans(t)
	f := newFlow(t, pizzaCart(), &MockGateway{}, &MockOrders{orderID: "order-1"})
	toReview(t, f, domain.PaymentInfo{Method: domain.PaymentMethodCash})

	_, err := f.Submit(context.Background())
	require.NoError(t, err)

	got := rec.snapshot()
	assert.Equal(t, []string{"checkout.submit", "orders.place_order"}, spanNames(got))
	assert.True(t, got[1].ended)
}
