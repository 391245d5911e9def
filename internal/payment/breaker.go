package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// Breaker stops calling the processor after repeated transport failures.
// Declined payments are successful calls and never trip it.
type Breaker struct {
	next     Gateway
	intents  *gobreaker.CircuitBreaker[*Intent]
	confirms *gobreaker.CircuitBreaker[*Confirmation]
}

func NewBreaker(next Gateway, s BreakerSettings, log *slog.Logger) *Breaker {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= s.ConsecutiveFailures
			},
			IsSuccessful: func(err error) bool {
				// the caller giving up is not the processor's fault
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("payment breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		}
	}

	return &Breaker{
		next:     next,
		intents:  gobreaker.NewCircuitBreaker[*Intent](settings("payment-intents")),
		confirms: gobreaker.NewCircuitBreaker[*Confirmation](settings("payment-confirms")),
	}
}

func (b *Breaker) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, draft domain.OrderDraft) (*Intent, error) {
	intent, err := b.intents.Execute(func() (*Intent, error) {
		return b.next.CreatePaymentIntent(ctx, amount, draft)
	})
	return intent, unavailable(err)
}

func (b *Breaker) ConfirmPayment(ctx context.Context, clientSecret string, details domain.PaymentInfo) (*Confirmation, error) {
	conf, err := b.confirms.Execute(func() (*Confirmation, error) {
		return b.next.ConfirmPayment(ctx, clientSecret, details)
	})
	return conf, unavailable(err)
}

func unavailable(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return err
}
