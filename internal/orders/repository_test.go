package orders

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/restaurant-ordering/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func newTestOrder(paymentRef string) *domain.Order {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Order{
		ID:            uuid.New(),
		SessionID:     "session-123",
		Status:        domain.OrderStatusConfirmed,
		PaymentStatus: domain.PaymentStatusPaid,
		PaymentMethod: domain.PaymentMethodCard,
		PaymentRef:    paymentRef,
		DeliveryType:  domain.DeliveryTypeDelivery,
		Delivery:      domain.DeliveryInfo{Address: "1 Main St", City: "Springfield", PostalCode: "12345", Phone: "555"},
		Items: []domain.OrderItem{
			{DishID: 1, Name: "Pizza", Quantity: 2, Price: decimal.NewFromInt(10)},
		},
		Subtotal:    decimal.NewFromInt(20),
		DeliveryFee: decimal.NewFromInt(5),
		Tax:         decimal.RequireFromString("1.60"),
		ServiceTip:  decimal.RequireFromString("3.00"),
		TotalAmount: decimal.RequireFromString("29.60"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreateOrder_Success(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("pi_1")

	err := repo.CreateOrder(ctx, order, []byte(`{"order_id":"1"}`))
	require.NoError(t, err)

	fetched, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, fetched.ID)
	assert.Equal(t, order.SessionID, fetched.SessionID)
	assert.Equal(t, order.Status, fetched.Status)
	assert.Equal(t, order.PaymentStatus, fetched.PaymentStatus)
	assert.Equal(t, "pi_1", fetched.PaymentRef)
	assert.Equal(t, order.Delivery, fetched.Delivery)
	assert.True(t, order.TotalAmount.Equal(fetched.TotalAmount))
	assert.True(t, order.Tax.Equal(fetched.Tax))
	require.Len(t, fetched.Items, 1)
	assert.Equal(t, int64(1), fetched.Items[0].DishID)
	assert.True(t, decimal.NewFromInt(10).Equal(fetched.Items[0].Price))
}

func TestCreateOrder_DuplicatePayment(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("pi_dup"), []byte(`{}`)))

	err := repo.CreateOrder(ctx, newTestOrder("pi_dup"), []byte(`{}`))
	assert.ErrorIs(t, err, ErrDuplicatePayment)
}

func TestCreateOrder_CashOrdersWithoutPaymentRef(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.CreateOrder(ctx, newTestOrder(""), []byte(`{}`)))
	require.NoError(t, repo.CreateOrder(ctx, newTestOrder(""), []byte(`{}`)))
}

func TestGetOrderByID_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetOrderByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetOrderByPaymentRef(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("pi_lookup")
	require.NoError(t, repo.CreateOrder(ctx, order, []byte(`{}`)))

	fetched, err := repo.GetOrderByPaymentRef(ctx, "pi_lookup")
	require.NoError(t, err)
	assert.Equal(t, order.ID, fetched.ID)

	_, err = repo.GetOrderByPaymentRef(ctx, "pi_missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOutboxEvents_Lifecycle(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("pi_2")
	require.NoError(t, repo.CreateOrder(ctx, order, []byte(`{"order_id":"2"}`)))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, order.ID, events[0].AggregateID)
	assert.Equal(t, EventOrderPlaced, events[0].EventType)
	assert.JSONEq(t, `{"order_id":"2"}`, string(events[0].Payload))

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCreateOrder_FailedInsertLeavesNoEvent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("pi_3"), []byte(`{}`)))
	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.ErrorIs(t, repo.CreateOrder(ctx, newTestOrder("pi_3"), []byte(`{}`)), ErrDuplicatePayment)

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
