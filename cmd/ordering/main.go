package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/fjod/restaurant-ordering/internal/catalog"
	"github.com/fjod/restaurant-ordering/internal/checkout"
	"github.com/fjod/restaurant-ordering/internal/config"
	"github.com/fjod/restaurant-ordering/internal/events"
	h "github.com/fjod/restaurant-ordering/internal/http"
	"github.com/fjod/restaurant-ordering/internal/orders"
	"github.com/fjod/restaurant-ordering/internal/payment"
	"github.com/fjod/restaurant-ordering/internal/session"
	"github.com/fjod/restaurant-ordering/internal/storage"
	"github.com/fjod/restaurant-ordering/pkg/logger"
)

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, slog.Any("error", err))
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(slog.Default(), "invalid configuration", err)
	}
	log := logger.New("ordering", cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("ordering service starting...")

	var wg sync.WaitGroup
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Cart storage
	cartStorage, closeStorage, err := newCartStorage(ctx, cfg)
	if err != nil {
		fatal(log, "failed to set up cart storage", err)
	}
	defer closeStorage()
	log.Info("cart storage ready", slog.String("backend", cfg.CartBackend))

	// Menu
	menu, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		fatal(log, "failed to open catalog", err)
	}
	defer menu.Close()
	if err := menu.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		fatal(log, "failed to run catalog migrations", err)
	}

	// Orders
	var ordersService *orders.Service
	var ordersRepo *orders.Repository
	var poller *orders.OutboxPoller
	if cfg.OrdersEnabled {
		creds := &orders.Credentials{
			Host:              cfg.DBHost,
			Port:              cfg.DBPort,
			User:              cfg.DBUser,
			Password:          cfg.DBPassword,
			DBName:            cfg.DBName,
			MigrationsDirPath: cfg.OrdersMigrationsPath,
		}
		ordersRepo, err = orders.NewRepository(creds)
		if err != nil {
			fatal(log, "failed to connect to orders database", err)
		}
		defer ordersRepo.Close()
		if err := ordersRepo.RunMigrations(creds); err != nil {
			fatal(log, "failed to run orders migrations", err)
		}
		log.Info("orders database migrations completed")

		ordersService = orders.NewService(ordersRepo, log)

		poller = orders.NewOutboxPoller(ordersRepo, log, cfg.KafkaBrokers...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
		}()
	}

	// Payments
	var gateway payment.Gateway = payment.NewSandboxGateway()
	if cfg.PaymentMode == config.PaymentModeStripe {
		stripeGateway := payment.NewStripeGateway(cfg.StripeSecretKey, ordersService, log)
		gateway = payment.NewBreaker(stripeGateway, payment.DefaultBreakerSettings(), log)
	}
	log.Info("payment gateway ready", slog.String("mode", cfg.PaymentMode))

	deps := checkout.Deps{
		Gateway: gateway,
		Pricing: checkout.Pricing{
			DeliveryFee:           cfg.DeliveryFee,
			FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
			TaxRate:               cfg.TaxRate,
			TipRate:               cfg.TipRate,
		},
		Timeout: cfg.SubmitTimeout,
		Log:     log,
	}
	// a nil *orders.Service must not hide behind a non-nil interface
	var orderReader h.OrderReader
	if ordersService != nil {
		deps.Orders = ordersService
		orderReader = ordersService
	}

	hub := events.NewHub(log, cfg.AllowedOrigins...)
	defer hub.Close()

	registry := session.NewRegistry(cartStorage, hub, log, session.Options{
		IdleTTL:  cfg.SessionIdleTTL,
		Checkout: deps,
	})
	defer registry.Close()

	healthCheck := func(ctx context.Context) error {
		if err := cartStorage.Ping(ctx); err != nil {
			return err
		}
		if ordersRepo != nil {
			return ordersRepo.Ping(ctx)
		}
		return nil
	}

	router := h.NewRouter(h.RouterConfig{
		Sessions:       registry,
		Menu:           menu,
		Orders:         orderReader,
		Stream:         hub,
		Tokens:         h.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL),
		SubmitLimiter:  h.NewSubmitLimiter(cfg.SubmitRate, cfg.SubmitBurst),
		Health:         healthCheck,
		Log:            log,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodySize:    cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     otelhttp.NewHandler(router, "ordering-http"),
		ReadTimeout: 10 * time.Second,
		// submissions may wait on the gateway for the whole submit timeout
		WriteTimeout: cfg.SubmitTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", slog.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "HTTP server error", err)
		}
	}()

	// gRPC health for orchestrators
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		fatal(log, "failed to listen", err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	wg.Add(1)
	go func() {
		defer wg.Done()
		watchHealth(ctx, healthServer, healthCheck, log)
	}()

	go func() {
		log.Info("gRPC health server listening", slog.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			fatal(log, "gRPC server error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down ordering service...")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", slog.Any("error", err))
	}
	stop()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Info("background workers stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn("background workers didn't stop in time")
	}

	if poller != nil {
		if err := poller.Close(); err != nil {
			log.Error("failed to close outbox writer", slog.Any("error", err))
		}
	}
	log.Info("ordering service stopped")
}

func newCartStorage(ctx context.Context, cfg *config.Config) (storage.CartStorage, func(), error) {
	switch cfg.CartBackend {
	case config.CartBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		st := storage.NewRedisStorage(client, cfg.CartTTL)
		if err := st.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to ping Redis: %w", err)
		}
		return st, func() { _ = client.Close() }, nil

	case config.CartBackendMongo:
		db, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		st := storage.NewMongoStorage(db)
		if err := st.CreateIndexes(ctx); err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, nil, err
		}
		return st, func() { _ = db.Client().Disconnect(context.Background()) }, nil

	default:
		return storage.NewMemoryStorage(), func() {}, nil
	}
}

func watchHealth(ctx context.Context, hs *health.Server, check func(context.Context) error, log *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	status := healthpb.HealthCheckResponse_UNKNOWN
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		next := healthpb.HealthCheckResponse_SERVING
		if err := check(pingCtx); err != nil {
			next = healthpb.HealthCheckResponse_NOT_SERVING
			if status != next {
				log.Warn("dependency check failed", slog.Any("error", err))
			}
		}
		cancel()
		if next != status {
			hs.SetServingStatus("", next)
			status = next
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
