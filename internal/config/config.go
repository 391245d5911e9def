// Package config reads service settings from the environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	CartBackendMemory = "memory"
	CartBackendRedis  = "redis"
	CartBackendMongo  = "mongo"

	PaymentModeSandbox = "sandbox"
	PaymentModeStripe  = "stripe"
)

type Config struct {
	HTTPPort           string
	GRPCPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	LogLevel           string
	AllowedOrigins     []string

	JWTSecret      string
	SessionTTL     time.Duration
	SessionIdleTTL time.Duration

	CartBackend   string
	CartTTL       time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MongoURI      string
	MongoDatabase string

	CatalogDBPath         string
	CatalogMigrationsPath string

	OrdersEnabled        bool
	DBHost               string
	DBPort               int
	DBUser               string
	DBPassword           string
	DBName               string
	OrdersMigrationsPath string
	KafkaBrokers         []string

	PaymentMode     string
	StripeSecretKey string
	SubmitTimeout   time.Duration
	SubmitRate      float64
	SubmitBurst     int

	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	TaxRate               decimal.Decimal
	TipRate               decimal.Decimal
}

// Load reads .env (when present) and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	p := &parser{}
	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		GRPCPort:           getEnv("GRPC_PORT", "50051"),
		RequestTimeout:     p.duration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: int64(p.int("MAX_REQUEST_BODY_SIZE", 1<<20)), // 1MB
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:     list(getEnv("ALLOWED_ORIGINS", "")),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		SessionTTL:     p.duration("SESSION_TOKEN_TTL", 7*24*time.Hour),
		SessionIdleTTL: p.duration("SESSION_IDLE_TTL", 30*time.Minute),

		CartBackend:   getEnv("CART_BACKEND", CartBackendMemory),
		CartTTL:       p.duration("CART_TTL", 30*24*time.Hour),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       p.int("REDIS_DB", 0),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "restaurant"),

		CatalogDBPath:         getEnv("CATALOG_DB_PATH", "./restaurant.db"),
		CatalogMigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "./internal/catalog/migrations"),

		OrdersEnabled:        p.bool("ORDERS_ENABLED", true),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               p.int("DB_PORT", 5432),
		DBUser:               getEnv("DB_USER", "postgres"),
		DBPassword:           getEnv("DB_PASSWORD", "postgres"),
		DBName:               getEnv("DB_NAME", "orders"),
		OrdersMigrationsPath: getEnv("ORDERS_MIGRATIONS_PATH", "./internal/orders/migrations"),
		KafkaBrokers:         list(getEnv("KAFKA_BROKERS", "localhost:9092")),

		PaymentMode:     getEnv("PAYMENT_MODE", PaymentModeSandbox),
		StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		SubmitTimeout:   p.duration("SUBMIT_TIMEOUT", 30*time.Second),
		SubmitRate:      p.float("SUBMIT_RATE_PER_SECOND", 0.2),
		SubmitBurst:     p.int("SUBMIT_BURST", 3),

		DeliveryFee:           p.decimal("DELIVERY_FEE", "5.00"),
		FreeDeliveryThreshold: p.decimal("FREE_DELIVERY_THRESHOLD", "50.00"),
		TaxRate:               p.decimal("TAX_RATE", "0.08"),
		TipRate:               p.decimal("TIP_RATE", "0.15"),
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.CartBackend {
	case CartBackendMemory, CartBackendRedis, CartBackendMongo:
	default:
		errs = append(errs, fmt.Errorf("CART_BACKEND: unknown backend %q", c.CartBackend))
	}
	switch c.PaymentMode {
	case PaymentModeSandbox:
	case PaymentModeStripe:
		if c.StripeSecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required when PAYMENT_MODE=stripe"))
		}
		if !c.OrdersEnabled {
			errs = append(errs, errors.New("PAYMENT_MODE=stripe needs ORDERS_ENABLED to record paid orders"))
		}
	default:
		errs = append(errs, fmt.Errorf("PAYMENT_MODE: unknown mode %q", c.PaymentMode))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func list(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects conversion errors so every bad variable is reported at once.
type parser struct {
	errs []error
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) decimal(key, def string) decimal.Decimal {
	v := getEnv(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return decimal.RequireFromString(def)
	}
	return d
}
