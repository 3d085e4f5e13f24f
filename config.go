package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"order-payment-service/database"
	"order-payment-service/gateway"

	aws_pkg "order-payment-service/pkg/aws"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the order payment service.
type Config struct {
	Env      string
	LogLevel string
	Port     string

	Postgres database.PostgresConfig
	Gateway  gateway.Config

	// Auth
	JWTSecret           string
	TrustGatewayHeaders bool
	CORSOrigins         []string
	PublicRatePerMinute int

	// Optional infrastructure; empty disables the component.
	RedisURL          string
	StatusCacheTTL    time.Duration
	KafkaBrokers      []string
	KafkaTopic        string
	OrderSNSTopicARN  string
	RelayQueueURL     string
	UserServiceURL    string
	UserServiceToken  string
	ProvisionTimeout  time.Duration
	UseSecretsManager bool
}

// LoadConfig reads configuration from the environment (and a .env file if
// present) with optional Secrets Manager override.
func LoadConfig(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: os.Getenv("LOG_LEVEL"),
		Port:     getEnv("PORT", "8095"),
		Postgres: database.PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   os.Getenv("POSTGRES_DB"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Shanghai"),
		},
		Gateway: gateway.Config{
			Provider: getEnv("PAYMENT_GATEWAY", "mock"),
			Timeout:  getDuration("GATEWAY_TIMEOUT", 10*time.Second),
			Alipay: gateway.AlipayConfig{
				AppID:           os.Getenv("ALIPAY_APP_ID"),
				PrivateKeyPEM:   os.Getenv("ALIPAY_PRIVATE_KEY"),
				AlipayPublicPEM: os.Getenv("ALIPAY_PUBLIC_KEY"),
				Production:      getBool("ALIPAY_PRODUCTION", true),
				NotifyURL:       os.Getenv("ALIPAY_NOTIFY_URL"),
				ReturnURL:       os.Getenv("ALIPAY_RETURN_URL"),
			},
			Stripe: gateway.StripeConfig{
				SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
				WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
				Currency:      getEnv("STRIPE_CURRENCY", "cny"),
				SuccessURL:    os.Getenv("STRIPE_SUCCESS_URL"),
				CancelURL:     os.Getenv("STRIPE_CANCEL_URL"),
			},
			Mock: gateway.MockConfig{
				Secret:  getEnv("MOCK_GATEWAY_SECRET", "dev-mock-secret"),
				BaseURL: getEnv("MOCK_GATEWAY_URL", "http://localhost:8095/mock-pay"),
			},
		},
		JWTSecret:           os.Getenv("JWT_SECRET"),
		TrustGatewayHeaders: getBool("TRUST_GATEWAY_HEADERS", true),
		CORSOrigins:         splitList(os.Getenv("CORS_ORIGINS")),
		PublicRatePerMinute: getInt("PUBLIC_RATE_PER_MINUTE", 60),
		RedisURL:            os.Getenv("REDIS_URL"),
		StatusCacheTTL:      getDuration("STATUS_CACHE_TTL", 30*time.Second),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:          getEnv("KAFKA_ORDER_TOPIC", "order-status-changed"),
		OrderSNSTopicARN:    os.Getenv("ORDER_SNS_TOPIC_ARN"),
		RelayQueueURL:       os.Getenv("NOTIFICATION_RELAY_QUEUE_URL"),
		UserServiceURL:      os.Getenv("USER_SERVICE_URL"),
		UserServiceToken:    os.Getenv("USER_SERVICE_TOKEN"),
		ProvisionTimeout:    getDuration("USER_SERVICE_TIMEOUT", 5*time.Second),
		UseSecretsManager:   os.Getenv("AWS_USE_SECRETS") == "true",
	}

	if cfg.UseSecretsManager {
		if awsCfg, err := aws_pkg.LoadAWSConfig(ctx); err == nil {
			applySecrets(ctx, cfg, aws_pkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type secretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// applySecrets overrides database credentials and gateway keys from
// payment/DB_CREDENTIALS and payment/GATEWAY_KEYS.
func applySecrets(ctx context.Context, cfg *Config, sm secretSource) {
	if m, err := sm.GetSecretMap(ctx, "payment/DB_CREDENTIALS"); err == nil {
		override(&cfg.Postgres.User, m["POSTGRES_USER"])
		override(&cfg.Postgres.Password, m["POSTGRES_PASSWORD"])
		override(&cfg.Postgres.DBName, m["POSTGRES_DB"])
		override(&cfg.Postgres.Host, m["POSTGRES_HOST"])
		override(&cfg.Postgres.Port, m["POSTGRES_PORT"])
	}
	if m, err := sm.GetSecretMap(ctx, "payment/GATEWAY_KEYS"); err == nil {
		override(&cfg.Gateway.Alipay.PrivateKeyPEM, m["ALIPAY_PRIVATE_KEY"])
		override(&cfg.Gateway.Alipay.AlipayPublicPEM, m["ALIPAY_PUBLIC_KEY"])
		override(&cfg.Gateway.Stripe.SecretKey, m["STRIPE_SECRET_KEY"])
		override(&cfg.Gateway.Stripe.WebhookSecret, m["STRIPE_WEBHOOK_SECRET"])
		override(&cfg.Gateway.Mock.Secret, m["MOCK_GATEWAY_SECRET"])
		override(&cfg.JWTSecret, m["JWT_SECRET"])
	}
}

func (c *Config) validate() error {
	if c.Postgres.User == "" || c.Postgres.Password == "" || c.Postgres.DBName == "" || c.Postgres.Host == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.JWTSecret == "" && !c.TrustGatewayHeaders {
		return fmt.Errorf("JWT_SECRET is required when TRUST_GATEWAY_HEADERS is false")
	}
	if c.Env == "production" && c.Gateway.Provider == "mock" {
		return fmt.Errorf("mock payment gateway is not allowed in production")
	}
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
