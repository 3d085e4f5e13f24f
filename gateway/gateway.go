package gateway

import (
	"context"
	"errors"
	"fmt"
	"order-payment-service/models"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrVerificationFailed marks a notification that failed its integrity check.
	ErrVerificationFailed = errors.New("notification verification failed")
	// ErrGatewayUnavailable marks a transient failure talking to the provider.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// PaymentGateway is the contract every provider integration satisfies.
type PaymentGateway interface {
	Name() string
	// CreatePaymentForm builds a payable representation of the trade. Calling it
	// twice for the same OutTradeNo must not create a second charge.
	CreatePaymentForm(ctx context.Context, params models.TradeParams) (*models.PaymentForm, error)
	// VerifyNotification checks authenticity and decodes the callback. Any
	// failure wraps ErrVerificationFailed.
	VerifyNotification(ctx context.Context, raw models.RawNotification) (*models.VerifiedEvent, error)
	// Acknowledge renders the response body the provider expects.
	Acknowledge(ok bool) (contentType string, body []byte)
}

// Config selects and configures the provider.
type Config struct {
	Provider string
	Timeout  time.Duration
	Alipay   AlipayConfig
	Stripe   StripeConfig
	Mock     MockConfig
}

// New builds the gateway named by cfg.Provider. The choice is fixed for the
// lifetime of the process.
func New(cfg Config, logger *zap.Logger) (PaymentGateway, error) {
	switch strings.ToLower(cfg.Provider) {
	case "alipay":
		return NewAlipayGateway(cfg.Alipay, logger)
	case "stripe":
		return NewStripeGateway(cfg.Stripe, cfg.Timeout, logger)
	case "mock", "":
		return NewMockGateway(cfg.Mock, logger)
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", cfg.Provider)
	}
}

func verificationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrVerificationFailed, fmt.Sprintf(format, args...))
}
