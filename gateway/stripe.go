package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"order-payment-service/models"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// StripeGateway issues Checkout sessions and verifies Stripe webhooks.
type StripeGateway struct {
	cfg      StripeConfig
	sessions *session.Client
	timeout  time.Duration
	logger   *zap.Logger
}

func NewStripeGateway(cfg StripeConfig, timeout time.Duration, logger *zap.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" || cfg.WebhookSecret == "" {
		return nil, errors.New("stripe: secret key and webhook secret are required")
	}
	if cfg.Currency == "" {
		cfg.Currency = "cny"
	}
	return &StripeGateway{
		cfg:      cfg,
		sessions: &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey},
		timeout:  timeout,
		logger:   logger,
	}, nil
}

func (g *StripeGateway) Name() string { return "stripe" }

// CreatePaymentForm opens a Checkout session. The idempotency key is derived
// from the order number so retries return the same session.
func (g *StripeGateway) CreatePaymentForm(ctx context.Context, p models.TradeParams) (*models.PaymentForm, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(p.OutTradeNo),
		SuccessURL:        stripe.String(g.cfg.SuccessURL),
		CancelURL:         stripe.String(g.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(g.cfg.Currency)),
					UnitAmount: stripe.Int64(p.TotalAmount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.Subject),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("order_no", p.OutTradeNo)
	params.SetIdempotencyKey("checkout-" + p.OutTradeNo)

	sess, err := g.sessions.New(params)
	if err != nil {
		g.logger.Warn("Stripe checkout session creation failed",
			zap.String("out_trade_no", p.OutTradeNo),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	return &models.PaymentForm{
		Gateway: g.Name(),
		Kind:    models.FormKindRedirect,
		Content: sess.URL,
	}, nil
}

// VerifyNotification validates the Stripe-Signature header and decodes
// checkout session events.
func (g *StripeGateway) VerifyNotification(ctx context.Context, raw models.RawNotification) (*models.VerifiedEvent, error) {
	sigHeader := raw.Headers["Stripe-Signature"]
	if sigHeader == "" {
		return nil, verificationError("missing Stripe-Signature header")
	}
	event, err := webhook.ConstructEvent(raw.Body, sigHeader, g.cfg.WebhookSecret)
	if err != nil {
		return nil, verificationError("%v", err)
	}

	if !strings.HasPrefix(string(event.Type), "checkout.session.") {
		g.logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
		return &models.VerifiedEvent{TradeStatus: string(event.Type)}, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, verificationError("unmarshal checkout session: %v", err)
	}

	outTradeNo := sess.ClientReferenceID
	if outTradeNo == "" {
		outTradeNo = sess.Metadata["order_no"]
	}
	if outTradeNo == "" {
		return nil, verificationError("checkout session %s carries no order number", sess.ID)
	}

	tradeNo := sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		tradeNo = sess.PaymentIntent.ID
	}

	return &models.VerifiedEvent{
		OutTradeNo:  outTradeNo,
		TradeNo:     tradeNo,
		TradeStatus: string(event.Type),
		Target:      stripeTarget(event.Type, sess.PaymentStatus),
		TotalAmount: sess.AmountTotal,
	}, nil
}

func (g *StripeGateway) Acknowledge(ok bool) (string, []byte) {
	if ok {
		return "application/json; charset=utf-8", []byte(`{"received":true}`)
	}
	return "application/json; charset=utf-8", []byte(`{"received":false}`)
}

func stripeTarget(eventType stripe.EventType, paymentStatus stripe.CheckoutSessionPaymentStatus) models.OrderStatus {
	switch eventType {
	case "checkout.session.completed":
		if paymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			return models.OrderStatusPaid
		}
		return ""
	case "checkout.session.async_payment_succeeded":
		return models.OrderStatusPaid
	case "checkout.session.async_payment_failed":
		return models.OrderStatusFailed
	case "checkout.session.expired":
		return models.OrderStatusCancelled
	default:
		return ""
	}
}
