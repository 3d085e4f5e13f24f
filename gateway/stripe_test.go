package gateway_test

import (
	"context"
	"encoding/json"
	"order-payment-service/gateway"
	"order-payment-service/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test"

func stripeEvent(t *testing.T, eventType string, session map[string]interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]interface{}{"object": session},
	})
	require.NoError(t, err)
	return raw
}

func signedStripe(payload []byte, secret string) models.RawNotification {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return models.RawNotification{
		Body:    signed.Payload,
		Headers: map[string]string{"Stripe-Signature": signed.Header},
	}
}

func newTestStripe(t *testing.T) *gateway.StripeGateway {
	t.Helper()
	g, err := gateway.NewStripeGateway(gateway.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
	}, time.Second, zap.NewNop())
	require.NoError(t, err)
	return g
}

func TestStripeVerify_CheckoutCompleted(t *testing.T) {
	g := newTestStripe(t)

	payload := stripeEvent(t, "checkout.session.completed", map[string]interface{}{
		"id":                  "cs_test_1",
		"object":              "checkout.session",
		"client_reference_id": "ORD-1",
		"amount_total":        100,
		"payment_status":      "paid",
	})

	evt, err := g.VerifyNotification(context.Background(), signedStripe(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", evt.OutTradeNo)
	assert.Equal(t, "cs_test_1", evt.TradeNo)
	assert.Equal(t, models.OrderStatusPaid, evt.Target)
	assert.Equal(t, int64(100), evt.TotalAmount)
}

func TestStripeVerify_Expired(t *testing.T) {
	g := newTestStripe(t)

	payload := stripeEvent(t, "checkout.session.expired", map[string]interface{}{
		"id":       "cs_test_2",
		"object":   "checkout.session",
		"metadata": map[string]string{"order_no": "ORD-2"},
	})

	evt, err := g.VerifyNotification(context.Background(), signedStripe(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "ORD-2", evt.OutTradeNo)
	assert.Equal(t, models.OrderStatusCancelled, evt.Target)
}

func TestStripeVerify_BadSignature(t *testing.T) {
	g := newTestStripe(t)

	payload := stripeEvent(t, "checkout.session.completed", map[string]interface{}{
		"id": "cs_test_1", "object": "checkout.session", "client_reference_id": "ORD-1",
	})

	_, err := g.VerifyNotification(context.Background(), signedStripe(payload, "whsec_other"))
	assert.ErrorIs(t, err, gateway.ErrVerificationFailed)

	_, err = g.VerifyNotification(context.Background(), models.RawNotification{Body: payload})
	assert.ErrorIs(t, err, gateway.ErrVerificationFailed)
}
