package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"order-payment-service/models"
	"strconv"

	"go.uber.org/zap"
)

// MockSignatureHeader carries the hex HMAC-SHA256 of the notification body.
const MockSignatureHeader = "X-Mock-Signature"

type MockConfig struct {
	Secret  string
	BaseURL string
}

// MockGateway stands in for a real provider in local and test environments.
// Notifications are JSON bodies signed with a shared secret.
type MockGateway struct {
	cfg    MockConfig
	logger *zap.Logger
}

// MockNotification is the body accepted by MockGateway.
type MockNotification struct {
	OutTradeNo  string `json:"out_trade_no"`
	TradeNo     string `json:"trade_no"`
	TradeStatus string `json:"trade_status"`
	TotalAmount int64  `json:"total_amount"`
}

func NewMockGateway(cfg MockConfig, logger *zap.Logger) (*MockGateway, error) {
	if cfg.Secret == "" {
		return nil, errors.New("mock gateway: secret is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080/mock-pay"
	}
	return &MockGateway{cfg: cfg, logger: logger}, nil
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) CreatePaymentForm(ctx context.Context, p models.TradeParams) (*models.PaymentForm, error) {
	q := url.Values{}
	q.Set("out_trade_no", p.OutTradeNo)
	q.Set("total_amount", strconv.FormatInt(p.TotalAmount, 10))
	q.Set("subject", p.Subject)
	q.Set("sign", SignMock(g.cfg.Secret, []byte(q.Encode())))

	return &models.PaymentForm{
		Gateway: g.Name(),
		Kind:    models.FormKindRedirect,
		Content: g.cfg.BaseURL + "?" + q.Encode(),
	}, nil
}

func (g *MockGateway) VerifyNotification(ctx context.Context, raw models.RawNotification) (*models.VerifiedEvent, error) {
	sig := raw.Headers[MockSignatureHeader]
	if sig == "" {
		return nil, verificationError("missing %s header", MockSignatureHeader)
	}
	expected := SignMock(g.cfg.Secret, raw.Body)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return nil, verificationError("bad signature")
	}

	var n MockNotification
	if err := json.Unmarshal(raw.Body, &n); err != nil {
		return nil, verificationError("malformed body")
	}
	if n.OutTradeNo == "" {
		return nil, verificationError("missing out_trade_no")
	}

	var target models.OrderStatus
	if st, ok := models.ParseOrderStatus(n.TradeStatus); ok && st != models.OrderStatusPending {
		target = st
	}
	return &models.VerifiedEvent{
		OutTradeNo:  n.OutTradeNo,
		TradeNo:     n.TradeNo,
		TradeStatus: n.TradeStatus,
		Target:      target,
		TotalAmount: n.TotalAmount,
	}, nil
}

func (g *MockGateway) Acknowledge(ok bool) (string, []byte) {
	if ok {
		return "text/plain; charset=utf-8", []byte("success")
	}
	return "text/plain; charset=utf-8", []byte("fail")
}

// SignMock returns the hex HMAC-SHA256 of body under secret.
func SignMock(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
