package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"order-payment-service/models"

	"github.com/smartwalle/alipay/v3"
	"go.uber.org/zap"
)

const alipayProductCode = "FAST_INSTANT_TRADE_PAY"

type AlipayConfig struct {
	AppID           string
	PrivateKeyPEM   string
	AlipayPublicPEM string
	// Production selects openapi.alipay.com over the sandbox.
	Production bool
	NotifyURL  string
	ReturnURL  string
}

// AlipayGateway issues page-pay URLs and verifies RSA2 signed notifications.
type AlipayGateway struct {
	cfg    AlipayConfig
	client *alipay.Client
	logger *zap.Logger
}

func NewAlipayGateway(cfg AlipayConfig, logger *zap.Logger) (*AlipayGateway, error) {
	if cfg.AppID == "" {
		return nil, errors.New("alipay: app id is required")
	}
	client, err := alipay.New(cfg.AppID, cfg.PrivateKeyPEM, cfg.Production)
	if err != nil {
		return nil, fmt.Errorf("alipay: private key: %w", err)
	}
	if err := client.LoadAliPayPublicKey(cfg.AlipayPublicPEM); err != nil {
		return nil, fmt.Errorf("alipay: public key: %w", err)
	}
	return &AlipayGateway{cfg: cfg, client: client, logger: logger}, nil
}

func (g *AlipayGateway) Name() string { return "alipay" }

// CreatePaymentForm returns the signed page-pay URL. Alipay deduplicates on
// out_trade_no, so reissuing it for the same order is safe.
func (g *AlipayGateway) CreatePaymentForm(ctx context.Context, p models.TradeParams) (*models.PaymentForm, error) {
	var pay alipay.TradePagePay
	pay.NotifyURL = g.cfg.NotifyURL
	pay.ReturnURL = g.cfg.ReturnURL
	pay.OutTradeNo = p.OutTradeNo
	pay.Subject = p.Subject
	pay.Body = p.Body
	pay.TotalAmount = FormatAmount(p.TotalAmount)
	pay.ProductCode = alipayProductCode

	payURL, err := g.client.TradePagePay(pay)
	if err != nil {
		return nil, fmt.Errorf("%w: page pay: %v", ErrGatewayUnavailable, err)
	}

	g.logger.Debug("Alipay payment form created", zap.String("out_trade_no", p.OutTradeNo))
	return &models.PaymentForm{
		Gateway: g.Name(),
		Kind:    models.FormKindRedirect,
		Content: payURL.String(),
	}, nil
}

// VerifyNotification checks the RSA2 signature of a form-encoded callback.
func (g *AlipayGateway) VerifyNotification(ctx context.Context, raw models.RawNotification) (*models.VerifiedEvent, error) {
	values, err := url.ParseQuery(string(raw.Body))
	if err != nil {
		return nil, verificationError("malformed body")
	}
	if values.Get("sign") == "" {
		return nil, verificationError("missing sign")
	}
	if st := values.Get("sign_type"); st != "" && st != "RSA2" {
		return nil, verificationError("unsupported sign_type %s", st)
	}
	if err := g.client.VerifySign(values); err != nil {
		return nil, verificationError("bad signature")
	}
	if values.Get("app_id") != g.cfg.AppID {
		return nil, verificationError("app_id mismatch")
	}

	outTradeNo := values.Get("out_trade_no")
	if outTradeNo == "" {
		return nil, verificationError("missing out_trade_no")
	}
	amount, err := ParseAmount(values.Get("total_amount"))
	if err != nil {
		return nil, verificationError("%v", err)
	}

	tradeStatus := values.Get("trade_status")
	return &models.VerifiedEvent{
		OutTradeNo:  outTradeNo,
		TradeNo:     values.Get("trade_no"),
		TradeStatus: tradeStatus,
		Target:      alipayTarget(alipay.TradeStatus(tradeStatus), values.Get("refund_fee")),
		TotalAmount: amount,
	}, nil
}

// Acknowledge answers the plain-text body Alipay polls for.
func (g *AlipayGateway) Acknowledge(ok bool) (string, []byte) {
	if ok {
		return "text/plain; charset=utf-8", []byte("success")
	}
	return "text/plain; charset=utf-8", []byte("fail")
}

func alipayTarget(tradeStatus alipay.TradeStatus, refundFee string) models.OrderStatus {
	switch tradeStatus {
	case alipay.TradeStatusSuccess, alipay.TradeStatusFinished:
		return models.OrderStatusPaid
	case alipay.TradeStatusClosed:
		if fee, err := ParseAmount(refundFee); err == nil && fee > 0 {
			return models.OrderStatusRefunded
		}
		return models.OrderStatusCancelled
	default:
		return ""
	}
}
