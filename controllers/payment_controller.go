package controllers

import (
	"io"
	"net/http"
	"order-payment-service/models"
	"order-payment-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxNotificationBytes caps gateway callback bodies.
const maxNotificationBytes = 64 << 10

// PaymentController receives asynchronous gateway notifications.
type PaymentController struct {
	reconciler services.Reconciler
	logger     *zap.Logger
}

func NewPaymentController(reconciler services.Reconciler, logger *zap.Logger) *PaymentController {
	return &PaymentController{reconciler: reconciler, logger: logger}
}

// Notify handles POST /payments/notify. The response body is always the
// provider's acknowledgement text so the gateway can tell success from failure.
func (pc *PaymentController) Notify(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxNotificationBytes))
	if err != nil {
		pc.logger.Warn("Failed to read notification body", zap.Error(err))
		pc.acknowledge(ctx, http.StatusBadRequest, false)
		return
	}

	headers := make(map[string]string, len(ctx.Request.Header))
	for name := range ctx.Request.Header {
		headers[name] = ctx.Request.Header.Get(name)
	}

	result, svcErr := pc.reconciler.HandleNotification(ctx.Request.Context(), models.RawNotification{
		Body:        body,
		ContentType: ctx.ContentType(),
		Headers:     headers,
	})
	if svcErr != nil {
		pc.logger.Info("Notification not applied",
			zap.String("code", svcErr.Code),
			zap.String("error", svcErr.Message),
		)
		pc.acknowledge(ctx, svcErr.StatusCode, false)
		return
	}

	if result.ProvisioningFailed {
		pc.logger.Error("Payment applied but user provisioning failed", zap.String("order_no", result.OrderNo))
	}
	pc.acknowledge(ctx, http.StatusOK, true)
}

func (pc *PaymentController) acknowledge(ctx *gin.Context, status int, ok bool) {
	contentType, body := pc.reconciler.Acknowledge(ok)
	ctx.Data(status, contentType, body)
}
