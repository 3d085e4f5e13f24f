package services

import (
	"context"
	"encoding/json"
	"fmt"
	"order-payment-service/models"

	aws_pkg "order-payment-service/pkg/aws"

	"go.uber.org/zap"
)

// RelayEnvelope is the SQS message shape used when an edge proxy forwards
// raw gateway callbacks instead of this service receiving them directly.
type RelayEnvelope struct {
	Body        string            `json:"body"`
	ContentType string            `json:"content_type"`
	Headers     map[string]string `json:"headers"`
}

// NotificationHandler is satisfied by *ReconciliationService.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, raw models.RawNotification) (*TransitionResult, *ServiceError)
}

// NotificationRelay feeds relayed callbacks into the same push path as the
// HTTP endpoint.
type NotificationRelay struct {
	handler NotificationHandler
	metrics MetricsRecorder
	logger  *zap.Logger
}

func NewNotificationRelay(handler NotificationHandler, metrics MetricsRecorder, logger *zap.Logger) *NotificationRelay {
	return &NotificationRelay{handler: handler, metrics: metrics, logger: logger}
}

// Start blocks polling the consumer until ctx is done.
func (r *NotificationRelay) Start(ctx context.Context, consumer *aws_pkg.SQSConsumer) error {
	return consumer.StartPolling(ctx, r.HandleMessage)
}

// HandleMessage returns an error only for faults worth redelivering. Business
// rejections are final and the message is dropped.
func (r *NotificationRelay) HandleMessage(ctx context.Context, body string) error {
	var env RelayEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		r.logger.Warn("Dropping malformed relay message", zap.Error(err))
		return nil
	}

	result, svcErr := r.handler.HandleNotification(ctx, models.RawNotification{
		Body:        []byte(env.Body),
		ContentType: env.ContentType,
		Headers:     env.Headers,
	})
	recordCount(ctx, r.metrics, aws_pkg.MetricRelayMessagesProcessed, nil)

	if svcErr != nil {
		if svcErr.Code == CodeInternal {
			return fmt.Errorf("relay notification: %w", svcErr)
		}
		r.logger.Info("Relay notification rejected", zap.String("code", svcErr.Code), zap.String("error", svcErr.Message))
		return nil
	}

	r.logger.Info("Relay notification processed",
		zap.String("order_no", result.OrderNo),
		zap.Bool("applied", result.Applied),
		zap.Bool("replayed", result.Replayed),
	)
	return nil
}
