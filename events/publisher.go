package events

import (
	"context"
	"encoding/json"
	"errors"
	"order-payment-service/models"

	aws_pkg "order-payment-service/pkg/aws"

	"go.uber.org/zap"
)

const TypeOrderStatusChanged = "order_status_changed"

// KeyedPublisher is satisfied by *kafka.Producer.
type KeyedPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Publisher fans an OrderStatusChanged event out to SNS and Kafka. Either
// sink may be nil. Delivery is best effort: failures are logged and joined,
// never retried here.
type Publisher struct {
	sns      aws_pkg.SNSPublisher
	topicArn string
	kafka    KeyedPublisher
	logger   *zap.Logger
}

func NewPublisher(sns aws_pkg.SNSPublisher, topicArn string, kafka KeyedPublisher, logger *zap.Logger) *Publisher {
	return &Publisher{sns: sns, topicArn: topicArn, kafka: kafka, logger: logger}
}

func (p *Publisher) PublishStatusChanged(ctx context.Context, evt models.OrderStatusChangedEvent) error {
	if evt.Type == "" {
		evt.Type = TypeOrderStatusChanged
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	var errs []error
	if p.sns != nil && p.topicArn != "" {
		if err := p.sns.Publish(ctx, p.topicArn, payload); err != nil {
			p.logger.Warn("SNS publish failed", zap.String("order_no", evt.OrderNo), zap.Error(err))
			errs = append(errs, err)
		}
	}
	if p.kafka != nil {
		if err := p.kafka.Publish(ctx, evt.OrderNo, payload); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		p.logger.Info("Order status event published",
			zap.String("order_no", evt.OrderNo),
			zap.String("from", string(evt.From)),
			zap.String("to", string(evt.To)),
		)
	}
	return errors.Join(errs...)
}
