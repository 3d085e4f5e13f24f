package repository

import (
	"context"
	"order-payment-service/models"

	"gorm.io/gorm"
)

// NotificationRepository keeps the audit trail of gateway callbacks.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.PaymentNotification) error
	// UpdateOutcome stores the decoded trade fields and the outcome of n.
	UpdateOutcome(ctx context.Context, n *models.PaymentNotification) error
	FindByOutTradeNo(ctx context.Context, outTradeNo string) ([]models.PaymentNotification, error)
}

type gormNotificationRepo struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a GORM-backed NotificationRepository.
func NewGormNotificationRepository(db *gorm.DB) NotificationRepository {
	return &gormNotificationRepo{db: db}
}

func (r *gormNotificationRepo) Create(ctx context.Context, n *models.PaymentNotification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *gormNotificationRepo) UpdateOutcome(ctx context.Context, n *models.PaymentNotification) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentNotification{}).
		Where("id = ?", n.ID).
		Updates(map[string]interface{}{
			"out_trade_no": n.OutTradeNo,
			"trade_no":     n.TradeNo,
			"trade_status": n.TradeStatus,
			"outcome":      n.Outcome,
			"reason":       n.Reason,
		}).Error
}

func (r *gormNotificationRepo) FindByOutTradeNo(ctx context.Context, outTradeNo string) ([]models.PaymentNotification, error) {
	var out []models.PaymentNotification
	err := r.db.WithContext(ctx).
		Where("out_trade_no = ?", outTradeNo).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
