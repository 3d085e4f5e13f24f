package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationOutcome records what the push path did with a callback.
type NotificationOutcome string

const (
	NotificationReceived NotificationOutcome = "received"
	NotificationApplied  NotificationOutcome = "applied"
	NotificationReplayed NotificationOutcome = "replayed"
	NotificationIgnored  NotificationOutcome = "ignored"
	NotificationRejected NotificationOutcome = "rejected"
)

// PaymentNotification is the append-only audit log of gateway callbacks.
type PaymentNotification struct {
	ID          uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Gateway     string              `gorm:"type:varchar(32);not null" json:"gateway"`
	OutTradeNo  string              `gorm:"type:varchar(64);index" json:"out_trade_no"`
	TradeNo     string              `gorm:"type:varchar(128)" json:"trade_no"`
	TradeStatus string              `gorm:"type:varchar(64)" json:"trade_status"`
	Payload     string              `gorm:"type:text" json:"-"`
	Outcome     NotificationOutcome `gorm:"type:varchar(20);not null" json:"outcome"`
	Reason      string              `gorm:"type:varchar(512)" json:"reason,omitempty"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
}
