package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the five-valued internal lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// allowedTransitions lists every edge of the order state machine.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusPaid:    {OrderStatusRefunded},
}

// ParseOrderStatus rejects anything outside the closed set.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled, OrderStatusRefunded, OrderStatusFailed:
		return st, true
	}
	return "", false
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	_, ok := ParseOrderStatus(string(s))
	return ok
}

// CanTransitionTo returns true if target is reachable from s in a single step.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range allowedTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsFinal reports whether no transition leaves s.
func (s OrderStatus) IsFinal() bool {
	_, ok := ParseOrderStatus(string(s))
	return ok && len(allowedTransitions[s]) == 0
}

// ClientStatus is the three-valued view exposed to polling clients.
type ClientStatus string

const (
	ClientStatusSuccess ClientStatus = "SUCCESS"
	ClientStatusPending ClientStatus = "PENDING"
	ClientStatusFailed  ClientStatus = "FAILED"
)

// Project maps an internal status onto the client-facing view.
func (s OrderStatus) Project() ClientStatus {
	switch s {
	case OrderStatusPaid:
		return ClientStatusSuccess
	case OrderStatusCancelled, OrderStatusRefunded, OrderStatusFailed:
		return ClientStatusFailed
	default:
		return ClientStatusPending
	}
}

// OrderType distinguishes plain purchases from registration-via-payment.
type OrderType string

const (
	OrderTypeGeneral  OrderType = "GENERAL"
	OrderTypeRegister OrderType = "REGISTER"
)

// Order is a record of intent to pay a fixed amount. Rows are never deleted;
// only status and the timestamps tied to it change.
type Order struct {
	ID                uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNo           string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	Type              OrderType   `gorm:"type:varchar(16);not null;default:'GENERAL'" json:"type"`
	UserID            *uuid.UUID  `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Status            OrderStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	TotalAmount       int64       `gorm:"not null" json:"total_amount"` // minor units
	Subject           string      `gorm:"type:varchar(256);not null" json:"subject"`
	TradeBody         string      `gorm:"type:varchar(1024)" json:"trade_body,omitempty"`
	TradeNo           *string     `gorm:"type:varchar(128)" json:"trade_no,omitempty"`
	Gateway           string      `gorm:"type:varchar(32)" json:"gateway,omitempty"`
	Version           int64       `gorm:"not null;default:1" json:"version"`
	Phone             string      `gorm:"type:varchar(32)" json:"phone,omitempty"`
	PasswordHash      string      `gorm:"type:varchar(128)" json:"-"`
	ProvisionedUserID *string     `gorm:"type:varchar(64)" json:"provisioned_user_id,omitempty"`
	PaidAt            *time.Time  `json:"paid_at,omitempty"`
	CancelledAt       *time.Time  `json:"cancelled_at,omitempty"`
	RefundedAt        *time.Time  `json:"refunded_at,omitempty"`
	FailedAt          *time.Time  `json:"failed_at,omitempty"`
	CreatedAt         time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsRegister reports whether paying this order provisions a user.
func (o *Order) IsRegister() bool {
	return o.Type == OrderTypeRegister
}

// OwnedBy reports whether userID owns the order.
func (o *Order) OwnedBy(userID uuid.UUID) bool {
	return o.UserID != nil && *o.UserID == userID
}

// TransitionFields returns the column updates that accompany a move to target.
func TransitionFields(target OrderStatus, at time.Time) map[string]interface{} {
	fields := map[string]interface{}{}
	switch target {
	case OrderStatusPaid:
		fields["paid_at"] = at
	case OrderStatusCancelled:
		fields["cancelled_at"] = at
	case OrderStatusRefunded:
		fields["refunded_at"] = at
	case OrderStatusFailed:
		fields["failed_at"] = at
	}
	return fields
}
