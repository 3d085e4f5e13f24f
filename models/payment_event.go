package models

import "time"

// TradeParams is what a gateway needs to build a payable form.
type TradeParams struct {
	OutTradeNo  string
	TotalAmount int64 // minor units
	Subject     string
	Body        string
}

// FormKind tells the client how to render a PaymentForm.
type FormKind string

const (
	FormKindHTML     FormKind = "html"
	FormKindRedirect FormKind = "redirect"
)

// PaymentForm is the opaque provider payload handed back to the client.
type PaymentForm struct {
	Gateway string   `json:"gateway"`
	Kind    FormKind `json:"kind"`
	Content string   `json:"content"`
}

// RawNotification is an unverified callback exactly as received.
type RawNotification struct {
	Body        []byte
	ContentType string
	Headers     map[string]string
}

// VerifiedEvent is a gateway notification whose signature has been checked.
// Target is empty when the provider status implies no transition.
type VerifiedEvent struct {
	OutTradeNo  string
	TradeNo     string
	TradeStatus string
	Target      OrderStatus
	TotalAmount int64
}

// OrderStatusChangedEvent is published after a successful transition.
type OrderStatusChangedEvent struct {
	Type       string      `json:"type"` // "order_status_changed"
	OrderNo    string      `json:"order_no"`
	OrderType  OrderType   `json:"order_type"`
	UserID     string      `json:"user_id,omitempty"`
	From       OrderStatus `json:"from"`
	To         OrderStatus `json:"to"`
	Amount     int64       `json:"amount"`
	TradeNo    string      `json:"trade_no,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}
