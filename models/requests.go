package models

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	OrderNo     string `json:"order_no" binding:"omitempty,min=6,max=64"`
	TotalAmount int64  `json:"total_amount" binding:"required,gt=0"`
	Subject     string `json:"subject" binding:"required,max=256"`
	TradeBody   string `json:"trade_body" binding:"max=1024"`
}

// CreateRegisterOrderRequest is the payload for POST /register-orders.
type CreateRegisterOrderRequest struct {
	OrderNo     string `json:"order_no" binding:"omitempty,min=6,max=64"`
	Phone       string `json:"phone" binding:"required,min=6,max=32"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	TotalAmount int64  `json:"total_amount" binding:"required,gt=0"`
	Subject     string `json:"subject" binding:"required,max=256"`
	TradeBody   string `json:"trade_body" binding:"max=1024"`
}

// PaymentSessionRequest optionally echoes the payment metadata the client
// saw; a mismatch with the stored order is refused.
type PaymentSessionRequest struct {
	TotalAmount *int64 `json:"total_amount"`
	Subject     string `json:"subject"`
}

// StatusView is the response of the polling endpoints.
type StatusView struct {
	OrderNo string       `json:"order_no"`
	Status  ClientStatus `json:"status"`
	Type    OrderType    `json:"type"`
	Phone   string       `json:"phone,omitempty"`
	UserID  string       `json:"user_id,omitempty"`
}

// OrderListResponse wraps a page of orders.
type OrderListResponse struct {
	Orders []Order  `json:"orders"`
	Meta   MetaData `json:"meta"`
}

// MetaData describes a page.
type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}
