package services

import (
	"context"
	"order-payment-service/models"
)

// OrderManager is the order-facing API consumed by the HTTP layer.
type OrderManager interface {
	CreateOrder(ctx context.Context, userID string, req *models.CreateOrderRequest) (*models.Order, *ServiceError)
	CreateRegisterOrder(ctx context.Context, req *models.CreateRegisterOrderRequest) (*models.Order, *ServiceError)
	CreatePaymentSession(ctx context.Context, userID, orderNo string, req *models.PaymentSessionRequest) (*models.PaymentForm, *ServiceError)
	CreateRegisterPaymentSession(ctx context.Context, orderNo string, req *models.PaymentSessionRequest) (*models.PaymentForm, *ServiceError)
	GetOrder(ctx context.Context, userID, orderNo string) (*models.Order, *ServiceError)
	ListUserOrders(ctx context.Context, userID string, page, limit int) (*models.OrderListResponse, *ServiceError)
	ListAllOrders(ctx context.Context, page, limit int) (*models.OrderListResponse, *ServiceError)
}

// Reconciler owns every status transition and the status read path.
type Reconciler interface {
	NotificationHandler
	Acknowledge(ok bool) (string, []byte)
	QueryStatus(ctx context.Context, orderNo string) (*models.StatusView, *ServiceError)
	Cancel(ctx context.Context, actor Actor, orderNo string) (*TransitionResult, *ServiceError)
	Refund(ctx context.Context, actor Actor, orderNo string) (*TransitionResult, *ServiceError)
	ListNotifications(ctx context.Context, actor Actor, orderNo string) ([]models.PaymentNotification, *ServiceError)
}

var (
	_ OrderManager = (*OrderService)(nil)
	_ Reconciler   = (*ReconciliationService)(nil)
)
