package services

import (
	"context"
	"errors"
	"fmt"
	"order-payment-service/gateway"
	"order-payment-service/models"
	"order-payment-service/repository"
	"strings"
	"time"

	aws_pkg "order-payment-service/pkg/aws"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MetricsRecorder is satisfied by *aws.MetricsClient.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// OrderService creates orders and issues payment forms. It never changes an
// order's status.
type OrderService struct {
	orderRepo repository.OrderRepository
	gateway   gateway.PaymentGateway
	metrics   MetricsRecorder
	logger    *zap.Logger
	now       func() time.Time
}

func NewOrderService(orderRepo repository.OrderRepository, gw gateway.PaymentGateway, metrics MetricsRecorder, logger *zap.Logger) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		gateway:   gw,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateOrder stores a PENDING general order owned by userID.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req *models.CreateOrderRequest) (*models.Order, *ServiceError) {
	owner, err := uuid.Parse(userID)
	if err != nil {
		return nil, errValidation("Invalid user ID format")
	}

	order := &models.Order{
		OrderNo:     s.orderNo("ORD", req.OrderNo),
		Type:        models.OrderTypeGeneral,
		UserID:      &owner,
		Status:      models.OrderStatusPending,
		TotalAmount: req.TotalAmount,
		Subject:     req.Subject,
		TradeBody:   req.TradeBody,
		Gateway:     s.gateway.Name(),
		Version:     1,
	}
	if svcErr := s.create(ctx, order); svcErr != nil {
		return nil, svcErr
	}
	return order, nil
}

// CreateRegisterOrder stores an anonymous PENDING order carrying the
// credentials of the account to provision once it is paid.
func (s *OrderService) CreateRegisterOrder(ctx context.Context, req *models.CreateRegisterOrderRequest) (*models.Order, *ServiceError) {
	if err := ValidateRegisterPassword(req.Password); err != nil {
		return nil, errValidation(err.Error())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Failed to hash registration password", zap.Error(err))
		return nil, errInternal("Failed to create order")
	}

	order := &models.Order{
		OrderNo:      s.orderNo("REG", req.OrderNo),
		Type:         models.OrderTypeRegister,
		Status:       models.OrderStatusPending,
		TotalAmount:  req.TotalAmount,
		Subject:      req.Subject,
		TradeBody:    req.TradeBody,
		Gateway:      s.gateway.Name(),
		Version:      1,
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: string(hash),
	}
	if svcErr := s.create(ctx, order); svcErr != nil {
		return nil, svcErr
	}
	return order, nil
}

func (s *OrderService) create(ctx context.Context, order *models.Order) *ServiceError {
	if err := s.orderRepo.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrderNo) {
			return errDuplicate(order.OrderNo)
		}
		s.logger.Error("Failed to create order", zap.String("order_no", order.OrderNo), zap.Error(err))
		return errInternal("Failed to create order")
	}

	s.logger.Info("Order created",
		zap.String("order_no", order.OrderNo),
		zap.String("type", string(order.Type)),
		zap.Int64("total_amount", order.TotalAmount),
	)
	recordCount(ctx, s.metrics, aws_pkg.MetricOrdersCreated, map[string]string{"Type": string(order.Type)})
	return nil
}

// CreatePaymentSession returns a payable form for a PENDING order owned by
// userID. Amount, subject and body always come from the stored order.
func (s *OrderService) CreatePaymentSession(ctx context.Context, userID, orderNo string, req *models.PaymentSessionRequest) (*models.PaymentForm, *ServiceError) {
	order, svcErr := s.load(ctx, orderNo)
	if svcErr != nil {
		return nil, svcErr
	}

	caller, err := uuid.Parse(userID)
	if err != nil || !order.OwnedBy(caller) {
		s.logger.Warn("Payment session requested for foreign order",
			zap.String("order_no", orderNo),
			zap.String("caller", userID),
		)
		recordCount(ctx, s.metrics, aws_pkg.MetricOwnershipViolation, nil)
		return nil, errOwnership()
	}
	return s.issueForm(ctx, order, req)
}

// CreateRegisterPaymentSession is CreatePaymentSession for anonymous
// registration orders.
func (s *OrderService) CreateRegisterPaymentSession(ctx context.Context, orderNo string, req *models.PaymentSessionRequest) (*models.PaymentForm, *ServiceError) {
	order, svcErr := s.load(ctx, orderNo)
	if svcErr != nil {
		return nil, svcErr
	}
	if !order.IsRegister() {
		// Do not reveal that a general order with this number exists.
		return nil, errNotFound(orderNo)
	}
	return s.issueForm(ctx, order, req)
}

func (s *OrderService) issueForm(ctx context.Context, order *models.Order, req *models.PaymentSessionRequest) (*models.PaymentForm, *ServiceError) {
	if order.Status != models.OrderStatusPending {
		return nil, errNotPayable(order.Status)
	}
	if req != nil && req.TotalAmount != nil && *req.TotalAmount != order.TotalAmount {
		s.logger.Warn("Payment session amount differs from order",
			zap.String("order_no", order.OrderNo),
			zap.Int64("requested", *req.TotalAmount),
			zap.Int64("stored", order.TotalAmount),
		)
		return nil, errAmountMismatch()
	}

	form, err := s.gateway.CreatePaymentForm(ctx, models.TradeParams{
		OutTradeNo:  order.OrderNo,
		TotalAmount: order.TotalAmount,
		Subject:     order.Subject,
		Body:        order.TradeBody,
	})
	if err != nil {
		s.logger.Warn("Payment form creation failed",
			zap.String("order_no", order.OrderNo),
			zap.String("gateway", s.gateway.Name()),
			zap.Error(err),
		)
		return nil, errGateway()
	}
	return form, nil
}

// GetOrder returns an order visible to userID.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderNo string) (*models.Order, *ServiceError) {
	order, svcErr := s.load(ctx, orderNo)
	if svcErr != nil {
		return nil, svcErr
	}
	caller, err := uuid.Parse(userID)
	if err != nil || !order.OwnedBy(caller) {
		return nil, errNotFound(orderNo)
	}
	return order, nil
}

// ListUserOrders retrieves paginated orders for a specific user
func (s *OrderService) ListUserOrders(ctx context.Context, userID string, page, limit int) (*models.OrderListResponse, *ServiceError) {
	owner, err := uuid.Parse(userID)
	if err != nil {
		return nil, errValidation("Invalid user ID format")
	}

	orders, total, err := s.orderRepo.FindByUserID(ctx, owner, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch orders", zap.String("user_id", userID), zap.Error(err))
		return nil, errInternal("Failed to fetch orders")
	}
	return buildListResponse(orders, total, page, limit), nil
}

// ListAllOrders is the administrative listing.
func (s *OrderService) ListAllOrders(ctx context.Context, page, limit int) (*models.OrderListResponse, *ServiceError) {
	orders, total, err := s.orderRepo.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch all orders", zap.Error(err))
		return nil, errInternal("Failed to fetch orders")
	}
	return buildListResponse(orders, total, page, limit), nil
}

func (s *OrderService) load(ctx context.Context, orderNo string) (*models.Order, *ServiceError) {
	order, err := s.orderRepo.FindByOrderNo(ctx, orderNo)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, errNotFound(orderNo)
		}
		s.logger.Error("Failed to load order", zap.String("order_no", orderNo), zap.Error(err))
		return nil, errInternal("Failed to fetch order")
	}
	return order, nil
}

// orderNo keeps a client-supplied number or generates PREFIX-time-random.
func (s *OrderService) orderNo(prefix, requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return fmt.Sprintf("%s-%s-%s", prefix, s.now().UTC().Format("20060102150405"), suffix)
}

func buildListResponse(orders []models.Order, total int64, page, limit int) *models.OrderListResponse {
	if orders == nil {
		orders = []models.Order{}
	}
	totalPages := calculateTotalPages(total, limit)
	return &models.OrderListResponse{
		Orders: orders,
		Meta: models.MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  totalPages,
			HasMore:     int64(page) < totalPages,
		},
	}
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}

func recordCount(ctx context.Context, m MetricsRecorder, name string, dims map[string]string) {
	if m == nil {
		return
	}
	_ = m.RecordCount(ctx, name, dims)
}
