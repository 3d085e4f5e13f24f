package services

import (
	"context"
	"errors"
	"order-payment-service/gateway"
	"order-payment-service/models"
	"order-payment-service/repository"
	"time"

	aws_pkg "order-payment-service/pkg/aws"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, evt models.OrderStatusChangedEvent) error
}

// Actor identifies who asked for an administrative transition.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// TransitionResult describes what a transition request did. Applied is true
// only for the caller whose conditional write moved the order.
type TransitionResult struct {
	OrderNo            string             `json:"order_no"`
	From               models.OrderStatus `json:"from,omitempty"`
	Status             models.OrderStatus `json:"status"`
	Applied            bool               `json:"applied"`
	Replayed           bool               `json:"replayed"`
	Ignored            bool               `json:"ignored"`
	ProvisionedUserID  string             `json:"provisioned_user_id,omitempty"`
	ProvisioningFailed bool               `json:"provisioning_failed,omitempty"`
}

// ReconciliationService is the only writer of order status. Every write is a
// compare-and-swap on the status read just before it.
type ReconciliationService struct {
	orderRepo   repository.OrderRepository
	notifRepo   repository.NotificationRepository
	gateway     gateway.PaymentGateway
	provisioner UserProvisioner
	publisher   EventPublisher
	cache       StatusCache
	metrics     MetricsRecorder
	logger      *zap.Logger
	now         func() time.Time
}

type ReconciliationDeps struct {
	Orders        repository.OrderRepository
	Notifications repository.NotificationRepository
	Gateway       gateway.PaymentGateway
	Provisioner   UserProvisioner
	Publisher     EventPublisher
	Cache         StatusCache
	Metrics       MetricsRecorder
}

func NewReconciliationService(deps ReconciliationDeps, logger *zap.Logger) *ReconciliationService {
	return &ReconciliationService{
		orderRepo:   deps.Orders,
		notifRepo:   deps.Notifications,
		gateway:     deps.Gateway,
		provisioner: deps.Provisioner,
		publisher:   deps.Publisher,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// GatewayName reports which provider notifications are verified against.
func (s *ReconciliationService) GatewayName() string {
	return s.gateway.Name()
}

// Acknowledge renders the provider-specific reply for a notification.
func (s *ReconciliationService) Acknowledge(ok bool) (string, []byte) {
	return s.gateway.Acknowledge(ok)
}

// HandleNotification is the push path: verify, then apply. Nothing reaches
// the state machine unless the gateway verified it.
func (s *ReconciliationService) HandleNotification(ctx context.Context, raw models.RawNotification) (*TransitionResult, *ServiceError) {
	audit := s.recordReceived(ctx, raw)

	evt, err := s.gateway.VerifyNotification(ctx, raw)
	if err != nil {
		s.logger.Warn("Payment notification rejected",
			zap.String("gateway", s.gateway.Name()),
			zap.Error(err),
		)
		recordCount(ctx, s.metrics, aws_pkg.MetricNotificationRejected, map[string]string{"Reason": "verification"})
		s.recordOutcome(ctx, audit, models.NotificationRejected, err.Error())
		if errors.Is(err, gateway.ErrVerificationFailed) {
			return nil, errVerification()
		}
		return nil, errInternal("Failed to verify notification")
	}

	if audit != nil {
		audit.OutTradeNo = evt.OutTradeNo
		audit.TradeNo = evt.TradeNo
		audit.TradeStatus = evt.TradeStatus
	}

	result, svcErr := s.ApplyEvent(ctx, evt)
	switch {
	case svcErr != nil:
		s.recordOutcome(ctx, audit, models.NotificationRejected, svcErr.Code)
	case result.Ignored:
		s.recordOutcome(ctx, audit, models.NotificationIgnored, evt.TradeStatus)
	case result.Replayed:
		s.recordOutcome(ctx, audit, models.NotificationReplayed, "")
	default:
		s.recordOutcome(ctx, audit, models.NotificationApplied, "")
	}
	return result, svcErr
}

// ApplyEvent runs a verified event through the state machine.
func (s *ReconciliationService) ApplyEvent(ctx context.Context, evt *models.VerifiedEvent) (*TransitionResult, *ServiceError) {
	if evt.Target == "" {
		s.logger.Info("Notification carries no transition",
			zap.String("out_trade_no", evt.OutTradeNo),
			zap.String("trade_status", evt.TradeStatus),
		)
		return &TransitionResult{OrderNo: evt.OutTradeNo, Ignored: true}, nil
	}

	order, svcErr := s.load(ctx, evt.OutTradeNo)
	if svcErr != nil {
		if svcErr.Code == CodeNotFound {
			s.logger.Warn("Notification for unknown order", zap.String("out_trade_no", evt.OutTradeNo))
		}
		return nil, svcErr
	}

	if evt.TotalAmount != order.TotalAmount {
		s.logger.Error("Notification amount does not match order",
			zap.String("order_no", order.OrderNo),
			zap.Int64("notified", evt.TotalAmount),
			zap.Int64("stored", order.TotalAmount),
			zap.String("trade_no", evt.TradeNo),
		)
		recordCount(ctx, s.metrics, aws_pkg.MetricAmountMismatch, nil)
		return nil, errAmountMismatch()
	}

	var extra map[string]interface{}
	if evt.Target == models.OrderStatusPaid && evt.TradeNo != "" {
		extra = map[string]interface{}{"trade_no": evt.TradeNo}
	}
	return s.transition(ctx, order, evt.Target, extra, evt.TradeNo)
}

// QueryStatus is the pull path. It reads only.
func (s *ReconciliationService) QueryStatus(ctx context.Context, orderNo string) (*models.StatusView, *ServiceError) {
	if s.cache != nil {
		view, err := s.cache.Get(ctx, orderNo)
		if err != nil {
			s.logger.Warn("Status cache read failed", zap.String("order_no", orderNo), zap.Error(err))
		} else if view != nil {
			recordCount(ctx, s.metrics, aws_pkg.MetricStatusCacheHits, nil)
			return view, nil
		}
		recordCount(ctx, s.metrics, aws_pkg.MetricStatusCacheMisses, nil)
	}

	order, svcErr := s.load(ctx, orderNo)
	if svcErr != nil {
		return nil, svcErr
	}
	view := buildStatusView(order)

	// Only final statuses are cached: for any other status a concurrent winner
	// could invalidate before this Set lands and leave a stale entry behind.
	if s.cache != nil && order.Status.IsFinal() {
		if err := s.cache.Set(ctx, view); err != nil {
			s.logger.Warn("Status cache write failed", zap.String("order_no", orderNo), zap.Error(err))
		}
	}
	return view, nil
}

// Cancel moves a PENDING order to CANCELLED on behalf of its owner or an admin.
func (s *ReconciliationService) Cancel(ctx context.Context, actor Actor, orderNo string) (*TransitionResult, *ServiceError) {
	order, svcErr := s.load(ctx, orderNo)
	if svcErr != nil {
		return nil, svcErr
	}
	if !actor.IsAdmin {
		caller, err := uuid.Parse(actor.UserID)
		if err != nil || !order.OwnedBy(caller) {
			s.logger.Warn("Cancel requested for foreign order",
				zap.String("order_no", orderNo),
				zap.String("caller", actor.UserID),
			)
			recordCount(ctx, s.metrics, aws_pkg.MetricOwnershipViolation, nil)
			return nil, errOwnership()
		}
	}
	return s.transition(ctx, order, models.OrderStatusCancelled, nil, "")
}

// Refund records that a PAID order has been refunded. Admin only.
func (s *ReconciliationService) Refund(ctx context.Context, actor Actor, orderNo string) (*TransitionResult, *ServiceError) {
	if !actor.IsAdmin {
		return nil, errOwnership()
	}
	order, svcErr := s.load(ctx, orderNo)
	if svcErr != nil {
		return nil, svcErr
	}
	return s.transition(ctx, order, models.OrderStatusRefunded, nil, "")
}

// ListNotifications returns the callback audit trail for an order number,
// oldest first. Callbacks for unknown orders are logged too, so the order
// need not exist. Admin only.
func (s *ReconciliationService) ListNotifications(ctx context.Context, actor Actor, orderNo string) ([]models.PaymentNotification, *ServiceError) {
	if !actor.IsAdmin {
		return nil, errOwnership()
	}
	if s.notifRepo == nil {
		return []models.PaymentNotification{}, nil
	}
	items, err := s.notifRepo.FindByOutTradeNo(ctx, orderNo)
	if err != nil {
		s.logger.Error("Failed to list payment notifications", zap.String("order_no", orderNo), zap.Error(err))
		return nil, errInternal("Failed to fetch notifications")
	}
	if items == nil {
		items = []models.PaymentNotification{}
	}
	return items, nil
}

func (s *ReconciliationService) transition(ctx context.Context, order *models.Order, target models.OrderStatus, extra map[string]interface{}, tradeNo string) (*TransitionResult, *ServiceError) {
	from := order.Status
	if from == target {
		return s.replay(ctx, order.OrderNo, target), nil
	}
	if !from.CanTransitionTo(target) {
		s.logger.Warn("Rejected order transition",
			zap.String("order_no", order.OrderNo),
			zap.String("from", string(from)),
			zap.String("to", string(target)),
		)
		return nil, errInvalidTransition(from, target)
	}

	fields := models.TransitionFields(target, s.now())
	for k, v := range extra {
		fields[k] = v
	}

	won, err := s.orderRepo.CompareAndSetStatus(ctx, order.OrderNo, from, target, fields)
	if err != nil {
		s.logger.Error("Order status update failed", zap.String("order_no", order.OrderNo), zap.Error(err))
		return nil, errInternal("Failed to update order")
	}
	if !won {
		current, svcErr := s.load(ctx, order.OrderNo)
		if svcErr != nil {
			return nil, svcErr
		}
		if current.Status == target {
			return s.replay(ctx, order.OrderNo, target), nil
		}
		s.logger.Warn("Lost order status race",
			zap.String("order_no", order.OrderNo),
			zap.String("expected", string(from)),
			zap.String("current", string(current.Status)),
			zap.String("to", string(target)),
		)
		return nil, errInvalidTransition(current.Status, target)
	}

	s.logger.Info("Order status changed",
		zap.String("order_no", order.OrderNo),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)

	result := &TransitionResult{OrderNo: order.OrderNo, From: from, Status: target, Applied: true}
	s.afterTransition(ctx, order, from, target, tradeNo, result)
	return result, nil
}

// afterTransition runs the side effects reserved for the CAS winner.
func (s *ReconciliationService) afterTransition(ctx context.Context, order *models.Order, from, to models.OrderStatus, tradeNo string, result *TransitionResult) {
	if order.IsRegister() && to == models.OrderStatusPaid {
		s.provision(ctx, order, result)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, order.OrderNo); err != nil {
			s.logger.Warn("Status cache invalidation failed", zap.String("order_no", order.OrderNo), zap.Error(err))
		}
	}

	if s.publisher != nil {
		evt := models.OrderStatusChangedEvent{
			OrderNo:    order.OrderNo,
			OrderType:  order.Type,
			From:       from,
			To:         to,
			Amount:     order.TotalAmount,
			TradeNo:    tradeNo,
			OccurredAt: s.now().UTC(),
		}
		if order.UserID != nil {
			evt.UserID = order.UserID.String()
		} else if result.ProvisionedUserID != "" {
			evt.UserID = result.ProvisionedUserID
		}
		if err := s.publisher.PublishStatusChanged(ctx, evt); err != nil {
			s.logger.Warn("Order status event not fully delivered", zap.String("order_no", order.OrderNo), zap.Error(err))
		}
	}

	switch to {
	case models.OrderStatusPaid:
		recordCount(ctx, s.metrics, aws_pkg.MetricPaymentSucceeded, map[string]string{"Gateway": s.gateway.Name()})
	case models.OrderStatusFailed:
		recordCount(ctx, s.metrics, aws_pkg.MetricPaymentFailed, map[string]string{"Gateway": s.gateway.Name()})
	case models.OrderStatusCancelled:
		recordCount(ctx, s.metrics, aws_pkg.MetricOrdersCancelled, nil)
	case models.OrderStatusRefunded:
		recordCount(ctx, s.metrics, aws_pkg.MetricOrdersRefunded, nil)
	}
}

// provision makes the single provisioning attempt for a registration order.
// A failure leaves the order PAID; it is not retried by later notifications.
func (s *ReconciliationService) provision(ctx context.Context, order *models.Order, result *TransitionResult) {
	if s.provisioner == nil {
		s.logger.Error("No user provisioner configured", zap.String("order_no", order.OrderNo))
		result.ProvisioningFailed = true
		return
	}

	userID, err := s.provisioner.Provision(ctx, ProvisionRequest{
		OrderNo:      order.OrderNo,
		Phone:        order.Phone,
		PasswordHash: order.PasswordHash,
	})
	if err != nil {
		s.logger.Error("User provisioning failed",
			zap.String("order_no", order.OrderNo),
			zap.String("phone", order.Phone),
			zap.Error(err),
		)
		recordCount(ctx, s.metrics, aws_pkg.MetricProvisioningFailed, nil)
		result.ProvisioningFailed = true
		return
	}

	result.ProvisionedUserID = userID
	if _, err := s.orderRepo.SetProvisionedUser(ctx, order.OrderNo, userID); err != nil {
		s.logger.Error("Failed to record provisioned user",
			zap.String("order_no", order.OrderNo),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	s.logger.Info("User provisioned for registration order",
		zap.String("order_no", order.OrderNo),
		zap.String("user_id", userID),
	)
	recordCount(ctx, s.metrics, aws_pkg.MetricUsersProvisioned, nil)
}

func (s *ReconciliationService) replay(ctx context.Context, orderNo string, status models.OrderStatus) *TransitionResult {
	s.logger.Info("Idempotent replay", zap.String("order_no", orderNo), zap.String("status", string(status)))
	recordCount(ctx, s.metrics, aws_pkg.MetricNotificationReplayed, nil)
	return &TransitionResult{OrderNo: orderNo, From: status, Status: status, Replayed: true}
}

func (s *ReconciliationService) load(ctx context.Context, orderNo string) (*models.Order, *ServiceError) {
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

func (s *ReconciliationService) recordReceived(ctx context.Context, raw models.RawNotification) *models.PaymentNotification {
	if s.notifRepo == nil {
		return nil
	}
	n := &models.PaymentNotification{
		Gateway: s.gateway.Name(),
		Payload: string(raw.Body),
		Outcome: models.NotificationReceived,
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		s.logger.Warn("Failed to store payment notification", zap.Error(err))
		return nil
	}
	return n
}

func (s *ReconciliationService) recordOutcome(ctx context.Context, n *models.PaymentNotification, outcome models.NotificationOutcome, reason string) {
	if n == nil {
		return
	}
	n.Outcome = outcome
	n.Reason = reason
	if err := s.notifRepo.UpdateOutcome(ctx, n); err != nil {
		s.logger.Warn("Failed to update payment notification", zap.String("id", n.ID.String()), zap.Error(err))
	}
}

func buildStatusView(order *models.Order) *models.StatusView {
	view := &models.StatusView{
		OrderNo: order.OrderNo,
		Status:  order.Status.Project(),
		Type:    order.Type,
	}
	if order.IsRegister() {
		view.Phone = order.Phone
		if order.ProvisionedUserID != nil {
			view.UserID = *order.ProvisionedUserID
		}
	}
	return view
}
