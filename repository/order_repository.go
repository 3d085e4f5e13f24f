package repository

import (
	"context"
	"errors"
	"order-payment-service/models"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrOrderNotFound is returned when no order carries the requested number.
	ErrOrderNotFound = errors.New("order not found")
	// ErrDuplicateOrderNo is returned when an order number is already taken.
	ErrDuplicateOrderNo = errors.New("order number already exists")
)

// OrderRepository is the transactional store for orders. Every status write
// goes through CompareAndSetStatus; there is no unconditional status update.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByOrderNo(ctx context.Context, orderNo string) (*models.Order, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error)
	FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error)
	// CompareAndSetStatus moves the order from expected to next in a single
	// conditional write and reports whether this call performed the move.
	CompareAndSetStatus(ctx context.Context, orderNo string, expected, next models.OrderStatus, fields map[string]interface{}) (bool, error)
	// SetProvisionedUser records the provisioned account once; later calls are no-ops.
	SetProvisionedUser(ctx context.Context, orderNo, userID string) (bool, error)
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository.
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts a new order.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateOrderNo
		}
		return err
	}
	return nil
}

// FindByOrderNo retrieves an order by its trade number.
func (r *GormOrderRepository) FindByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("order_no = ?", orderNo).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindByUserID retrieves orders for a specific user with pagination.
func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ?", userID)
	return paginate(query, page, limit)
}

// FindAll retrieves all orders with pagination.
func (r *GormOrderRepository) FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	return paginate(r.db.WithContext(ctx).Model(&models.Order{}), page, limit)
}

func paginate(query *gorm.DB, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Session(&gorm.Session{}).
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// CompareAndSetStatus issues UPDATE ... WHERE order_no = ? AND status = ?.
// Exactly one of any number of concurrent callers with the same expected
// status observes a true result.
func (r *GormOrderRepository) CompareAndSetStatus(ctx context.Context, orderNo string, expected, next models.OrderStatus, fields map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = next
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_no = ? AND status = ?", orderNo, expected).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetProvisionedUser stores the provisioned user id if none is recorded yet.
func (r *GormOrderRepository) SetProvisionedUser(ctx context.Context, orderNo, userID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_no = ? AND provisioned_user_id IS NULL", orderNo).
		Updates(map[string]interface{}{
			"provisioned_user_id": userID,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
