package repository_test

import (
	"context"
	"errors"
	"order-payment-service/models"
	"order-payment-service/repository"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func orderColumns() []string {
	return []string{"id", "order_no", "type", "user_id", "status", "total_amount", "subject", "version", "created_at", "updated_at"}
}

func TestCreate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	order := &models.Order{
		OrderNo:     "ORD-1",
		Type:        models.OrderTypeGeneral,
		Status:      models.OrderStatusPending,
		TotalAmount: 100,
		Subject:     "course",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), order)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateOrderNo(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "orders"`)).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_orders_order_no"`))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Order{OrderNo: "ORD-1", TotalAmount: 100, Subject: "x"})
	assert.ErrorIs(t, err, repository.ErrDuplicateOrderNo)
}

func TestFindByOrderNo_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	now := time.Now()
	userID := uuid.New()
	rows := sqlmock.NewRows(orderColumns()).
		AddRow(uuid.New(), "ORD-1", "GENERAL", userID, "PENDING", 100, "course", 1, now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(rows)

	order, err := repo.FindByOrderNo(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", order.OrderNo)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, int64(100), order.TotalAmount)
	assert.True(t, order.OwnedBy(userID))
}

func TestFindByOrderNo_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows(orderColumns()))

	order, err := repo.FindByOrderNo(context.Background(), "ORD-404")
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
	assert.Nil(t, order)
}

func TestCompareAndSetStatus_Wins(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.CompareAndSetStatus(context.Background(), "ORD-1",
		models.OrderStatusPending, models.OrderStatusPaid,
		models.TransitionFields(models.OrderStatusPaid, time.Now()))
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSetStatus_LosesWhenStatusMoved(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := repo.CompareAndSetStatus(context.Background(), "ORD-1",
		models.OrderStatusPending, models.OrderStatusPaid, nil)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCompareAndSetStatus_DBError(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	ok, err := repo.CompareAndSetStatus(context.Background(), "ORD-1",
		models.OrderStatusPending, models.OrderStatusCancelled, nil)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSetProvisionedUser_OnlyOnce(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	first, err := repo.SetProvisionedUser(context.Background(), "REG-1", "user-1")
	require.NoError(t, err)
	second, err := repo.SetProvisionedUser(context.Background(), "REG-1", "user-2")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestFindByUserID_Paginated(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow(uuid.New(), "ORD-3", "GENERAL", userID, "PAID", 300, "c", 2, now, now).
			AddRow(uuid.New(), "ORD-2", "GENERAL", userID, "PENDING", 200, "b", 1, now, now))

	orders, total, err := repo.FindByUserID(context.Background(), userID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, orders, 2)
	assert.Equal(t, "ORD-3", orders[0].OrderNo)
}
