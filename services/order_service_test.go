package services_test

import (
	"context"
	"errors"
	"order-payment-service/gateway"
	"order-payment-service/models"
	"order-payment-service/services"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newOrderService(repo *memOrderRepo, gw *stubGateway) *services.OrderService {
	return services.NewOrderService(repo, gw, nil, zap.NewNop())
}

func TestCreateOrder_Pending(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newOrderService(repo, &stubGateway{})
	userID := uuid.NewString()

	order, svcErr := svc.CreateOrder(context.Background(), userID, &models.CreateOrderRequest{
		TotalAmount: 100,
		Subject:     "Go course",
	})
	require.Nil(t, svcErr)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, strings.HasPrefix(order.OrderNo, "ORD-"))
	assert.Equal(t, userID, order.UserID.String())
	assert.Equal(t, "stub", order.Gateway)
}

func TestCreateOrder_DuplicateOrderNo(t *testing.T) {
	repo := newMemOrderRepo(pendingOrder("ORD-1", 100))
	svc := newOrderService(repo, &stubGateway{})

	_, svcErr := svc.CreateOrder(context.Background(), uuid.NewString(), &models.CreateOrderRequest{
		OrderNo:     "ORD-1",
		TotalAmount: 100,
		Subject:     "x",
	})
	require.NotNil(t, svcErr)
	assert.Equal(t, 409, svcErr.StatusCode)
	assert.Equal(t, services.CodeDuplicateOrder, svcErr.Code)
}

func TestCreateOrder_InvalidUser(t *testing.T) {
	svc := newOrderService(newMemOrderRepo(), &stubGateway{})

	_, svcErr := svc.CreateOrder(context.Background(), "not-a-uuid", &models.CreateOrderRequest{TotalAmount: 1, Subject: "x"})
	require.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
}

func TestCreateRegisterOrder_HashesPassword(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newOrderService(repo, &stubGateway{})

	order, svcErr := svc.CreateRegisterOrder(context.Background(), &models.CreateRegisterOrderRequest{
		Phone:       "13800000000",
		Password:    "s3cretPass",
		TotalAmount: 990,
		Subject:     "membership",
	})
	require.Nil(t, svcErr)
	assert.True(t, order.IsRegister())
	assert.Nil(t, order.UserID)
	assert.True(t, strings.HasPrefix(order.OrderNo, "REG-"))
	assert.NotEqual(t, "s3cretPass", order.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(order.PasswordHash), []byte("s3cretPass")))
}

func TestCreateRegisterOrder_WeakPassword(t *testing.T) {
	svc := newOrderService(newMemOrderRepo(), &stubGateway{})

	_, svcErr := svc.CreateRegisterOrder(context.Background(), &models.CreateRegisterOrderRequest{
		Phone:       "13800000000",
		Password:    "password",
		TotalAmount: 990,
		Subject:     "membership",
	})
	require.NotNil(t, svcErr)
	assert.Equal(t, services.CodeValidationFailed, svcErr.Code)
}

func TestCreatePaymentSession_Success(t *testing.T) {
	order := pendingOrder("ORD-1", 100)
	gw := &stubGateway{}
	svc := newOrderService(newMemOrderRepo(order), gw)

	form, svcErr := svc.CreatePaymentSession(context.Background(), order.UserID.String(), "ORD-1", nil)
	require.Nil(t, svcErr)
	assert.Equal(t, "https://pay.example.com/ORD-1", form.Content)
	assert.Equal(t, int32(1), gw.formCalls)
}

func TestCreatePaymentSession_ForeignOrderIssuesNoGatewayCall(t *testing.T) {
	order := pendingOrder("ORD-1", 100)
	gw := &stubGateway{}
	svc := newOrderService(newMemOrderRepo(order), gw)

	_, svcErr := svc.CreatePaymentSession(context.Background(), uuid.NewString(), "ORD-1", nil)
	require.NotNil(t, svcErr)
	assert.Equal(t, services.CodeOwnershipConflict, svcErr.Code)
	assert.Equal(t, 403, svcErr.StatusCode)
	assert.Equal(t, int32(0), gw.formCalls)
}

func TestCreatePaymentSession_NotPendingIssuesNoGatewayCall(t *testing.T) {
	for _, status := range []models.OrderStatus{
		models.OrderStatusPaid,
		models.OrderStatusCancelled,
		models.OrderStatusRefunded,
		models.OrderStatusFailed,
	} {
		order := pendingOrder("ORD-1", 100)
		order.Status = status
		gw := &stubGateway{}
		svc := newOrderService(newMemOrderRepo(order), gw)

		_, svcErr := svc.CreatePaymentSession(context.Background(), order.UserID.String(), "ORD-1", nil)
		require.NotNil(t, svcErr, status)
		assert.Equal(t, services.CodeInvalidStateTransition, svcErr.Code)
		assert.Equal(t, int32(0), gw.formCalls)
	}
}

func TestCreatePaymentSession_NotFound(t *testing.T) {
	svc := newOrderService(newMemOrderRepo(), &stubGateway{})

	_, svcErr := svc.CreatePaymentSession(context.Background(), uuid.NewString(), "ORD-404", nil)
	require.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
}

func TestCreatePaymentSession_AmountEchoMismatch(t *testing.T) {
	order := pendingOrder("ORD-1", 100)
	gw := &stubGateway{}
	svc := newOrderService(newMemOrderRepo(order), gw)

	tampered := int64(1)
	_, svcErr := svc.CreatePaymentSession(context.Background(), order.UserID.String(), "ORD-1",
		&models.PaymentSessionRequest{TotalAmount: &tampered})
	require.NotNil(t, svcErr)
	assert.Equal(t, services.CodeAmountMismatch, svcErr.Code)
	assert.Equal(t, int32(0), gw.formCalls)
}

func TestCreatePaymentSession_GatewayFailureKeepsOrderPending(t *testing.T) {
	order := pendingOrder("ORD-1", 100)
	repo := newMemOrderRepo(order)
	gw := &stubGateway{formErr: errors.Join(gateway.ErrGatewayUnavailable, errors.New("timeout"))}
	svc := newOrderService(repo, gw)

	_, svcErr := svc.CreatePaymentSession(context.Background(), order.UserID.String(), "ORD-1", nil)
	require.NotNil(t, svcErr)
	assert.Equal(t, 502, svcErr.StatusCode)
	assert.True(t, svcErr.Retryable())
	assert.Equal(t, models.OrderStatusPending, repo.get("ORD-1").Status)
}

func TestCreateRegisterPaymentSession_RejectsGeneralOrders(t *testing.T) {
	gw := &stubGateway{}
	svc := newOrderService(newMemOrderRepo(pendingOrder("ORD-1", 100), pendingRegisterOrder("REG-1", 100)), gw)

	_, svcErr := svc.CreateRegisterPaymentSession(context.Background(), "ORD-1", nil)
	require.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)

	form, svcErr := svc.CreateRegisterPaymentSession(context.Background(), "REG-1", nil)
	require.Nil(t, svcErr)
	assert.NotEmpty(t, form.Content)
	assert.Equal(t, int32(1), gw.formCalls)
}

func TestGetOrder_HidesForeignOrders(t *testing.T) {
	order := pendingOrder("ORD-1", 100)
	svc := newOrderService(newMemOrderRepo(order), &stubGateway{})

	_, svcErr := svc.GetOrder(context.Background(), uuid.NewString(), "ORD-1")
	require.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)

	got, svcErr := svc.GetOrder(context.Background(), order.UserID.String(), "ORD-1")
	require.Nil(t, svcErr)
	assert.Equal(t, "ORD-1", got.OrderNo)
}

func TestListUserOrders_Meta(t *testing.T) {
	order := pendingOrder("ORD-1", 100)
	svc := newOrderService(newMemOrderRepo(order), &stubGateway{})

	resp, svcErr := svc.ListUserOrders(context.Background(), order.UserID.String(), 1, 10)
	require.Nil(t, svcErr)
	assert.Len(t, resp.Orders, 1)
	assert.Equal(t, int64(1), resp.Meta.TotalOrders)
	assert.Equal(t, int64(1), resp.Meta.TotalPages)
	assert.False(t, resp.Meta.HasMore)
}

func TestValidateRegisterPassword(t *testing.T) {
	assert.NoError(t, services.ValidateRegisterPassword("s3cretPass"))
	assert.ErrorIs(t, services.ValidateRegisterPassword("short1"), services.ErrPasswordTooShort)
	assert.ErrorIs(t, services.ValidateRegisterPassword("onlyletters"), services.ErrPasswordNoNumber)
	assert.ErrorIs(t, services.ValidateRegisterPassword("123456789"), services.ErrPasswordNoLetter)
	assert.ErrorIs(t, services.ValidateRegisterPassword("aaab1234x"), services.ErrPasswordRepeating)
	assert.ErrorIs(t, services.ValidateRegisterPassword("Password1"), services.ErrPasswordCommon)
}
