package controllers

import (
	"net/http"
	"order-payment-service/middleware"
	"order-payment-service/models"
	"order-payment-service/services"
	"strconv"

	"github.com/gin-gonic/gin"
)

// OrderController handles the user-facing and admin order endpoints.
type OrderController struct {
	orders     services.OrderManager
	reconciler services.Reconciler
}

func NewOrderController(orders services.OrderManager, reconciler services.Reconciler) *OrderController {
	return &OrderController{orders: orders, reconciler: reconciler}
}

// CreateOrder handles POST /orders.
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}

	var req models.CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, svcErr := oc.orders.CreateOrder(ctx.Request.Context(), userID, &req)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"order": order})
}

// ListOrders handles GET /orders.
func (oc *OrderController) ListOrders(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	page, limit := parsePaginationParams(ctx)

	resp, svcErr := oc.orders.ListUserOrders(ctx.Request.Context(), userID, page, limit)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetOrder handles GET /orders/:orderNo.
func (oc *OrderController) GetOrder(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}

	order, svcErr := oc.orders.GetOrder(ctx.Request.Context(), userID, ctx.Param("orderNo"))
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// Pay handles POST /orders/:orderNo/pay. The body is optional.
func (oc *OrderController) Pay(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	req, ok := bindOptionalSession(ctx)
	if !ok {
		return
	}

	form, svcErr := oc.orders.CreatePaymentSession(ctx.Request.Context(), userID, ctx.Param("orderNo"), req)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"payment": form})
}

// Cancel handles POST /orders/:orderNo/cancel.
func (oc *OrderController) Cancel(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}

	actor := services.Actor{UserID: userID, IsAdmin: middleware.IsAdmin(ctx)}
	result, svcErr := oc.reconciler.Cancel(ctx.Request.Context(), actor, ctx.Param("orderNo"))
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// Status handles GET /orders/:orderNo/status and GET /register-orders/:orderNo/status.
func (oc *OrderController) Status(ctx *gin.Context) {
	view, svcErr := oc.reconciler.QueryStatus(ctx.Request.Context(), ctx.Param("orderNo"))
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// CreateRegisterOrder handles POST /register-orders.
func (oc *OrderController) CreateRegisterOrder(ctx *gin.Context) {
	var req models.CreateRegisterOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, svcErr := oc.orders.CreateRegisterOrder(ctx.Request.Context(), &req)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"order": order})
}

// RegisterPay handles POST /register-orders/:orderNo/pay.
func (oc *OrderController) RegisterPay(ctx *gin.Context) {
	req, ok := bindOptionalSession(ctx)
	if !ok {
		return
	}

	form, svcErr := oc.orders.CreateRegisterPaymentSession(ctx.Request.Context(), ctx.Param("orderNo"), req)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"payment": form})
}

// AdminListOrders handles GET /admin/orders.
func (oc *OrderController) AdminListOrders(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)

	resp, svcErr := oc.orders.ListAllOrders(ctx.Request.Context(), page, limit)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// AdminRefund handles POST /admin/orders/:orderNo/refund.
func (oc *OrderController) AdminRefund(ctx *gin.Context) {
	userID, _ := middleware.GetUserID(ctx)
	actor := services.Actor{UserID: userID, IsAdmin: middleware.IsAdmin(ctx)}

	result, svcErr := oc.reconciler.Refund(ctx.Request.Context(), actor, ctx.Param("orderNo"))
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// AdminNotifications handles GET /admin/orders/:orderNo/notifications.
func (oc *OrderController) AdminNotifications(ctx *gin.Context) {
	userID, _ := middleware.GetUserID(ctx)
	actor := services.Actor{UserID: userID, IsAdmin: middleware.IsAdmin(ctx)}

	items, svcErr := oc.reconciler.ListNotifications(ctx.Request.Context(), actor, ctx.Param("orderNo"))
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notifications": items})
}

func requireUser(ctx *gin.Context) (string, bool) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "UNAUTHORIZED"})
		return "", false
	}
	return userID, true
}

func bindOptionalSession(ctx *gin.Context) (*models.PaymentSessionRequest, bool) {
	if ctx.Request.ContentLength == 0 {
		return nil, true
	}
	var req models.PaymentSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return nil, false
	}
	return &req, true
}

func respondError(ctx *gin.Context, svcErr *services.ServiceError) {
	ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "code": svcErr.Code})
}

// parsePaginationParams extracts and validates pagination parameters.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const MaxLimit = 100
	const DefaultPage = 1
	const DefaultLimit = 10

	pageInt := DefaultPage
	limitInt := DefaultLimit

	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "10")); err == nil && l > 0 {
		limitInt = l
		if limitInt > MaxLimit {
			limitInt = MaxLimit
		}
	}
	return pageInt, limitInt
}
