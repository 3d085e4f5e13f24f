package routes

import (
	"net/http"
	"order-payment-service/controllers"
	"order-payment-service/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers groups the controllers and guards mounted by RegisterRoutes.
type Handlers struct {
	Orders   *controllers.OrderController
	Payments *controllers.PaymentController
	Auth     gin.HandlerFunc
	// PublicLimit throttles unauthenticated endpoints.
	PublicLimit gin.HandlerFunc
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	public := h.PublicLimit
	if public == nil {
		public = func(c *gin.Context) { c.Next() }
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "order-payment-service"})
	})

	orders := r.Group("/orders")
	orders.Use(h.Auth)
	{
		orders.POST("", h.Orders.CreateOrder)
		orders.GET("", h.Orders.ListOrders)
		orders.GET("/:orderNo", h.Orders.GetOrder)
		orders.POST("/:orderNo/pay", h.Orders.Pay)
		orders.POST("/:orderNo/cancel", h.Orders.Cancel)
	}
	r.GET("/orders/:orderNo/status", public, h.Orders.Status)

	register := r.Group("/register-orders")
	register.Use(public)
	{
		register.POST("", h.Orders.CreateRegisterOrder)
		register.POST("/:orderNo/pay", h.Orders.RegisterPay)
		register.GET("/:orderNo/status", h.Orders.Status)
	}

	r.POST("/payments/notify", h.Payments.Notify)

	admin := r.Group("/admin")
	admin.Use(h.Auth, middleware.AdminOnly())
	{
		admin.GET("/orders", h.Orders.AdminListOrders)
		admin.POST("/orders/:orderNo/refund", h.Orders.AdminRefund)
		admin.GET("/orders/:orderNo/notifications", h.Orders.AdminNotifications)
	}
}
