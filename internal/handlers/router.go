package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

func NewRouter(menu *MenuHandler, orders *OrderHandler, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(logger))

	router.GET("/health", orders.HealthCheck)

	api := router.Group("/api")

	m := api.Group("/menu")
	m.GET("", menu.ListMenuItems)
	m.GET("/available", menu.ListAvailable)
	m.GET("/search", menu.SearchMenuItems)
	m.GET("/:id", menu.GetMenuItem)
	m.POST("", menu.CreateMenuItem)
	m.PUT("/:id", menu.UpdateMenuItem)
	m.DELETE("/:id", menu.DeleteMenuItem)

	o := api.Group("/orders")
	o.GET("", orders.ListOrders)
	o.GET("/history", orders.OrderHistory)
	o.GET("/stats", orders.OrderStats)
	o.GET("/pending", orders.PendingOrders)
	o.GET("/paid", orders.PaidOrders)
	o.GET("/cancelled", orders.CancelledOrders)
	o.GET("/:id", orders.GetOrder)
	o.POST("", orders.CreateOrder)
	o.POST("/:id/cancel", orders.CancelOrder)
	o.POST("/:id/pay", orders.PayOrder)

	return router
}
