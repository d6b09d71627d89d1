package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/service"
)

type OrderHandler struct {
	svc    *service.OrderService
	logger *slog.Logger
}

func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

// HealthCheck returns server status
func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "canteen-service"})
}

func (h *OrderHandler) list(c *gin.Context, fetch func(ctx context.Context) ([]models.Order, error)) {
	orders, err := fetch(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	views, err := h.svc.Describe(c.Request.Context(), orders...)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// respond writes order together with its menu item. The order change has
// already committed, so a failed item lookup still answers with status.
func (h *OrderHandler) respond(c *gin.Context, status int, order *models.Order) {
	views, err := h.svc.Describe(c.Request.Context(), *order)
	if err != nil {
		h.logger.Warn("menu item lookup failed",
			"request_id", c.GetString(requestIDKey),
			"order_id", order.ID,
			"error", err,
		)
		c.JSON(status, models.NewOrderView(*order, nil))
		return
	}
	c.JSON(status, views[0])
}

// ListOrders returns all orders, or only those with ?status=
func (h *OrderHandler) ListOrders(c *gin.Context) {
	raw, filtered := c.GetQuery("status")
	if !filtered {
		h.list(c, h.svc.GetAllOrders)
		return
	}

	status, err := models.ParseOrderStatus(raw)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	h.list(c, func(ctx context.Context) ([]models.Order, error) {
		return h.svc.GetOrdersByStatus(ctx, status)
	})
}

func (h *OrderHandler) OrderHistory(c *gin.Context) {
	h.list(c, h.svc.GetOrderHistory)
}

func (h *OrderHandler) PendingOrders(c *gin.Context) {
	h.list(c, h.svc.GetPendingOrders)
}

func (h *OrderHandler) PaidOrders(c *gin.Context) {
	h.list(c, h.svc.GetPaidOrders)
}

func (h *OrderHandler) CancelledOrders(c *gin.Context) {
	h.list(c, h.svc.GetCancelledOrders)
}

func (h *OrderHandler) OrderStats(c *gin.Context) {
	stats, err := h.svc.GetOrderStats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetOrder returns a single order
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := parseID(c, "order")
	if !ok {
		return
	}

	order, err := h.svc.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respond(c, http.StatusOK, order)
}

// CreateOrder takes the menu item from ?menuItemId= or a JSON body
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var menuItemID int64
	if raw, ok := c.GetQuery("menuItemId"); ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "invalid menu item ID")
			return
		}
		menuItemID = id
	} else {
		var req models.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "menuItemId is required")
			return
		}
		menuItemID = req.MenuItemID
	}

	order, err := h.svc.CreateOrder(c.Request.Context(), menuItemID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respond(c, http.StatusCreated, order)
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, ok := parseID(c, "order")
	if !ok {
		return
	}

	order, err := h.svc.CancelOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respond(c, http.StatusOK, order)
}

func (h *OrderHandler) PayOrder(c *gin.Context) {
	id, ok := parseID(c, "order")
	if !ok {
		return
	}

	order, err := h.svc.PayOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respond(c, http.StatusOK, order)
}
