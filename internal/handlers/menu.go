package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/service"
)

type MenuHandler struct {
	svc    *service.InventoryService
	logger *slog.Logger
}

func NewMenuHandler(svc *service.InventoryService, logger *slog.Logger) *MenuHandler {
	return &MenuHandler{svc: svc, logger: logger}
}

func parseID(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+what+" ID")
		return 0, false
	}
	return id, true
}

// ListMenuItems returns the whole menu
func (h *MenuHandler) ListMenuItems(c *gin.Context) {
	items, err := h.svc.ListMenuItems(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// ListAvailable returns items with stock left
func (h *MenuHandler) ListAvailable(c *gin.Context) {
	items, err := h.svc.ListAvailable(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *MenuHandler) SearchMenuItems(c *gin.Context) {
	items, err := h.svc.SearchMenuItems(c.Request.Context(), c.Query("name"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *MenuHandler) GetMenuItem(c *gin.Context) {
	id, ok := parseID(c, "menu item")
	if !ok {
		return
	}

	item, err := h.svc.GetMenuItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *MenuHandler) CreateMenuItem(c *gin.Context) {
	var req models.MenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	item, err := h.svc.CreateMenuItem(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *MenuHandler) UpdateMenuItem(c *gin.Context) {
	id, ok := parseID(c, "menu item")
	if !ok {
		return
	}

	var req models.MenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	item, err := h.svc.UpdateMenuItem(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *MenuHandler) DeleteMenuItem(c *gin.Context) {
	id, ok := parseID(c, "menu item")
	if !ok {
		return
	}

	if err := h.svc.DeleteMenuItem(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
