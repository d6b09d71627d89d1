package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/apperrors"
)

// HTTPStatus maps an error kind to its response status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInsufficientStock),
		errors.Is(err, apperrors.ErrInvalidState),
		errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": message}. Faults are logged and
// answered with a generic message.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := HTTPStatus(err)
	if !apperrors.IsBusiness(err) {
		logger.Error("request failed",
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}

	msg := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		msg = appErr.Message()
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
