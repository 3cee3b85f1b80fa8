package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type connectionTester interface {
	TestConnection(ctx context.Context) bool
}

// HealthHandler reporta si el almacen de conversaciones responde.
type HealthHandler struct {
	store connectionTester
}

func NewHealthHandler(store connectionTester) *HealthHandler {
	return &HealthHandler{store: store}
}

// Health maneja GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	if h.store == nil || !h.store.TestConnection(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
