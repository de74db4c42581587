package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carematch/internal/config"
)

type HealthHandler struct {
	environment string
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{environment: cfg.Environment}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "carematch",
		"environment": h.environment,
	})
}
