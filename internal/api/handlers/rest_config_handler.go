package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zsleinadg/WebCarros/internal/services"
)

// RestConfigHandler serves the public configuration document the
// frontend bootstraps from (app name, UF options, image constraints).
type RestConfigHandler struct {
	configService services.IConfigService
}

func NewRestConfigHandler(configService services.IConfigService) *RestConfigHandler {
	return &RestConfigHandler{configService: configService}
}

// GetPublicConfig handles GET /v1/config.
func (h *RestConfigHandler) GetPublicConfig(c *gin.Context) {
	publicConfig, err := h.configService.GetAllPublic(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve configuration"})
		return
	}
	c.JSON(http.StatusOK, publicConfig)
}
