package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hide-mail-go/internal/model"
)

// GetSettings returns the stored settings with the API key redacted
func (h *Handlers) GetSettings(c *gin.Context) {
	s, err := h.service.Settings(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to load settings")
		return
	}

	c.JSON(http.StatusOK, toSettingsResponse(s))
}

// UpdateSettings stores new Cloudflare credentials
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	s, err := h.service.UpdateSettings(c.Request.Context(), model.Settings{
		CloudflareAPIKey: req.CloudflareAPIKey,
		DestinationEmail: req.DestinationEmail,
		ZoneID:           req.ZoneID,
		AccountID:        req.AccountID,
	})
	if err != nil {
		respondError(c, err, "Failed to save settings")
		return
	}

	c.JSON(http.StatusOK, toSettingsResponse(s))
}
