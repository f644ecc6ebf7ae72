package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StartSetup starts a setup run in the background
func (h *Handlers) StartSetup(c *gin.Context) {
	runID, err := h.service.StartSetup(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to start setup")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id": runID,
		"status": "running",
	})
}

// GetSetupStatus returns the state of the latest setup run
func (h *Handlers) GetSetupStatus(c *gin.Context) {
	snap, ok := h.service.SetupStatus()
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "No setup has been started",
			Code:    http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, snap)
}
