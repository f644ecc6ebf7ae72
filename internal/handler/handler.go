package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"hide-mail-go/internal/cloudflare"
	"hide-mail-go/internal/lifecycle"
	"hide-mail-go/internal/repository"
	"hide-mail-go/internal/rulename"
	"hide-mail-go/internal/scheduler"
	"hide-mail-go/internal/service"
	"hide-mail-go/internal/settings"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	service   *service.Service
	scheduler *scheduler.Scheduler
}

// NewHandlers creates new HTTP handlers
func NewHandlers(svc *service.Service, sched *scheduler.Scheduler) *Handlers {
	return &Handlers{
		service:   svc,
		scheduler: sched,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.UpdateSettings)

		api.POST("/setup", h.StartSetup)
		api.GET("/setup", h.GetSetupStatus)

		api.GET("/addresses", h.GetUsedAddresses)
		api.GET("/addresses/unused", h.GetUnusedAddresses)
		api.POST("/addresses", h.AssignAddress)
		api.PUT("/addresses/:id", h.RelabelAddress)
		api.DELETE("/addresses/:id", h.ReleaseAddress)

		api.POST("/pool/reconcile", h.ReconcilePool)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run", h.RunScheduler)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Settings:  "not_configured",
		Metrics:   make(map[string]string),
	}

	s, err := h.service.Settings(c.Request.Context())
	switch {
	case err != nil:
		response.Status = "error"
		response.Settings = "error"
		logrus.Errorf("Settings health check failed: %v", err)
	case s.Ready():
		response.Settings = "ready"
	}

	if h.scheduler.IsRunning() {
		response.Metrics["scheduler"] = "running"
		response.Metrics["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
	} else {
		response.Metrics["scheduler"] = "stopped"
	}
	if h.service.SetupRunning() {
		response.Metrics["setup"] = "running"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// respondError maps domain errors to status codes
func respondError(c *gin.Context, err error, message string) {
	var apiErr *cloudflare.APIError

	status, kind := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, rulename.ErrInvalidLabel), errors.Is(err, settings.ErrInvalidSettings):
		status, kind = http.StatusBadRequest, "validation_error"
	case errors.Is(err, repository.ErrRuleNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, settings.ErrNotConfigured):
		status, kind = http.StatusPreconditionFailed, "not_configured"
	case errors.Is(err, service.ErrSetupRunning):
		status, kind = http.StatusConflict, "setup_running"
	case errors.Is(err, lifecycle.ErrPoolExhausted):
		status, kind = http.StatusConflict, "pool_exhausted"
	case errors.Is(err, lifecycle.ErrRuleInUse), errors.Is(err, lifecycle.ErrRuleNotAssigned):
		status, kind = http.StatusConflict, "invalid_state"
	case errors.As(err, &apiErr):
		status, kind = http.StatusBadGateway, "provider_error"
	}

	if status >= http.StatusInternalServerError {
		logrus.Errorf("%s: %v", message, err)
	}

	c.JSON(status, ErrorResponse{
		Error:   kind,
		Message: message + ": " + err.Error(),
		Code:    status,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: message,
		Code:    http.StatusBadRequest,
	})
}
