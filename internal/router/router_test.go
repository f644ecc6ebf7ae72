package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"hide-mail-go/internal/cloudflare/cftest"
	"hide-mail-go/internal/config"
	"hide-mail-go/internal/handler"
	"hide-mail-go/internal/metrics"
	"hide-mail-go/internal/model"
	"hide-mail-go/internal/pool"
	"hide-mail-go/internal/scheduler"
	"hide-mail-go/internal/service"
	"hide-mail-go/internal/settings"
)

func TestSetupRouterServesRoutes(t *testing.T) {
	p := cftest.New("example.com")
	svc := service.New(
		settings.NewMemoryStore(model.Settings{}),
		func(string) service.Provider { return p },
		config.PoolConfig{TargetSize: 1, PageSize: 50},
		config.SyncConfig{Interval: time.Millisecond, Timeout: time.Second},
		pool.NewWordGenerator(1),
		metrics.NewMetrics(prometheus.NewRegistry()),
	)
	r := SetupRouter(handler.NewHandlers(svc, scheduler.NewScheduler(30, svc)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/addresses", nil))
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
