// ABOUTME: This file mounts the HTTP routes onto an echo instance
// ABOUTME: Metrics come off the default Prometheus registry

package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers bundles the endpoint handlers the router mounts.
type Handlers struct {
	Sync      *SyncHandler
	Quota     *QuotaHandler
	Retention *RetentionHandler
	Health    *HealthHandler

	// TriggerLimit guards the mutating trigger endpoints. Nil disables it.
	TriggerLimit echo.MiddlewareFunc
}

// RegisterRoutes mounts the service endpoints onto e.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	var triggerMW []echo.MiddlewareFunc
	if h.TriggerLimit != nil {
		triggerMW = append(triggerMW, h.TriggerLimit)
	}

	v1 := e.Group("/v1")
	v1.POST("/sync/manual", h.Sync.TriggerManual, triggerMW...)
	v1.GET("/sync/status", h.Sync.Status)
	v1.GET("/quota", h.Quota.Handle)
	v1.POST("/retention/run", h.Retention.Run, triggerMW...)
	v1.GET("/retention/policy", h.Retention.GetPolicy)
	v1.GET("/health", h.Health.Handle)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
