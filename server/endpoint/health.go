package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pitwall/component"
)

// HealthChecker reports the relay's components: broadcast medium, gRPC
// ingest, HTTP observers and the optional mirror.
type HealthChecker func(ctx context.Context) []component.Health

// HealthReport is the /health response body.
type HealthReport struct {
	Status     component.HealthStatus `json:"status"`
	Service    string                 `json:"service"`
	Timestamp  string                 `json:"timestamp"`
	Components []component.Health     `json:"components"`
	// Failing names every component that is not healthy.
	Failing []string `json:"failing,omitempty"`
}

// Overall folds component states into one: any unhealthy component makes the
// relay unhealthy, otherwise any degraded one makes it degraded.
func Overall(components []component.Health) component.HealthStatus {
	status := component.StatusHealthy
	for _, h := range components {
		switch h.Status {
		case component.StatusUnhealthy:
			return component.StatusUnhealthy
		case component.StatusDegraded:
			status = component.StatusDegraded
		}
	}
	return status
}

// Health serves a HealthReport. Only an unhealthy relay answers 503; a
// degraded one (e.g. mirror down) still serves observers.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := HealthReport{
			Service:    serviceName,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Components: []component.Health{},
		}
		if checker != nil {
			report.Components = checker(c.Request.Context())
		}
		report.Status = Overall(report.Components)
		for _, h := range report.Components {
			if h.Status != component.StatusHealthy {
				report.Failing = append(report.Failing, h.Name)
			}
		}

		code := http.StatusOK
		if report.Status == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	}
}
