package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"agile-bank/internal/core/ports"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 3 * time.Second

type depStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Every dependency is pinged concurrently;
// any failure reports the service as degraded with a 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		var (
			mu   sync.Mutex
			g    errgroup.Group
			deps = make(map[string]depStatus, len(checkers))
		)
		for _, checker := range checkers {
			g.Go(func() error {
				st := depStatus{Status: "healthy"}
				if err := checker.Ping(ctx); err != nil {
					st = depStatus{Status: "unhealthy", Error: err.Error()}
				}
				mu.Lock()
				deps[checker.Name()] = st
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		status := "healthy"
		httpCode := http.StatusOK
		for _, d := range deps {
			if d.Status != "healthy" {
				status = "degraded"
				httpCode = http.StatusServiceUnavailable
				break
			}
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
