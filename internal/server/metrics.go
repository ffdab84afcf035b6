package server

import (
	"strconv"
	"time"

	"decor-ai-be/pkg/metrics"

	"github.com/gofiber/fiber/v2"
)

// metricsMiddleware records every request under its route pattern, so
// workspace ids never become label values.
func metricsMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()

		path := ctx.Route().Path
		status := strconv.Itoa(ctx.Response().StatusCode())
		metrics.HTTPRequestsTotal.WithLabelValues(ctx.Method(), path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(ctx.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}
