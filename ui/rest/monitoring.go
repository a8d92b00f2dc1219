package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aloqachat/aloqa/core/config"
	"github.com/aloqachat/aloqa/pkg/msgworker"
)

type Monitoring struct {
	Pool *msgworker.Pool
}

func InitRestMonitoring(app fiber.Router, pool *msgworker.Pool) Monitoring {
	rest := Monitoring{Pool: pool}
	app.Get("/health", rest.Health)
	app.Get("/monitoring/workers", rest.WorkerStats)
	return rest
}

func (handler *Monitoring) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": config.Global.App.Version,
	})
}

// WorkerStats returns live worker pool metrics.
func (handler *Monitoring) WorkerStats(c *fiber.Ctx) error {
	if handler.Pool == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Worker pool not initialized",
		})
	}
	return c.JSON(handler.Pool.GetStats())
}
