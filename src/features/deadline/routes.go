package deadline

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registers the routes for the deadline feature.
func RegisterRoutes(app *fiber.App, countdown *Countdown) {
	app.Get("/countdown", func(c *fiber.Ctx) error {
		return c.SendString(countdown.Current())
	})
}
