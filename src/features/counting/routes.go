package counting

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registers the routes for the counting feature.
func RegisterRoutes(app *fiber.App, handler *Handler) {
	app.Get("/", handler.RenderDashboard)
	app.Get("/counts", handler.GetCounts)
	app.Get("/total", handler.GetTotal)
}
