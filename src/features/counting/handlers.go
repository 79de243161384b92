package counting

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"wordwatch/src/features/config"
	"wordwatch/src/features/deadline"
)

// Handler serves the counts dashboard and the JSON snapshot.
type Handler struct {
	registry  *Registry
	tracker   *Tracker
	countdown *deadline.Countdown
	config    *config.Manager
}

func NewHandler(reg *Registry, trk *Tracker, countdown *deadline.Countdown, cfg *config.Manager) *Handler {
	return &Handler{registry: reg, tracker: trk, countdown: countdown, config: cfg}
}

// RenderDashboard renders the counts page.
func (h *Handler) RenderDashboard(c *fiber.Ctx) error {
	slog.Debug("RenderDashboard handler called")
	snap := h.registry.Snapshot()
	return c.Render("index", fiber.Map{
		"Files":     snap.Files,
		"Total":     snap.Total,
		"ShowTotal": h.config.Get().ShowTotal,
		"Remaining": h.countdown.Current(),
	})
}

// GetCounts returns the current snapshot as JSON.
func (h *Handler) GetCounts(c *fiber.Ctx) error {
	return c.JSON(h.registry.Snapshot())
}

// GetTotal returns the incrementally-tracked aggregate. It is served from
// the tracker, not the snapshot, so the two can be compared from outside.
func (h *Handler) GetTotal(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"total": h.tracker.Total()})
}
