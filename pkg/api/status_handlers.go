package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/mujoco-bridge/pkg/processing"
	"github.com/open-teleop/mujoco-bridge/pkg/sim"
)

// ModelSource exposes the loaded model and the relay layout.
type ModelSource interface {
	Model() *sim.Model
	Layout() sim.Layout
}

// TopicSource reports per-topic message counts.
type TopicSource interface {
	GetTopicStats() []processing.TopicInfo
}

// StatusHandler serves the model and topic endpoints.
type StatusHandler struct {
	model  ModelSource
	topics TopicSource
}

// RegisterStatusRoutes registers /health and the read-only bridge endpoints.
// A nil source leaves its route unregistered.
func RegisterStatusRoutes(app fiber.Router, model ModelSource, topics TopicSource, diagnostics fiber.Handler) {
	h := &StatusHandler{model: model, topics: topics}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	v1 := app.Group("/api/v1")
	if diagnostics != nil {
		v1.Get("/diagnostics", diagnostics)
	}
	if model != nil {
		v1.Get("/model", h.handleGetModel)
	}
	if topics != nil {
		v1.Get("/topics", h.handleGetTopics)
	}
}

func (h *StatusHandler) handleGetModel(c *fiber.Ctx) error {
	m := h.model.Model()
	if m == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "model not loaded")
	}
	return c.JSON(NewModelInfo(m, h.model.Layout()))
}

func (h *StatusHandler) handleGetTopics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"topics": h.topics.GetTopicStats(),
	})
}
