package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
	"github.com/open-teleop/mujoco-bridge/services"
)

// ConfigHandler holds dependencies for configuration API endpoints.
type ConfigHandler struct {
	configService services.SimConfigService
	logger        customlog.Logger
}

// NewConfigHandler creates a new handler for configuration endpoints.
func NewConfigHandler(configService services.SimConfigService, logger customlog.Logger) *ConfigHandler {
	if configService == nil {
		panic("ConfigService cannot be nil in NewConfigHandler")
	}
	if logger == nil {
		panic("Logger cannot be nil in NewConfigHandler")
	}
	return &ConfigHandler{
		configService: configService,
		logger:        logger,
	}
}

// RegisterConfigRoutes registers the configuration API endpoints with the Fiber app.
func RegisterConfigRoutes(app fiber.Router, configService services.SimConfigService, logger customlog.Logger) {
	h := NewConfigHandler(configService, logger)

	apiGroup := app.Group("/api/v1/config")

	// GET endpoint to retrieve the effective sim configuration as YAML
	apiGroup.Get("/sim", h.handleGetSimConfig)

	logger.Infof("Registered sim configuration API endpoints under /api/v1/config")
}

// handleGetSimConfig handles GET requests to retrieve the current sim config YAML.
func (h *ConfigHandler) handleGetSimConfig(c *fiber.Ctx) error {
	h.logger.Debugf("Handling GET request for /api/v1/config/sim")
	yamlData, err := h.configService.GetCurrentConfigYAML()
	if errors.Is(err, services.ErrConfigNotLoaded) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{
			"error": "Sim configuration not loaded.",
		})
	}
	if err != nil {
		h.logger.Errorf("Failed to get current sim config YAML: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to retrieve configuration: %v", err),
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}
