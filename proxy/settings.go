package proxy

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/pkg/storage"
)

type updateConfigResponse struct {
	Message string           `json:"message"`
	Config  storage.Settings `json:"config"`
}

type switchModelRequest struct {
	Model *string `json:"model"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (p *Proxy) handleGetConfig(c *fiber.Ctx) error {
	settings, err := p.store.LoadSettings(c.UserContext())
	if err != nil {
		p.logger.Error("failed to load settings", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load settings")
	}
	return c.JSON(settings)
}

// handleUpdateConfig overlays the non-null fields of the body onto the
// stored settings.
func (p *Proxy) handleUpdateConfig(c *fiber.Ctx) error {
	var update storage.Settings
	if err := json.Unmarshal(c.Body(), &update); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	ctx := c.UserContext()
	settings, err := p.store.LoadSettings(ctx)
	if err != nil {
		p.logger.Error("failed to load settings", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load settings")
	}

	settings = settings.Merge(update)
	if err := p.store.SaveSettings(ctx, settings); err != nil {
		p.logger.Error("failed to save settings", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to save settings")
	}

	return c.JSON(updateConfigResponse{
		Message: "Configuration updated successfully",
		Config:  settings,
	})
}

func (p *Proxy) handleSwitchModel(c *fiber.Ctx) error {
	var req switchModelRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Model == nil {
		return errorJSON(c, fiber.StatusBadRequest, "model is required")
	}

	ctx := c.UserContext()
	settings, err := p.store.LoadSettings(ctx)
	if err != nil {
		p.logger.Error("failed to load settings", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load settings")
	}

	settings.Model = req.Model
	if err := p.store.SaveSettings(ctx, settings); err != nil {
		p.logger.Error("failed to save settings", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to save settings")
	}

	p.logger.Info("switched model", zap.String("model", *req.Model))
	return c.JSON(messageResponse{Message: "Model switched to " + *req.Model})
}
