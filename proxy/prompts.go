package proxy

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/pkg/storage"
)

type savePromptRequest struct {
	Name        *string `json:"name"`
	Prompt      *string `json:"prompt"`
	Description *string `json:"description"`
}

type usePromptRequest struct {
	PromptID *string `json:"prompt_id"`
}

type listPromptsResponse struct {
	Prompts map[string]storage.Prompt `json:"prompts"`
}

type promptResponse struct {
	Message string         `json:"message,omitempty"`
	Prompt  storage.Prompt `json:"prompt"`
}

type savePromptResponse struct {
	Message  string         `json:"message"`
	PromptID string         `json:"prompt_id"`
	Prompt   storage.Prompt `json:"prompt"`
}

func (p *Proxy) handleListPrompts(c *fiber.Ctx) error {
	prompts, err := p.store.ListPrompts(c.UserContext())
	if err != nil {
		p.logger.Error("failed to list prompts", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load prompts")
	}
	if prompts == nil {
		prompts = map[string]storage.Prompt{}
	}
	return c.JSON(listPromptsResponse{Prompts: prompts})
}

func (p *Proxy) handleSavePrompt(c *fiber.Ctx) error {
	var req savePromptRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == nil {
		return errorJSON(c, fiber.StatusBadRequest, "name is required")
	}
	if req.Prompt == nil {
		return errorJSON(c, fiber.StatusBadRequest, "prompt is required")
	}

	prompt := storage.Prompt{
		ID:        uuid.NewString(),
		Name:      *req.Name,
		Prompt:    *req.Prompt,
		CreatedAt: time.Now(),
	}
	if req.Description != nil {
		prompt.Description = *req.Description
	}

	if err := p.store.PutPrompt(c.UserContext(), prompt); err != nil {
		p.logger.Error("failed to save prompt", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to save prompt")
	}

	p.logger.Info("saved prompt", zap.String("prompt_id", prompt.ID), zap.String("name", prompt.Name))
	return c.JSON(savePromptResponse{
		Message:  "Prompt saved successfully",
		PromptID: prompt.ID,
		Prompt:   prompt,
	})
}

func (p *Proxy) handleGetPrompt(c *fiber.Ctx) error {
	prompt, err := p.store.GetPrompt(c.UserContext(), c.Params("id"))
	if err != nil {
		return p.promptError(c, err)
	}
	return c.JSON(promptResponse{Prompt: prompt})
}

// handleUsePrompt makes a saved prompt the persisted system prompt and
// stamps its last use.
func (p *Proxy) handleUsePrompt(c *fiber.Ctx) error {
	var req usePromptRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.PromptID == nil {
		return errorJSON(c, fiber.StatusBadRequest, "prompt_id is required")
	}

	ctx := c.UserContext()
	prompt, err := p.store.GetPrompt(ctx, *req.PromptID)
	if err != nil {
		return p.promptError(c, err)
	}

	now := time.Now()
	prompt.LastUsed = &now

	settings, err := p.store.LoadSettings(ctx)
	if err != nil {
		p.logger.Error("failed to load settings", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load settings")
	}
	settings.SystemPrompt = &prompt.Prompt
	if err := p.store.SaveSettings(ctx, settings); err != nil {
		p.logger.Error("failed to save settings", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to save settings")
	}

	if err := p.store.PutPrompt(ctx, prompt); err != nil {
		p.logger.Error("failed to save prompt", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to save prompt")
	}

	return c.JSON(promptResponse{
		Message: "Prompt '" + prompt.Name + "' applied successfully",
		Prompt:  prompt,
	})
}

func (p *Proxy) handleDeletePrompt(c *fiber.Ctx) error {
	prompt, err := p.store.DeletePrompt(c.UserContext(), c.Params("id"))
	if err != nil {
		return p.promptError(c, err)
	}

	p.logger.Info("deleted prompt", zap.String("prompt_id", prompt.ID))
	return c.JSON(messageResponse{Message: "Prompt '" + prompt.Name + "' deleted successfully"})
}

func (p *Proxy) promptError(c *fiber.Ctx, err error) error {
	var notFound storage.ErrNotFound
	if errors.As(err, &notFound) {
		return errorJSON(c, fiber.StatusNotFound, "Prompt not found")
	}

	p.logger.Error("prompt store failed", zap.Error(err))
	return errorJSON(c, fiber.StatusInternalServerError, "failed to load prompts")
}
