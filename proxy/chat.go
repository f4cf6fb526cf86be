package proxy

import (
	"bufio"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/pkg/gateway"
	"github.com/papercomputeco/promptgate/pkg/llm"
)

// handleChat resolves the request against the stored settings and prompts,
// then streams the upstream reply as SSE. Store failures are reported
// before the stream starts; everything after that travels as events.
func (p *Proxy) handleChat(c *fiber.Ctx) error {
	var msg llm.ChatMessage
	if err := json.Unmarshal(c.Body(), &msg); err != nil {
		p.logger.Debug("failed to parse chat request", zap.Error(err))
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	// An empty message is valid; only a missing or null one is rejected.
	var present struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(c.Body(), &present); err != nil || present.Message == nil {
		return errorJSON(c, fiber.StatusBadRequest, "message is required")
	}

	req, err := p.gateway.Prepare(c.UserContext(), msg)
	if err != nil {
		p.logger.Error("failed to prepare chat request", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load settings")
	}

	p.logger.Debug("received chat request",
		zap.String("model", req.Model),
		zap.Bool("system_prompt", req.System != ""),
		zap.Int("message_size", len(msg.Message)),
	)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// The writer runs after this handler returns, so it must not touch c.
	ctx := p.baseCtx
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		summary := p.gateway.Stream(ctx, req, func(ev gateway.Event) error {
			if _, err := ev.WriteTo(w); err != nil {
				return err
			}
			// A failed flush is the only sign of a vanished client.
			if err := w.Flush(); err != nil {
				return err
			}
			p.metrics.observeEvent(ev)
			return nil
		})
		p.metrics.observeStream(summary)
	}))

	return nil
}
