package proxy

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/pkg/gateway"
)

// handleModels relays the upstream model list.
func (p *Proxy) handleModels(c *fiber.Ctx) error {
	resp, err := p.upstream.Tags(c.UserContext())
	if err != nil {
		p.logger.Error("failed to fetch models", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, gateway.ErrorMessage(err))
	}
	if resp.StatusCode != fiber.StatusOK {
		return errorJSON(c, resp.StatusCode, "Error fetching models")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(resp.Body)
}

// handleAPI forwards /api/* to the engine. GET carries the query string,
// POST and PUT carry the body, DELETE carries neither. The upstream status
// is mirrored.
func (p *Proxy) handleAPI(c *fiber.Ctx) error {
	var (
		rawQuery string
		body     []byte
	)
	switch c.Method() {
	case fiber.MethodGet:
		rawQuery = string(c.Request().URI().QueryString())
	case fiber.MethodPost, fiber.MethodPut:
		body = append([]byte{}, c.Body()...)
	}

	resp, err := p.upstream.Forward(c.UserContext(), c.Method(), c.Params("*"), rawQuery, body)
	if err != nil {
		p.logger.Error("upstream pass-through failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return errorJSON(c, fiber.StatusInternalServerError, gateway.ErrorMessage(err))
	}

	c.Status(resp.StatusCode)
	if resp.IsJSON() {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	} else {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	}
	return c.Send(resp.Body)
}
