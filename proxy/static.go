package proxy

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// servePage serves one HTML page from the static directory. The file is
// read on every request so edits show up without a restart.
func (p *Proxy) servePage(name, missing string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := os.ReadFile(filepath.Join(p.config.StaticDir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return errorJSON(c, fiber.StatusNotFound, missing)
			}
			p.logger.Error("failed to read page", zap.String("page", name), zap.Error(err))
			return errorJSON(c, fiber.StatusInternalServerError, "failed to read page")
		}

		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(data)
	}
}
