// Package proxy serves the promptgate HTTP API: the streaming chat endpoint,
// the settings and saved-prompt surface, and pass-through to Ollama.
package proxy

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/pkg/gateway"
	"github.com/papercomputeco/promptgate/pkg/llm"
	"github.com/papercomputeco/promptgate/pkg/ollama"
	"github.com/papercomputeco/promptgate/pkg/storage"
)

// Proxy is the HTTP front of the gateway. It keeps no per-request state:
// settings and prompts are read from the store on every request.
type Proxy struct {
	config   Config
	store    storage.Driver
	upstream *ollama.Client
	gateway  *gateway.Gateway
	metrics  *metrics
	logger   *zap.Logger
	server   *fiber.App

	// baseCtx outlives individual handlers so chat streams keep running
	// after the handler returns; it is canceled on Shutdown.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a new Proxy. The caller owns store and closes it after
// Shutdown.
func New(config Config, store storage.Driver, logger *zap.Logger) (*Proxy, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}

	upstream := ollama.NewClient(ollama.Config{
		BaseURL: config.UpstreamURL,
		Timeout: config.Timeout,
	}, logger)

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	baseCtx, cancel := context.WithCancel(context.Background())

	p := &Proxy{
		config:   config,
		store:    store,
		upstream: upstream,
		gateway:  gateway.New(store, upstream, logger),
		metrics:  newMetrics(),
		logger:   logger,
		server:   app,
		baseCtx:  baseCtx,
		cancel:   cancel,
	}

	app.Use(requestid.New())
	app.Use(p.accessLog)
	app.Use(p.metrics.middleware)
	app.Use(recover.New())

	app.Post("/chat", p.handleChat)

	// Settings
	app.Get("/config", p.handleGetConfig)
	app.Post("/config", p.handleUpdateConfig)
	app.Post("/switch-model", p.handleSwitchModel)

	// Saved prompts
	app.Get("/prompts", p.handleListPrompts)
	app.Post("/prompts", p.handleSavePrompt)
	app.Post("/prompts/use", p.handleUsePrompt)
	app.Get("/prompts/:id", p.handleGetPrompt)
	app.Delete("/prompts/:id", p.handleDeletePrompt)

	// Ollama pass-through
	app.Get("/models", p.handleModels)
	app.Get("/api/*", p.handleAPI)
	app.Post("/api/*", p.handleAPI)
	app.Put("/api/*", p.handleAPI)
	app.Delete("/api/*", p.handleAPI)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})
	app.Get("/metrics", p.metrics.handler())

	// Web UI
	app.Get("/", p.servePage("index.html", "Index page not found"))
	app.Get("/board", p.servePage("board.html", "Board page not found"))
	app.Get("/board2", p.servePage("board2.html", "Board v2 page not found"))
	if config.StaticDir != "" {
		app.Static("/static", config.StaticDir)
	}

	return p, nil
}

// Run starts the server on the configured listening address.
func (p *Proxy) Run() error {
	p.logger.Info("starting gateway server",
		zap.String("listen", p.config.ListenAddr),
		zap.String("upstream", p.upstream.BaseURL()),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the server on an existing listener.
func (p *Proxy) RunWithListener(ln net.Listener) error {
	p.logger.Info("starting gateway server",
		zap.String("listen", ln.Addr().String()),
		zap.String("upstream", p.upstream.BaseURL()),
	)

	return p.server.Listener(ln)
}

// Shutdown cancels in-flight chat streams and stops the server, waiting for
// open connections until ctx is done.
func (p *Proxy) Shutdown(ctx context.Context) error {
	p.cancel()
	return p.server.ShutdownWithContext(ctx)
}

// accessLog logs one line per request once the handler chain returns.
// Chat streams are still being written at that point; their outcome is
// logged by the gateway.
func (p *Proxy) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := statusOf(c, err)
	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)),
		zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
	}

	switch {
	case status >= fiber.StatusInternalServerError:
		p.logger.Error("request failed", append(fields, zap.Error(err))...)
	case status >= fiber.StatusBadRequest:
		p.logger.Info("request rejected", fields...)
	default:
		p.logger.Debug("request served", fields...)
	}

	return err
}

// errorHandler renders every unhandled error as an llm.ErrorResponse.
func errorHandler(c *fiber.Ctx, err error) error {
	message := "internal error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		message = fe.Message
	}

	return c.Status(statusOf(c, err)).JSON(llm.ErrorResponse{Error: message})
}

// statusOf is the status a response will carry once err, if any, has gone
// through errorHandler.
func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(llm.ErrorResponse{Error: message})
}
