package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/pkg/llm"
	"github.com/papercomputeco/promptgate/pkg/ollama"
	"github.com/papercomputeco/promptgate/pkg/storage"
)

// Store is the read side of the persistence collaborator used per request.
type Store interface {
	LoadSettings(ctx context.Context) (storage.Settings, error)
	ListPrompts(ctx context.Context) (map[string]storage.Prompt, error)
}

// Upstream opens a streaming generate call.
type Upstream interface {
	Generate(ctx context.Context, req *llm.GenerateRequest) (*ollama.LineStream, error)
}

// Gateway runs the per-request pipeline: resolve, call upstream, re-frame.
// It holds no per-request state and is safe for concurrent use.
type Gateway struct {
	store    Store
	upstream Upstream
	logger   *zap.Logger
}

// New creates a Gateway.
func New(store Store, upstream Upstream, logger *zap.Logger) *Gateway {
	return &Gateway{
		store:    store,
		upstream: upstream,
		logger:   logger,
	}
}

// Prepare reads the settings and saved prompts once and builds the
// outbound request.
func (g *Gateway) Prepare(ctx context.Context, msg llm.ChatMessage) (*llm.GenerateRequest, error) {
	settings, err := g.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	// Only needed for ID tagging, which requires a system prompt.
	var prompts map[string]storage.Prompt
	if msg.SystemPrompt != nil || settings.SystemPrompt != nil {
		prompts, err = g.store.ListPrompts(ctx)
		if err != nil {
			return nil, fmt.Errorf("load prompts: %w", err)
		}
	}

	return BuildRequest(msg, settings, prompts), nil
}

// Stream opens the upstream call and forwards every event to sink as it is
// produced. Returning from sink with an error cancels the upstream call
// before Stream returns.
func (g *Gateway) Stream(ctx context.Context, req *llm.GenerateRequest, sink Sink) Summary {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var summary Summary
	stream, err := g.upstream.Generate(ctx, req)
	if err != nil {
		g.logger.Error("upstream request failed",
			zap.String("model", req.Model),
			zap.Error(err),
		)
		summary = Fail(ctx, err, sink)
	} else {
		summary = Reframe(ctx, stream, sink)
		// Close before returning so a vanished downstream never keeps the
		// upstream connection open.
		cancel()
		stream.Close()
	}

	g.logSummary(req, summary, time.Since(start))
	return summary
}

// Chat is Prepare followed by Stream. A Prepare failure is reported as a
// single error event.
func (g *Gateway) Chat(ctx context.Context, msg llm.ChatMessage, sink Sink) Summary {
	req, err := g.Prepare(ctx, msg)
	if err != nil {
		g.logger.Error("failed to prepare chat request", zap.Error(err))
		return Fail(ctx, err, sink)
	}
	return g.Stream(ctx, req, sink)
}

func (g *Gateway) logSummary(req *llm.GenerateRequest, s Summary, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("model", req.Model),
		zap.String("state", s.State.String()),
		zap.Int("fragments", s.Fragments),
		zap.Duration("duration", elapsed),
	}
	if s.Skipped > 0 {
		fields = append(fields, zap.Int("skipped_lines", s.Skipped))
	}
	if s.Final != nil {
		fields = append(fields,
			zap.Int("prompt_eval_count", s.Final.PromptEvalCount),
			zap.Int("eval_count", s.Final.EvalCount),
			zap.Duration("eval_duration", time.Duration(s.Final.EvalDuration)),
		)
	}

	switch {
	case s.State == StateCanceled:
		g.logger.Info("chat stream canceled", append(fields, zap.Error(s.Err))...)
	case s.State == StateFailed:
		g.logger.Warn("chat stream failed", append(fields, zap.Error(s.Err))...)
	case s.Truncated:
		g.logger.Debug("upstream closed without done", fields...)
		g.logger.Info("chat stream complete", fields...)
	default:
		g.logger.Info("chat stream complete", fields...)
	}
}
