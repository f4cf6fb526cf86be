// Package gateway turns a chat request into an upstream generate call and
// re-frames the NDJSON reply as server-sent events.
package gateway

import (
	"github.com/papercomputeco/promptgate/pkg/llm"
	"github.com/papercomputeco/promptgate/pkg/storage"
)

// DefaultModel is used when neither the request nor the settings name one.
const DefaultModel = "llama3.2"

// ResolveOptions overlays the request overrides onto the persisted settings,
// falling back to the hard-coded defaults for fields neither supplies.
// Values are forwarded as-is; range checking is left to the engine.
func ResolveOptions(msg llm.ChatMessage, settings storage.Settings) llm.Options {
	return llm.Options{
		Temperature:   first(msg.Temperature, settings.Temperature, llm.DefaultTemperature),
		TopP:          first(msg.TopP, settings.TopP, llm.DefaultTopP),
		NumCtx:        first(msg.NumCtx, settings.NumCtx, llm.DefaultNumCtx),
		RepeatPenalty: first(msg.RepeatPenalty, settings.RepeatPenalty, llm.DefaultRepeatPenalty),
	}
}

// ResolveModel picks the request model, then the persisted one.
func ResolveModel(msg llm.ChatMessage, settings storage.Settings) string {
	if msg.Model != "" {
		return msg.Model
	}
	if settings.Model != nil && *settings.Model != "" {
		return *settings.Model
	}
	return DefaultModel
}

// ResolveSystemPrompt returns the system prompt to transmit, or "" when none
// should be sent. A non-nil override wins over the persisted prompt, even
// when empty. Text equal to a saved prompt is tagged "[ID:<id>] <text>";
// with several equal prompts the first one met in map order wins.
func ResolveSystemPrompt(override *string, settings storage.Settings, prompts map[string]storage.Prompt) string {
	var text string
	switch {
	case override != nil:
		text = *override
	case settings.SystemPrompt != nil:
		text = *settings.SystemPrompt
	}
	if text == "" {
		return ""
	}

	for id, p := range prompts {
		if p.Prompt == text {
			return "[ID:" + id + "] " + text
		}
	}
	return text
}

// BuildRequest assembles the outbound payload.
func BuildRequest(msg llm.ChatMessage, settings storage.Settings, prompts map[string]storage.Prompt) *llm.GenerateRequest {
	return &llm.GenerateRequest{
		Model:   ResolveModel(msg, settings),
		Prompt:  msg.Message,
		System:  ResolveSystemPrompt(msg.SystemPrompt, settings, prompts),
		Stream:  true,
		Options: ResolveOptions(msg, settings),
	}
}

func first[T any](override, persisted *T, fallback T) T {
	if override != nil {
		return *override
	}
	if persisted != nil {
		return *persisted
	}
	return fallback
}
