package llm

// ChatMessage is an inbound chat request from a client.
// Nil pointer fields mean "not supplied" and fall back to persisted settings.
type ChatMessage struct {
	Message      string  `json:"message"`                 // The user message, sent verbatim as the prompt
	Model        string  `json:"model,omitempty"`         // Target model; empty uses the persisted model
	SystemPrompt *string `json:"system_prompt,omitempty"` // Overrides the persisted system prompt, "" disables it

	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	NumCtx        *int     `json:"num_ctx,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
}
