package llm

// GenerateRequest is the payload sent to the upstream /api/generate endpoint.
// It is built once per chat call and never mutated afterwards.
type GenerateRequest struct {
	Model  string `json:"model"`            // Model name (e.g., "llama3.2")
	Prompt string `json:"prompt"`           // The user message
	System string `json:"system,omitempty"` // System prompt, possibly "[ID:<id>] " tagged
	Stream bool   `json:"stream"`           // Always true on the chat path

	Options Options `json:"options"`
}
