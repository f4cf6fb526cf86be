package llm

// Default generation options used when neither the request nor the
// persisted settings supply a value.
const (
	DefaultTemperature   = 0.7
	DefaultTopP          = 0.9
	DefaultNumCtx        = 2048
	DefaultRepeatPenalty = 1.1
)

// Options contains resolved model inference parameters.
type Options struct {
	Temperature   float64 `json:"temperature"`    // Creativity
	TopP          float64 `json:"top_p"`          // Nucleus sampling threshold
	NumCtx        int     `json:"num_ctx"`        // Context window size
	RepeatPenalty float64 `json:"repeat_penalty"` // Penalty for repeating tokens
}
