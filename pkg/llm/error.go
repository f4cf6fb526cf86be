// Package llm provides the wire representations exchanged with chat clients
// and with the Ollama generate API.
package llm

// ErrorResponse is the JSON body returned for non-streaming failures.
type ErrorResponse struct {
	Error string `json:"error"`
}
