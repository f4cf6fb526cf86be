package proxy

import "time"

// Config is the gateway server configuration.
type Config struct {
	// Address to listen on (e.g., ":8000")
	ListenAddr string

	// Upstream Ollama URL (e.g., "http://localhost:11434")
	UpstreamURL string

	// Timeout bounds one upstream exchange. Zero uses ollama.DefaultTimeout.
	// A client that disconnects is noticed on the next event written to it,
	// so an idle upstream may be held open for up to Timeout.
	Timeout time.Duration

	// StaticDir holds the web UI pages and the /static assets.
	StaticDir string
}
