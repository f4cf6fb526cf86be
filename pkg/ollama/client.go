// Package ollama is the HTTP client for the upstream Ollama inference engine.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/pkg/llm"
)

// DefaultTimeout bounds a whole generate exchange, body included.
const DefaultTimeout = 60 * time.Second

// maxErrorBody caps how much of a failed response is kept for logging.
const maxErrorBody = 4 << 10

// Config configures a Client.
type Config struct {
	// BaseURL of the engine (e.g., "http://localhost:11434")
	BaseURL string

	// Timeout for a whole exchange. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// Client talks to one Ollama instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client. The same http.Client is shared by every request.
func NewClient(config Config, logger *zap.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// BaseURL returns the engine URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Generate opens a streaming POST to /api/generate. On success the caller
// owns the returned stream and must Close it; canceling ctx also tears down
// the connection.
func (c *Client) Generate(ctx context.Context, req *llm.GenerateRequest) (*LineStream, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	upstreamURL := c.baseURL + "/api/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, upstreamURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("forwarding generate request to upstream",
		zap.String("url", upstreamURL),
		zap.String("model", req.Model),
		zap.Int("body_size", len(reqBody)),
	)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		defer httpResp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return NewLineStream(httpResp.Body), nil
}

// Response is a fully buffered upstream reply.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the upstream labelled the body as JSON.
func (r *Response) IsJSON() bool {
	return strings.HasPrefix(r.ContentType, "application/json")
}

// Tags lists the locally available models (GET /api/tags).
func (c *Client) Tags(ctx context.Context) (*Response, error) {
	return c.Forward(ctx, http.MethodGet, "tags", "", nil)
}

// Forward relays a request to /api/<path> unchanged and buffers the reply.
// rawQuery is appended for every method; a non-nil body is sent as JSON.
func (c *Client) Forward(ctx context.Context, method, path, rawQuery string, body []byte) (*Response, error) {
	upstreamURL := c.baseURL + "/api/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		upstreamURL += "?" + rawQuery
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, upstreamURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("forwarding request to upstream",
		zap.String("method", method),
		zap.String("url", upstreamURL),
		zap.Int("body_size", len(body)),
	)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("read response: %w", err)}
	}

	return &Response{
		StatusCode:  httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}
