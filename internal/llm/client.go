// Package llm is the transport client for a local model server speaking the
// Ollama generate API. One blocking round trip per call, one configured
// timeout covering connection and full response, no retries: retries, if any,
// belong to the caller.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"moodscope/internal/logging"
)

// FailureRecorder receives one notification per transport failure, tagged
// with the priority bucket of the failed call. The fallback policy store
// implements it; a nil recorder is a no-op.
type FailureRecorder interface {
	RecordFailure(priority string)
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns defaults for a stock local Ollama install.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:11434",
		Model:   "llama3.2",
		Timeout: 120 * time.Second,
	}
}

// Client issues generation requests to the local model server.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	recorder   FailureRecorder
}

// NewClient creates a client. recorder may be nil when no fallback policy is
// wired in.
func NewClient(cfg Config, recorder FailureRecorder) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		recorder: recorder,
	}
}

// Model returns the default model used when a request leaves Model empty.
func (c *Client) Model() string {
	return c.model
}

// GenerateRequest describes one generation call. Immutable once built.
type GenerateRequest struct {
	Model       string
	Prompt      string
	Temperature float64
	Images      [][]byte // raw bytes, base64-encoded on the wire

	// Priority is the bucket failures are recorded against.
	// Defaults to "medium" when empty.
	Priority string
}

// generateBody is the wire format of POST /api/generate.
type generateBody struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature"`
	} `json:"options"`
	Images []string `json:"images,omitempty"`
}

// generateResponse is the expected response shape. Response is a pointer so
// an explicit empty string is distinguishable from an absent field.
type generateResponse struct {
	Response *string `json:"response"`
}

// Generate issues a single generation request and returns the model's text.
//
// A 2xx status with a JSON body carrying a "response" field returns that
// exact string, which may be empty; an empty string is a degenerate but valid
// response. A 2xx body that is not the expected JSON is returned raw when it
// is valid text: the server may emit non-JSON or streaming-fragment output
// even with stream=false, and that tolerance is intentional.
//
// Failures are typed: non-2xx yields *HTTPError with the exact status code,
// a 2xx empty/undecodable body yields ErrEmptyResponse. Every failure,
// including network errors and timeouts, records exactly one failure against
// the request's priority bucket.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}

	body := generateBody{
		Model:  model,
		Prompt: req.Prompt,
		Stream: false,
	}
	body.Options.Temperature = req.Temperature
	for _, img := range req.Images {
		body.Images = append(body.Images, base64.StdEncoding.EncodeToString(img))
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	logging.APIDebug("POST /api/generate model=%s prompt_len=%d images=%d", model, len(req.Prompt), len(req.Images))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordFailure(priority)
		logging.APIError("generate request failed: %v", err)
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure(priority)
		logging.APIError("generate response read failed: %v", err)
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordFailure(priority)
		logging.APIError("generate returned status %d", resp.StatusCode)
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	text, err := decodeGenerateBody(raw)
	if err != nil {
		c.recordFailure(priority)
		logging.APIError("generate returned undecodable body (%d bytes)", len(raw))
		return "", err
	}

	logging.APIDebug("generate ok model=%s response_len=%d", model, len(text))
	return text, nil
}

// decodeGenerateBody extracts the response text from a 2xx body.
func decodeGenerateBody(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmptyResponse
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Response != nil {
		return *decoded.Response, nil
	}

	// Best effort: the raw body itself, when it is valid text.
	if utf8.Valid(raw) {
		return string(raw), nil
	}

	return "", ErrEmptyResponse
}

func (c *Client) recordFailure(priority string) {
	if c.recorder != nil {
		c.recorder.RecordFailure(priority)
	}
}
