// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm is a minimal client for OpenAI-compatible chat-completion
// APIs. One client is built per run and shared by every worker; all
// methods are safe for concurrent use.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🚨 ErrService marks any fault of the remote transform service:
// transport, auth, rate limit, malformed response. Callers check it
// with errors.Is.
var ErrService = errors.New("transform service failure")

// 🌐 DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://api.openai.com/v1"

// 🔧 Options contains configuration for the client
type Options struct {
	// Model is the model name sent with every request
	Model string
	// BaseURL is the API root (defaults to DefaultBaseURL)
	BaseURL string
	// APIKey is sent as a bearer token
	APIKey string
	// SystemPrompt is prepended to every conversation
	SystemPrompt string
	// MaxRetries is the number of attempts per call (default 3)
	MaxRetries int
	// RetryDelay is the fixed wait between attempts (default 1s)
	RetryDelay time.Duration
	// HTTPClient overrides the transport (used in tests)
	HTTPClient *http.Client
}

// 🤖 Client is an immutable handle to the transform service
type Client struct {
	model        string
	baseURL      string
	apiKey       string
	systemPrompt string
	maxRetries   int
	retryDelay   time.Duration
	http         *http.Client
}

// 🏭 New creates a new client with the given options
func New(opts Options) (*Client, error) {
	if opts.Model == "" {
		return nil, errors.Errorf("model is required")
	}
	if opts.APIKey == "" {
		return nil, errors.Errorf("api key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	if opts.HTTPClient == nil {
		// No client-side timeout: transforms of large documents can
		// legitimately run for minutes. Callers cancel via ctx.
		opts.HTTPClient = &http.Client{}
	}

	return &Client{
		model:        opts.Model,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		systemPrompt: opts.SystemPrompt,
		maxRetries:   opts.MaxRetries,
		retryDelay:   opts.RetryDelay,
		http:         opts.HTTPClient,
	}, nil
}

// 🎛️ CallOption adjusts a single call
type CallOption func(*callSettings)

type callSettings struct {
	temperature *float64
	maxTokens   *int
}

// 🌡️ WithTemperature sets the sampling temperature for one call
func WithTemperature(temperature float64) CallOption {
	return func(s *callSettings) {
		s.temperature = &temperature
	}
}

// 📏 WithMaxTokens caps the completion length for one call
func WithMaxTokens(maxTokens int) CallOption {
	return func(s *callSettings) {
		s.maxTokens = &maxTokens
	}
}

// 💬 chat wire types (OpenAI chat-completions shape)
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// 🔄 Transform sends text through the model and returns the completion.
// Retries are bounded and internal: the caller sees a single outcome.
func (c *Client) Transform(ctx context.Context, userText string, opts ...CallOption) (string, error) {
	settings := &callSettings{}
	for _, opt := range opts {
		opt(settings)
	}

	logger := zerolog.Ctx(ctx)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		result, err := c.complete(ctx, userText, settings)
		if err == nil {
			return result, nil
		}
		lastErr = err
		logger.Debug().Err(err).Int("attempt", attempt).Msg("transform call failed")

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return "", errors.Errorf("%w: %w", ErrService, ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}
	}

	return "", errors.Errorf("after %d attempts: %w", c.maxRetries, lastErr)
}

// 📞 complete performs a single chat-completions request
func (c *Client) complete(ctx context.Context, userText string, settings *callSettings) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userText})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: settings.temperature,
		MaxTokens:   settings.maxTokens,
	})
	if err != nil {
		return "", errors.Errorf("encoding request: %w", err)
	}

	resp, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Errorf("%w: unexpected status %d: %s", ErrService, resp.StatusCode, readErrorBody(resp.Body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.Errorf("%w: decoding response: %w", ErrService, err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.Errorf("%w: response contains no choices", ErrService)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// 📋 ListModels returns the model IDs the endpoint advertises
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, errors.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Errorf("%w: %w", ErrService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("%w: unexpected status %d: %s", ErrService, resp.StatusCode, readErrorBody(resp.Body))
	}

	var parsed modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Errorf("%w: decoding response: %w", ErrService, err)
	}

	ids := make([]string, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// 📤 post sends a JSON body to an API path
func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Errorf("%w: %w", ErrService, err)
	}
	return resp, nil
}

// 📜 readErrorBody extracts a short error snippet from a response body
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil {
		return "<unreadable body>"
	}
	return strings.TrimSpace(string(data))
}

// 📝 Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// 📝 String returns a string representation of the client
func (c *Client) String() string {
	return "llm.Client(model=" + c.model + ", base_url=" + c.baseURL + ")"
}
