// Package remote is a client of an OpenRouter compatible chat-completion
// endpoint asking a model to review source code.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CZERTAINLY/Sniffer/internal/model"
)

const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.1

	maxResponseSize = 10 * 1024 * 1024
	maxReasonLen    = 1000
)

// Option configures a Client.
type Option func(*Client)

// WithEndpoint sets the chat-completion URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient replaces the underlying http.Client entirely.
// The caller is responsible for configuring timeouts on the provided client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout on the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithReferer sets the HTTP-Referer header OpenRouter uses for app attribution.
func WithReferer(referer string) Option {
	return func(c *Client) { c.referer = referer }
}

// WithTitle sets the X-Title header.
func WithTitle(title string) Option {
	return func(c *Client) { c.title = title }
}

func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// Client performs exactly one request per RequestAnalysis call. It never
// retries and holds no state between calls, so it is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	referer     string
	title       string
	maxTokens   int
	temperature float64
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		endpoint:    model.DefaultEndpoint,
		title:       model.DefaultTitle,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
}

// RequestAnalysis sends content to the model and returns the raw message
// text. Errors wrap one of model.ErrMissingCredential, model.ErrUnauthorized,
// model.ErrRateLimited, model.ErrTransport or model.ErrEmptyResponse.
func (c *Client) RequestAnalysis(ctx context.Context, content, hint, modelID, credential string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", model.ErrMissingCredential
	}

	body, err := json.Marshal(chatRequest{
		Model: modelID,
		Messages: []chatMessage{
			{Role: "user", Content: Prompt(content, hint)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w: %w", model.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	slog.DebugContext(ctx, "requesting remote analysis", "endpoint", c.endpoint, "model", modelID, "size", len(content))
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %w", model.ErrTransport, err)
	}
	slog.DebugContext(ctx, "remote analysis responded", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", model.ErrEmptyResponse, err)
	}
	if len(parsed.Choices) == 0 {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("%w: %s", model.ErrEmptyResponse, parsed.Error.Message)
		}
		return "", fmt.Errorf("%w: no choices", model.ErrEmptyResponse)
	}
	text := messageContent(parsed.Choices[0].Message.Content)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: message content is empty", model.ErrEmptyResponse)
	}
	return text, nil
}

func statusError(resp *http.Response, body []byte) error {
	kind := model.ErrTransport
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		kind = model.ErrUnauthorized
	case http.StatusTooManyRequests:
		kind = model.ErrRateLimited
	}

	var parsed chatResponse
	msg := ""
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		msg = strings.TrimSpace(parsed.Error.Message)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
	}
	if len(msg) > maxReasonLen {
		msg = msg[:maxReasonLen] + "..."
	}
	return &model.StatusError{
		Code:    resp.StatusCode,
		Message: msg,
		Kind:    kind,
	}
}

// messageContent accepts a plain string or a list of content parts.
func messageContent(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []any:
		var b strings.Builder
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if txt, ok := obj["text"].(string); ok {
				b.WriteString(txt)
				continue
			}
			if txt, ok := obj["content"].(string); ok {
				b.WriteString(txt)
			}
		}
		return b.String()
	default:
		return ""
	}
}

// IsRemoteError reports whether err belongs to the remote failure taxonomy.
func IsRemoteError(err error) bool {
	for _, target := range []error{
		model.ErrMissingCredential,
		model.ErrUnauthorized,
		model.ErrRateLimited,
		model.ErrTransport,
		model.ErrEmptyResponse,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
