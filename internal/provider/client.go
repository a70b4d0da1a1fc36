// Package provider speaks the three LLM vendor HTTP shapes.
//
// A Client issues exactly one request per call and never retries: fallback
// across models is the orchestrator's job. Every request is bound to the
// caller's context so cancellation aborts the in-flight call.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agenticos/internal/logging"
	"agenticos/internal/types"
)

// Client issues completion requests to whichever provider a selection names.
type Client struct {
	httpClient *http.Client
	siteURL    string
	siteName   string
}

// NewClient creates a client with default config.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client with custom config.
func NewClientWithConfig(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		siteURL:    cfg.SiteURL,
		siteName:   cfg.SiteName,
	}
}

// Complete sends the prompt pair to sel's provider using model and returns the text.
func (c *Client) Complete(ctx context.Context, sel types.ProviderSelection, model string, pair types.PromptPair) (Completion, error) {
	if sel.APIKey == "" {
		return Completion{}, ErrMissingKey
	}
	if model == "" {
		model = sel.Model
	}

	startTime := time.Now()
	logging.APIDebug("[%s] Complete: model=%s system_len=%d user_len=%d", sel.Provider, model, len(pair.System), len(pair.User))

	var (
		comp Completion
		err  error
	)
	switch sel.Provider {
	case types.ProviderAnthropic:
		comp, err = c.completeAnthropic(ctx, sel, model, pair)
	case types.ProviderOpenAI, types.ProviderOpenRouter:
		comp, err = c.completeChat(ctx, sel, model, pair)
	default:
		return Completion{}, fmt.Errorf("unsupported provider %q", sel.Provider)
	}
	if err != nil {
		logging.APIWarn("[%s] Complete: model=%s failed after %v: %v", sel.Provider, model, time.Since(startTime), err)
		return Completion{}, err
	}

	logging.API("[%s] Complete: model=%s completed in %v response_len=%d tokens=%d/%d",
		sel.Provider, model, time.Since(startTime), len(comp.Text), comp.Usage.InputTokens, comp.Usage.OutputTokens)
	return comp, nil
}

func (c *Client) completeChat(ctx context.Context, sel types.ProviderSelection, model string, pair types.PromptPair) (Completion, error) {
	reqBody := ChatRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "system", Content: pair.System},
			{Role: "user", Content: pair.User},
		},
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		Stream:      false,
	}

	headers := map[string]string{}
	if sel.Provider == types.ProviderOpenRouter {
		headers["HTTP-Referer"] = c.siteURL
		headers["X-Title"] = c.siteName
	}

	body, err := c.post(ctx, sel, reqBody, headers)
	if err != nil {
		return Completion{}, err
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return Completion{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResp.Error != nil {
		return Completion{}, fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return Completion{}, ErrEmptyCompletion
	}

	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return Completion{}, ErrEmptyCompletion
	}

	return Completion{
		Text:  text,
		Model: chatResp.Model,
		Usage: types.Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:  chatResp.Usage.TotalTokens,
		},
	}, nil
}

func (c *Client) completeAnthropic(ctx context.Context, sel types.ProviderSelection, model string, pair types.PromptPair) (Completion, error) {
	reqBody := AnthropicRequest{
		Model: model,
		Messages: []AnthropicMessage{
			{Role: "user", Content: pair.System + "\n\n" + pair.User},
		},
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
	}

	headers := map[string]string{
		"x-api-key":         sel.APIKey,
		"anthropic-version": AnthropicVersion,
	}

	body, err := c.post(ctx, sel, reqBody, headers)
	if err != nil {
		return Completion{}, err
	}

	var anthropicResp AnthropicResponse
	if err := json.Unmarshal(body, &anthropicResp); err != nil {
		return Completion{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if anthropicResp.Error != nil {
		return Completion{}, fmt.Errorf("API error: %s", anthropicResp.Error.Message)
	}

	var result strings.Builder
	for _, block := range anthropicResp.Content {
		if block.Type == "text" || block.Type == "" {
			result.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(result.String())
	if text == "" {
		return Completion{}, ErrEmptyCompletion
	}

	in, out := anthropicResp.Usage.InputTokens, anthropicResp.Usage.OutputTokens
	return Completion{
		Text:  text,
		Model: anthropicResp.Model,
		Usage: types.Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}, nil
}

// post marshals payload, sends it to the selection's endpoint and returns the body of a 2xx response.
func (c *Client) post(ctx context.Context, sel types.ProviderSelection, payload any, headers map[string]string) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sel.URL(), bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sel.APIKey)
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Provider: sel.Provider, Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Probe checks connectivity and credentials with GET {base}/models.
func (c *Client) Probe(ctx context.Context, sel types.ProviderSelection) error {
	if sel.APIKey == "" {
		return ErrMissingKey
	}

	url := strings.TrimRight(sel.BaseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+sel.APIKey)
	if sel.Provider == types.ProviderAnthropic {
		req.Header.Set("x-api-key", sel.APIKey)
		req.Header.Set("anthropic-version", AnthropicVersion)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Provider: sel.Provider, Code: resp.StatusCode, Body: string(body)}
	}
	logging.APIDebug("[%s] Probe: %s ok", sel.Provider, url)
	return nil
}
