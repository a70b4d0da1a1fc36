package provider

import (
	"errors"
	"fmt"
	"time"

	"agenticos/internal/types"
)

const (
	// MaxTokens is the output budget requested from every provider.
	MaxTokens = 6000
	// Temperature is the sampling temperature requested from every provider.
	Temperature = 0.7
	// AnthropicVersion is sent as the anthropic-version header.
	AnthropicVersion = "2023-06-01"
	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 10 * 1024 * 1024
)

var (
	// ErrEmptyCompletion is returned when a 2xx envelope carries no text.
	ErrEmptyCompletion = errors.New("no completion returned")
	// ErrMissingKey is returned when a selection has no API key.
	ErrMissingKey = errors.New("API key not configured")
)

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider types.Provider
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s API request failed with status %d: %s", e.Provider, e.Code, body)
}

// Config holds transport settings shared by all providers.
type Config struct {
	Timeout  time.Duration
	SiteURL  string // sent as HTTP-Referer to OpenRouter
	SiteName string // sent as X-Title to OpenRouter
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:  10 * time.Minute,
		SiteURL:  "http://localhost:3000",
		SiteName: "Agentic OS Prototype",
	}
}

// Completion is the text extracted from a provider envelope.
type Completion struct {
	Text  string
	Usage types.Usage
	Model string // model reported by the provider, if any
}

// ChatMessage is one message in an OpenAI-shaped chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the OpenAI and OpenRouter request body.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// ChatResponse is the OpenAI and OpenRouter response envelope.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// AnthropicMessage is one message in a Messages API request.
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicRequest is the Messages API request body.
// The system prompt travels inside the single user message.
type AnthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []AnthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

// AnthropicResponse is the Messages API response envelope.
type AnthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
