// Package chat generates assistant replies over a GPT-style chat completions
// API, keeping the full conversation history across turns.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultEndpoint is the OpenAI chat completions endpoint.
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

	// DefaultModel is the generation model requested when config is silent.
	DefaultModel = "gpt-4o"

	// DefaultSystemPrompt seeds every conversation.
	DefaultSystemPrompt = "You are a helpful, friendly AI assistant. Respond concisely and conversationally."

	defaultMaxTokens   = 150
	defaultTemperature = 0.7
	defaultTimeout     = 60 * time.Second
)

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config carries generation client parameters. Zero values pick defaults.
type Config struct {
	Endpoint     string
	Model        string
	APIKey       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
}

// Client posts the accumulated history on every call so the model sees the
// whole conversation. History access is safe for concurrent use.
type Client struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	maxTokens    int
	temperature  float64
	http         *http.Client

	mu      sync.Mutex
	history []Message
}

// GenerateError is a non-2xx or malformed generation response.
type GenerateError struct {
	StatusCode int
	Message    string
}

func (e *GenerateError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("generation failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("generation failed with status %d: %s", e.StatusCode, e.Message)
}

// New builds a generation client with the system prompt as the first turn.
func New(cfg Config) *Client {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	systemPrompt := strings.TrimSpace(cfg.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		endpoint:     endpoint,
		model:        model,
		apiKey:       cfg.APIKey,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
		temperature:  temperature,
		http:         &http.Client{Timeout: timeout},
		history:      []Message{{Role: "system", Content: systemPrompt}},
	}
}

// Generate appends userText as a user turn, posts the full history, and on
// success appends the assistant reply. The user turn stays in history even
// when the call fails, so a retried conversation does not lose what was said.
func (c *Client) Generate(ctx context.Context, userText string) (string, error) {
	c.mu.Lock()
	c.history = append(c.history, Message{Role: "user", Content: userText})
	messages := make([]Message, len(c.history))
	copy(messages, c.history)
	c.mu.Unlock()

	payload, err := json.Marshal(struct {
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		MaxTokens   int       `json:"max_tokens"`
		Temperature float64   `json:"temperature"`
	}{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send generation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read generation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &GenerateError{
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(body),
		}
	}

	var result struct {
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &GenerateError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("malformed response body: %v", err),
		}
	}
	if len(result.Choices) == 0 {
		return "", &GenerateError{
			StatusCode: resp.StatusCode,
			Message:    "response held no choices",
		}
	}

	reply := strings.TrimSpace(result.Choices[0].Message.Content)

	c.mu.Lock()
	c.history = append(c.history, Message{Role: "assistant", Content: reply})
	c.mu.Unlock()

	return reply, nil
}

// History returns a copy of the conversation so far, system turn included.
func (c *Client) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// Reset discards everything except the system turn.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = []Message{{Role: "system", Content: c.systemPrompt}}
}

func apiErrorMessage(payload []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(payload))
}
