// Package whisper posts captured segments to a Whisper-style transcription API.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/parley/internal/audio"
)

const (
	// DefaultEndpoint is the OpenAI audio transcription endpoint.
	DefaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"

	// DefaultModel is the transcription model requested when config is silent.
	DefaultModel = "whisper-1"

	defaultTimeout = 30 * time.Second
)

// Config carries transcription client parameters.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// Client is a Whisper-style HTTP transcription client.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
}

// TranscribeError is a non-2xx or malformed transcription response.
type TranscribeError struct {
	StatusCode int
	Message    string
}

func (e *TranscribeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("transcription failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("transcription failed with status %d: %s", e.StatusCode, e.Message)
}

// New builds a transcription client, applying endpoint/model/timeout defaults.
func New(cfg Config) *Client {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		model:    model,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Transcribe posts one WAV segment as multipart form data and returns the
// recognized text. Empty text is a valid result and means the segment held
// no recognizable speech.
func (c *Client) Transcribe(ctx context.Context, segment audio.Segment) (string, error) {
	if len(segment.WAV) == 0 {
		return "", audio.ErrEmptyAudio
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fmt.Sprintf("segment-%d.wav", segment.Seq))
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(segment.WAV); err != nil {
		return "", fmt.Errorf("write segment payload: %w", err)
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send transcription request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TranscribeError{
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(payload),
		}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", &TranscribeError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("malformed response body: %v", err),
		}
	}
	return strings.TrimSpace(result.Text), nil
}

// apiErrorMessage pulls the provider message out of an OpenAI-style error
// envelope, falling back to the raw body.
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
