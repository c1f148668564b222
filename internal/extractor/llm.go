package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"video-chapters-go/internal/httpx"
	"video-chapters-go/internal/logger"
)

// ErrEmptyCompletion is returned when the gateway answers without content.
var ErrEmptyCompletion = errors.New("llm returned no content")

const systemPrompt = "You are a helpful AI assistant"

// ChatClient talks to an OpenAI-compatible chat completions endpoint.
type ChatClient struct {
	url         string
	apiKey      string
	model       string
	temperature float64
	http        *httpx.Client
	log         *logger.Logger
}

type ChatConfig struct {
	URL         string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

func NewChatClient(cfg ChatConfig, log *logger.Logger) *ChatClient {
	hc := httpx.New("llm", cfg.Timeout)
	hc.MaxElapsedTime = 45 * time.Second
	return &ChatClient{
		url:         cfg.URL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		http:        hc,
		log:         log.Component("extractor.llm"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as the user message and returns the first choice's
// content, trimmed.
func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.url == "" || c.apiKey == "" {
		return "", fmt.Errorf("llm gateway not configured")
	}
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}
	c.log.WithField("payload_len", len(payload)).Debug("sending llm request")

	var parsed chatResponse
	err = c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &parsed)
	if err != nil {
		c.log.WithError(err).Warn("llm request failed")
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
