// Package ai generates caption drafts through an OpenAI-compatible chat
// completion endpoint. It is an editing aid only and never sits on the
// publish path.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const systemPrompt = "You write short social media captions. Reply with the caption text only, no quotes and no commentary."

// Config holds the caption generator settings.
type Config struct {
	APIURL string // base URL, defaults to https://api.openai.com/v1
	APIKey string
	Model  string
}

// Captioner calls a chat completion endpoint to draft captions.
type Captioner struct {
	client *http.Client
	apiKey string
	apiURL string
	model  string
}

// NewCaptioner creates a Captioner.
func NewCaptioner(cfg Config) *Captioner {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	return &Captioner{
		client: &http.Client{Timeout: 30 * time.Second},
		apiKey: cfg.APIKey,
		apiURL: apiURL,
		model:  cfg.Model,
	}
}

// GenerateCaption drafts a caption from the user's prompt.
func (c *Captioner) GenerateCaption(ctx context.Context, prompt string) (string, error) {
	if c.model == "" {
		return "", errors.New("caption model is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt is required")
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens: 200,
	})
	if err != nil {
		return "", fmt.Errorf("captioner: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("captioner: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("captioner: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("captioner: read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("captioner: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("captioner: parse response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("captioner: empty completion")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}
