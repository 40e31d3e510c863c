package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/treggify/mindweaver/internal/apperr"
)

const defaultOllamaEndpoint = "http://localhost:11434"

// binaryInstruction is prepended to every local-inference prompt. The local
// servers do not follow the chat role convention cleanly, so the adapters ask
// for a bare token and extract it from whatever comes back.
const binaryInstruction = "Respond with only 'true' or 'false'."

// ollamaClient speaks the generate wire protocol of a local Ollama server.
// It only supports binary judgments: the raw response is scanned for a
// true/false token, and anything without one is ambiguous.
type ollamaClient struct {
	profile Profile
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (c *ollamaClient) Complete(ctx context.Context, messages []Message) (string, error) {
	endpoint := c.profile.Endpoint
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}

	body, err := json.Marshal(ollamaRequest{
		Model:  c.profile.Model,
		Prompt: binaryInstruction + "\n\n" + flattenMessages(messages),
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", &ProviderError{Status: resp.StatusCode, Message: string(raw)}
	}

	var parsed ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	return extractBinaryToken(parsed.Response)
}

// localClient speaks the completions wire protocol of a generic local
// inference server (LM Studio, llama.cpp server). Binary-only, same as the
// Ollama adapter.
type localClient struct {
	profile Profile
	client  *http.Client
}

type localRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type localResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

func (c *localClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.profile.Endpoint == "" {
		return "", fmt.Errorf("llm: local provider requires an endpoint")
	}

	body, err := json.Marshal(localRequest{
		Model:     c.profile.Model,
		Prompt:    binaryInstruction + "\n\n" + flattenMessages(messages),
		MaxTokens: 16,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.profile.Endpoint+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", &ProviderError{Status: resp.StatusCode, Message: string(raw)}
	}

	var parsed localResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Status: resp.StatusCode, Message: "response contains no choices"}
	}
	return extractBinaryToken(parsed.Choices[0].Text)
}

// extractBinaryToken scans raw text for "true" or "false"; whichever occurs
// first wins. Text containing neither token is ambiguous.
func extractBinaryToken(raw string) (string, error) {
	lower := strings.ToLower(raw)
	ti := strings.Index(lower, "true")
	fi := strings.Index(lower, "false")
	switch {
	case ti >= 0 && (fi < 0 || ti < fi):
		return "true", nil
	case fi >= 0:
		return "false", nil
	}
	return "", fmt.Errorf("llm: %w: %q", apperr.ErrAmbiguousResponse, raw)
}
