package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// hostedClient speaks the hosted inference wire protocol: a single prompt
// string in, an array of generated texts out. Chat turns are flattened into
// one prompt because the endpoint has no role convention.
type hostedClient struct {
	profile Profile
	client  *http.Client
}

type hostedRequest struct {
	Inputs     string           `json:"inputs"`
	Parameters hostedParameters `json:"parameters"`
}

type hostedParameters struct {
	MaxNewTokens   int  `json:"max_new_tokens"`
	ReturnFullText bool `json:"return_full_text"`
}

type hostedGeneration struct {
	GeneratedText string `json:"generated_text"`
}

func (c *hostedClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.profile.Endpoint == "" {
		return "", fmt.Errorf("llm: hosted provider requires an endpoint")
	}

	body, err := json.Marshal(hostedRequest{
		Inputs: flattenMessages(messages),
		Parameters: hostedParameters{
			MaxNewTokens:   512,
			ReturnFullText: false,
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.profile.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.profile.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.profile.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", &ProviderError{Status: resp.StatusCode, Message: string(raw)}
	}

	var parsed []hostedGeneration
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(parsed) == 0 {
		return "", &ProviderError{Status: resp.StatusCode, Message: "response contains no generations"}
	}
	return parsed[0].GeneratedText, nil
}

// flattenMessages joins chat turns into a single prompt for endpoints that
// take raw text instead of role-tagged messages.
func flattenMessages(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}
