package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicBaseURL      = "https://api.anthropic.com"
	anthropicVersion      = "2023-06-01"
	anthropicDefaultModel = "claude-sonnet-4-20250514"
)

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	keyName string
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type anthropicRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewAnthropicProvider(keyName string) *AnthropicProvider {
	base := envOr("PYTHAGOREAN_ANTHROPIC_BASE_URL", anthropicBaseURL)
	return &AnthropicProvider{
		keyName: keyName,
		apiKey:  resolveKey("ANTHROPIC", keyName, "ANTHROPIC_API_KEY"),
		baseURL: strings.TrimRight(base, "/"),
		model:   envOr("PYTHAGOREAN_ANTHROPIC_MODEL", anthropicDefaultModel),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (a *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "anthropic", Model: a.model, Key: a.keyName}
	if a.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("anthropic key missing for alias %q", a.keyName)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	messages := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role != RoleAssistant {
			m.Role = RoleUser
		}
		messages = append(messages, m)
	}
	payload, err := json.Marshal(anthropicRequest{
		Model:     a.model,
		System:    req.System,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("marshal anthropic request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("create anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var parsed anthropicResponse
	decodeErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode >= 400 {
		if decodeErr == nil && parsed.Error != nil {
			return GenerateResponse{}, info, fmt.Errorf("anthropic error %d: %s: %s", resp.StatusCode, parsed.Error.Type, parsed.Error.Message)
		}
		return GenerateResponse{}, info, fmt.Errorf("anthropic error %d: %s", resp.StatusCode, string(body))
	}
	if decodeErr != nil {
		return GenerateResponse{}, info, fmt.Errorf("decode anthropic response: %w", decodeErr)
	}

	var b strings.Builder
	for _, c := range parsed.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	if b.Len() == 0 {
		return GenerateResponse{}, info, fmt.Errorf("anthropic returned no text content")
	}
	return GenerateResponse{Text: b.String()}, info, nil
}
