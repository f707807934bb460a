package providers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqProvider supports LLM generation via Groq's OpenAI-compatible API.
type GroqProvider struct {
	keyName string
	apiKey  string
	model   string
	client  *openai.Client
}

func NewGroqProvider(keyName string) *GroqProvider {
	apiKey := resolveKey("GROQ", keyName, "GROQ_API_KEY")
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	if base := strings.TrimSpace(os.Getenv("PYTHAGOREAN_GROQ_BASE_URL")); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	return &GroqProvider{
		keyName: keyName,
		apiKey:  apiKey,
		model:   envOr("PYTHAGOREAN_GROQ_MODEL", "llama-3.1-8b-instant"),
		client:  openai.NewClientWithConfig(cfg),
	}
}

func (g *GroqProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "groq", Key: g.keyName, Model: g.model}
	if g.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("groq key missing for alias %q", g.keyName)
	}
	text, err := chatCompletion(ctx, g.client, g.model, req)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("groq generate: %w", err)
	}
	return GenerateResponse{Text: text}, info, nil
}
