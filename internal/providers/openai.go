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

// OpenAIProvider serves embeddings and chat completions through the OpenAI API.
type OpenAIProvider struct {
	keyName    string
	apiKey     string
	chatModel  string
	embedModel openai.EmbeddingModel
	client     *openai.Client
}

func NewOpenAIProvider(keyName string) *OpenAIProvider {
	apiKey := resolveKey("OPENAI", keyName, "OPENAI_API_KEY")
	cfg := openai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(os.Getenv("PYTHAGOREAN_OPENAI_BASE_URL")); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	return &OpenAIProvider{
		keyName:    keyName,
		apiKey:     apiKey,
		chatModel:  envOr("PYTHAGOREAN_OPENAI_MODEL", openai.GPT4oMini),
		embedModel: openai.EmbeddingModel(envOr("PYTHAGOREAN_OPENAI_EMBED_MODEL", string(openai.SmallEmbedding3))),
		client:     openai.NewClientWithConfig(cfg),
	}
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: string(o.embedModel), Key: o.keyName}
	if o.apiKey == "" {
		return nil, info, fmt.Errorf("openai key missing for alias %q", o.keyName)
	}
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      req.Inputs,
		Model:      o.embedModel,
		Dimensions: req.Dimension,
	})
	if err != nil {
		return nil, info, fmt.Errorf("openai embedding request failed: %w", err)
	}
	if len(resp.Data) != len(req.Inputs) {
		return nil, info, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(req.Inputs))
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, info, fmt.Errorf("openai embedding index %d out of range", d.Index)
		}
		out[d.Index] = matchDimension(d.Embedding, req.Dimension)
	}
	return out, info, nil
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: o.chatModel, Key: o.keyName}
	if o.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("openai key missing for alias %q", o.keyName)
	}
	text, err := chatCompletion(ctx, o.client, o.chatModel, req)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("openai generate: %w", err)
	}
	return GenerateResponse{Text: text}, info, nil
}

// chatCompletion runs req against any OpenAI-compatible chat endpoint.
func chatCompletion(ctx context.Context, client *openai.Client, model string, req GenerateRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// resolveKey looks up PYTHAGOREAN_<VENDOR>_KEY_<ALIAS> before the vendor's
// conventional variable.
func resolveKey(vendor, alias, fallbackEnv string) string {
	if alias != "" {
		if v := os.Getenv("PYTHAGOREAN_" + vendor + "_KEY_" + sanitizeEnvToken(alias)); v != "" {
			return v
		}
	}
	return os.Getenv(fallbackEnv)
}

func envOr(k, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return fallback
}
