package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider serves embeddings and chat through the Gemini API. The client
// is created on first use so a missing key only fails the calls that need it.
type GeminiProvider struct {
	keyName    string
	apiKey     string
	chatModel  string
	embedModel string

	once      sync.Once
	client    *genai.Client
	clientErr error
}

func NewGeminiProvider(keyName string) *GeminiProvider {
	return &GeminiProvider{
		keyName:    keyName,
		apiKey:     resolveKey("GEMINI", keyName, "GEMINI_API_KEY"),
		chatModel:  envOr("PYTHAGOREAN_GEMINI_MODEL", "gemini-2.5-flash"),
		embedModel: envOr("PYTHAGOREAN_GEMINI_EMBED_MODEL", "text-embedding-004"),
	}
}

func (g *GeminiProvider) genaiClient(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		if g.apiKey == "" {
			g.clientErr = fmt.Errorf("gemini key missing for alias %q", g.keyName)
			return
		}
		g.client, g.clientErr = genai.NewClient(context.WithoutCancel(ctx), option.WithAPIKey(g.apiKey))
	})
	return g.client, g.clientErr
}

func (g *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.embedModel, Key: g.keyName}
	client, err := g.genaiClient(ctx)
	if err != nil {
		return nil, info, err
	}
	em := client.EmbeddingModel(g.embedModel)
	batch := em.NewBatch()
	for _, in := range req.Inputs {
		batch.AddContent(genai.Text(in))
	}
	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, info, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if len(resp.Embeddings) != len(req.Inputs) {
		return nil, info, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(req.Inputs))
	}
	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if e == nil {
			return nil, info, fmt.Errorf("gemini returned an empty embedding")
		}
		vec := make([]float32, len(e.Values))
		for i, v := range e.Values {
			vec[i] = float32(v)
		}
		out = append(out, matchDimension(vec, req.Dimension))
	}
	return out, info, nil
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.chatModel, Key: g.keyName}
	if len(req.Messages) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("no messages to send")
	}
	client, err := g.genaiClient(ctx)
	if err != nil {
		return GenerateResponse{}, info, err
	}
	model := client.GenerativeModel(g.chatModel)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	cs := model.StartChat()
	last := req.Messages[len(req.Messages)-1]
	for _, m := range req.Messages[:len(req.Messages)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("gemini generate: %w", err)
	}
	var parts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				parts = append(parts, string(text))
			}
		}
	}
	if len(parts) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("gemini returned no text content")
	}
	return GenerateResponse{Text: strings.Join(parts, "")}, info, nil
}

// Close releases the underlying client, if one was created.
func (g *GeminiProvider) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
