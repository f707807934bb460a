package providers

import (
	"context"
	"fmt"
	"strings"

	"pythagorean/internal/config"
	"pythagorean/internal/util"

	"go.uber.org/zap"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// Manager fronts the configured providers and fails over between them in
// preference order, real providers before mock. It satisfies both
// LLMProvider and EmbeddingProvider.
type Manager struct {
	llmProviders   []NamedLLMProvider
	embedProviders []NamedEmbedProvider
	log            *zap.Logger
}

var (
	_ LLMProvider       = (*Manager)(nil)
	_ EmbeddingProvider = (*Manager)(nil)
)

func NewManager(cfg config.Config, log *zap.Logger) (*Manager, error) {
	var llms []NamedLLMProvider
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support llm", ref.Raw)
		}
		llms = append(llms, NamedLLMProvider{Ref: ref, Provider: llm})
	}
	var embeds []NamedEmbedProvider
	for _, ref := range ParseProviderList(cfg.EmbedProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Raw)
		}
		embeds = append(embeds, NamedEmbedProvider{Ref: ref, Provider: embed})
	}
	return NewManagerWith(llms, embeds, cfg.EmbedDim, log), nil
}

// NewManagerWith builds a Manager from already constructed providers. Empty
// lists fall back to the mock provider.
func NewManagerWith(llms []NamedLLMProvider, embeds []NamedEmbedProvider, dim int, log *zap.Logger) *Manager {
	if len(llms) == 0 {
		llms = []NamedLLMProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(dim)}}
	}
	if len(embeds) == 0 {
		embeds = []NamedEmbedProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(dim)}}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{llmProviders: llms, embedProviders: embeds, log: log}
}

func (m *Manager) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	var (
		info ProviderInfo
		err  error
	)
	for _, idx := range m.PreferredEmbedOrder() {
		np := m.embedProviders[idx]
		var vecs [][]float32
		vecs, info, err = np.Provider.Embed(ctx, req)
		if err == nil && len(vecs) == len(req.Inputs) {
			return vecs, info, nil
		}
		if err == nil {
			err = fmt.Errorf("provider returned %d vectors for %d inputs", len(vecs), len(req.Inputs))
		}
		m.log.Warn("embedding provider failed",
			zap.String("provider", np.Ref.Raw),
			zap.String("operation", req.Operation),
			zap.String("error_type", string(ClassifyError(err))),
			zap.Error(err))
		if !ShouldFailover(err) {
			break
		}
	}
	return nil, info, util.Wrap(util.KindUpstream, "embed", err)
}

func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	var (
		resp GenerateResponse
		info ProviderInfo
		err  error
	)
	for _, idx := range m.PreferredLLMOrder() {
		np := m.llmProviders[idx]
		resp, info, err = np.Provider.Generate(ctx, req)
		if err == nil && strings.TrimSpace(resp.Text) != "" {
			return resp, info, nil
		}
		if err == nil {
			m.log.Warn("llm provider returned empty text", zap.String("provider", np.Ref.Raw), zap.String("operation", req.Operation))
			continue
		}
		m.log.Warn("llm provider failed",
			zap.String("provider", np.Ref.Raw),
			zap.String("operation", req.Operation),
			zap.String("error_type", string(ClassifyError(err))),
			zap.Error(err))
		if !ShouldFailover(err) {
			break
		}
	}
	if err != nil {
		return GenerateResponse{}, info, util.Wrap(util.KindUpstream, "generate", err)
	}
	return resp, info, nil
}

// Names lists the configured llm and embedding providers, for startup logs.
func (m *Manager) Names() (llm, embed []string) {
	for _, p := range m.llmProviders {
		llm = append(llm, p.Ref.Raw)
	}
	for _, p := range m.embedProviders {
		embed = append(embed, p.Ref.Raw)
	}
	return llm, embed
}

func (m *Manager) PreferredLLMOrder() []int {
	return preferredOrder(len(m.llmProviders), func(i int) string { return m.llmProviders[i].Ref.Name })
}

func (m *Manager) PreferredEmbedOrder() []int {
	return preferredOrder(len(m.embedProviders), func(i int) string { return m.embedProviders[i].Ref.Name })
}

func preferredOrder(n int, nameAt func(i int) string) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if nameAt(i) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func buildProvider(ref ProviderRef, dim int) (any, error) {
	switch ref.Name {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias), nil
	case "anthropic":
		return NewAnthropicProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaProvider(ref.KeyAlias), nil
	case "gemini":
		return NewGeminiProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
