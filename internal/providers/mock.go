package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// MockProvider embeds text as hashed bags of words, so texts that share
// vocabulary score higher than texts that do not. Generation is deterministic.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 384
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", m.dim), Key: "mock"}
	if err := ctx.Err(); err != nil {
		return nil, info, err
	}
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	info.Model = fmt.Sprintf("mock-embed-%d", dim)
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, bagOfWordsVector(input, dim))
	}
	return vectors, info, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	if err := ctx.Err(); err != nil {
		return GenerateResponse{}, info, err
	}
	last := ""
	if len(req.Messages) > 0 {
		last = req.Messages[len(req.Messages)-1].Content
	}
	sources := strings.Count(last, "[Source ")
	text := fmt.Sprintf("Mock answer grounded in %d source(s).", sources)
	if sources > 0 {
		text += " See [Source 1]."
	}
	return GenerateResponse{Text: text}, info, nil
}

func bagOfWordsVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		words = []string{"\x00empty"}
	}
	for _, w := range words {
		h := sha256.Sum256([]byte(w))
		idx := binary.BigEndian.Uint32(h[:4]) % uint32(dim)
		if h[4]&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
