package providers

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestMockEmbedUnitLengthAndDeterministic(t *testing.T) {
	p := NewMockProvider(64)
	vecs, info, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"Paris is lovely", "Paris is lovely", ""}})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, "mock", info.Name)
	for _, v := range vecs {
		require.Len(t, v, 64)
		assert.InDelta(t, 1.0, math.Sqrt(dot(v, v)), 1e-5)
	}
	assert.Equal(t, vecs[0], vecs[1])
}

func TestMockEmbedRanksSharedVocabulary(t *testing.T) {
	p := NewMockProvider(384)
	vecs, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{
		"What is the capital of France?",
		"Paris is the capital of France. It is known for the Eiffel Tower.",
		"Photosynthesis converts sunlight into chemical energy in plants.",
	}})
	require.NoError(t, err)
	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
}

func TestMockEmbedHonoursRequestDimension(t *testing.T) {
	vecs, _, err := NewMockProvider(384).Embed(context.Background(), EmbedRequest{Inputs: []string{"x"}, Dimension: 16})
	require.NoError(t, err)
	require.Len(t, vecs[0], 16)
}

func TestMockGenerateCountsSources(t *testing.T) {
	resp, _, err := NewMockProvider(0).Generate(context.Background(), GenerateRequest{
		Messages: []Message{{Role: RoleUser, Content: "[Source 1]:\na\n\n[Source 2]:\nb"}},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "2 source(s)")
}

func TestMockHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewMockProvider(8).Embed(ctx, EmbedRequest{Inputs: []string{"x"}})
	require.ErrorIs(t, err, context.Canceled)
}
