package util

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextShortTextSingleChunk(t *testing.T) {
	text := "Paris is the capital of France. It is known for the Eiffel Tower."
	chunks, err := ChunkText(text, DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	require.Equal(t, []string{text}, chunks)
}

func TestChunkTextEmpty(t *testing.T) {
	chunks, err := ChunkText("", 100, 10)
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestChunkTextDropsTinyFragments(t *testing.T) {
	chunks, err := ChunkText("   short fragment   ", 100, 10)
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestChunkTextInvalidParams(t *testing.T) {
	cases := []struct{ size, overlap int }{
		{0, 0},
		{-5, 0},
		{100, -1},
		{100, 100},
		{100, 150},
	}
	for _, c := range cases {
		_, err := ChunkText("anything", c.size, c.overlap)
		require.Error(t, err, "size=%d overlap=%d", c.size, c.overlap)
		assert.Equal(t, KindInvalidArgument, KindOf(err))
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	}
}

func TestChunkTextPrefersSentenceBreak(t *testing.T) {
	first := strings.Repeat("a", 70) + "."
	second := strings.Repeat("b", 80)
	chunks, err := ChunkText(first+second, 100, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, first, chunks[0])
	assert.Equal(t, second, chunks[1])
}

func TestChunkTextIgnoresEarlyBreak(t *testing.T) {
	text := strings.Repeat("a", 20) + "." + strings.Repeat("c", 200)
	chunks, err := ChunkText(text, 100, 0)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Len(t, []rune(chunks[0]), 100)
}

func TestChunkTextOverlapCoversText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("Sentence number ")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(" carries some words.\n")
	}
	text := b.String()
	chunks, err := ChunkText(text, 300, 60)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 3)

	offset := 0
	for _, c := range chunks {
		assert.Greater(t, len([]rune(c)), MinChunkLength)
		idx := strings.Index(text[offset:], c)
		require.GreaterOrEqual(t, idx, 0, "chunk not found in order: %q", c)
		offset += idx + 1
	}
	assert.True(t, strings.HasSuffix(strings.TrimSpace(text), chunks[len(chunks)-1]))
}

func TestChunkTextTerminatesWithLargeOverlap(t *testing.T) {
	text := strings.Repeat("word. ", 400)
	chunks, err := ChunkText(text, 120, 119)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
}

func TestChunkTextDeterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 80)
	a, err := ChunkText(text, 250, 50)
	require.NoError(t, err)
	b, err := ChunkText(text, 250, 50)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestChunkTextCountsRunes(t *testing.T) {
	text := strings.Repeat("é", 120)
	chunks, err := ChunkText(text, 100, 0)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Len(t, []rune(chunks[0]), 100)
}
