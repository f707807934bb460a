package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pythagorean/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemory(t *testing.T) {
	cfg := config.Load()
	cfg.StoreBackend = config.StoreMemory
	cfg.IndexBackend = config.IndexMemory
	cfg.LLMProviders = "mock"
	cfg.EmbedProviders = "mock"
	cfg.EmbedDim = 32

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.Nil(t, a.DB)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("Glaciers carve valleys over thousands of years. ", 5)), 0o644))
	res, err := a.Pipeline.Run(context.Background(), "d1", path)
	require.NoError(t, err)
	assert.Equal(t, 32, res.Report.Dimension)

	ans, err := a.RAG.Answer(context.Background(), []string{"d1"}, "What carves valleys?", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, ans.Sources)
}

func TestNewChromemPersistent(t *testing.T) {
	cfg := config.Load()
	cfg.StoreBackend = config.StoreMemory
	cfg.IndexBackend = config.IndexChromem
	cfg.ChromemPath = t.TempDir()
	cfg.LLMProviders = "mock"
	cfg.EmbedProviders = "mock"

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	a.Close()
}
