package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pythagorean/internal/extract"
	"pythagorean/internal/providers"
	"pythagorean/internal/util"
	"pythagorean/internal/vector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T, opts Options) (*Pipeline, *vector.Engine) {
	t.Helper()
	engine := vector.NewEngine(vector.NewChromemBackend(nil), providers.NewMockProvider(32), vector.Options{}, nil)
	return New(extract.New(), engine, opts, nil), engine
}

func TestRunIndexesTextFile(t *testing.T) {
	p, engine := newPipeline(t, Options{ChunkSize: 120, ChunkOverlap: 20})
	body := strings.Repeat("Rivers carry water from mountains to the sea every single day. ", 8)
	path := filepath.Join(t.TempDir(), "rivers.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	res, err := p.Run(context.Background(), "doc1", path)
	require.NoError(t, err)
	assert.Equal(t, extract.TypeText, res.FileType)
	assert.Greater(t, res.Report.ChunksCreated, 1)
	assert.Equal(t, 32, res.Report.Dimension)

	hits, err := engine.Query(context.Background(), "doc1", "rivers", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestRunUnsupportedType(t *testing.T) {
	p, engine := newPipeline(t, Options{})
	path := filepath.Join(t.TempDir(), "deck.pptx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := p.Run(context.Background(), "doc1", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrUnsupportedType))

	_, err = engine.Query(context.Background(), "doc1", "x", 1)
	assert.True(t, errors.Is(err, util.ErrNotFound))
}

func TestRunShortTextYieldsEmptyIndex(t *testing.T) {
	p, engine := newPipeline(t, Options{})
	path := filepath.Join(t.TempDir(), "tiny.md")
	require.NoError(t, os.WriteFile(path, []byte("too short"), 0o644))

	res, err := p.Run(context.Background(), "tiny", path)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Report.ChunksCreated)

	hits, err := engine.Query(context.Background(), "tiny", "short", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChunkRejectsBadOptions(t *testing.T) {
	p, _ := newPipeline(t, Options{ChunkSize: 10, ChunkOverlap: 10})
	_, err := p.Chunk("anything")
	assert.Equal(t, util.KindInvalidArgument, util.KindOf(err))
}

func TestSupported(t *testing.T) {
	p, _ := newPipeline(t, Options{})
	assert.True(t, p.Supported("notes.MD"))
	assert.True(t, p.Supported("report.pdf"))
	assert.False(t, p.Supported("deck.pptx"))
}
