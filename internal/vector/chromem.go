package vector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pythagorean/internal/models"
	"pythagorean/internal/util"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const (
	metaDocumentID = "doc_id"
	metaPosition   = "chunk_index"
)

var errNoEmbedder = errors.New("chromem collections only accept precomputed embeddings")

func noEmbed(context.Context, string) ([]float32, error) { return nil, errNoEmbedder }

// ChromemBackend keeps each document in its own chromem collection. A replace
// fills a fresh generation collection and then swaps the live pointer, so
// readers never see a half written namespace.
//
// Generation names look like doc:<id>@<seq>#<chunks>. The chunk count lets a
// persistent store tell finished generations from ones cut short by a crash.
type ChromemBackend struct {
	db  *chromem.DB
	log *zap.Logger
	seq atomic.Int64

	mu   sync.RWMutex
	live map[string]string
}

func NewChromemBackend(log *zap.Logger) *ChromemBackend {
	return newChromemBackend(chromem.NewDB(), log)
}

// OpenChromemBackend loads a persistent store from path, keeping the newest
// complete generation per document and dropping the rest.
func OpenChromemBackend(path string, log *zap.Logger) (*ChromemBackend, error) {
	if err := util.EnsureDir(path); err != nil {
		return nil, err
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem store %s: %w", path, err)
	}
	b := newChromemBackend(db, log)
	b.restore()
	return b, nil
}

func newChromemBackend(db *chromem.DB, log *zap.Logger) *ChromemBackend {
	if log == nil {
		log = zap.NewNop()
	}
	b := &ChromemBackend{db: db, log: log, live: map[string]string{}}
	b.seq.Store(time.Now().UnixNano())
	return b
}

type generation struct {
	documentID string
	seq        int64
	chunks     int
}

func generationName(documentID string, seq int64, chunks int) string {
	return fmt.Sprintf("doc:%s@%d#%d", documentID, seq, chunks)
}

func parseGeneration(name string) (generation, bool) {
	rest, ok := strings.CutPrefix(name, "doc:")
	if !ok {
		return generation{}, false
	}
	at := strings.LastIndex(rest, "@")
	hash := strings.LastIndex(rest, "#")
	if at <= 0 || hash < at {
		return generation{}, false
	}
	seq, err := strconv.ParseInt(rest[at+1:hash], 10, 64)
	if err != nil {
		return generation{}, false
	}
	chunks, err := strconv.Atoi(rest[hash+1:])
	if err != nil {
		return generation{}, false
	}
	return generation{documentID: rest[:at], seq: seq, chunks: chunks}, true
}

func (b *ChromemBackend) restore() {
	best := map[string]generation{}
	var stale []string
	for name, col := range b.db.ListCollections() {
		g, ok := parseGeneration(name)
		if !ok {
			continue
		}
		if col.Count() != g.chunks {
			stale = append(stale, name)
			continue
		}
		cur, seen := best[g.documentID]
		if seen && cur.seq > g.seq {
			stale = append(stale, name)
			continue
		}
		if seen {
			stale = append(stale, generationName(cur.documentID, cur.seq, cur.chunks))
		}
		best[g.documentID] = g
	}
	for id, g := range best {
		b.live[id] = generationName(id, g.seq, g.chunks)
		if g.seq > b.seq.Load() {
			b.seq.Store(g.seq)
		}
	}
	for _, name := range stale {
		if err := b.db.DeleteCollection(name); err != nil {
			b.log.Warn("drop stale index generation", zap.String("collection", name), zap.Error(err))
		}
	}
	b.log.Info("index store loaded", zap.Int("documents", len(best)), zap.Int("dropped_generations", len(stale)))
}

func (b *ChromemBackend) Replace(ctx context.Context, documentID string, chunks []models.Chunk) error {
	name := generationName(documentID, b.seq.Add(1), len(chunks))
	col, err := b.db.CreateCollection(name, map[string]string{"hnsw:space": MetricCosine}, noEmbed)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	if len(chunks) > 0 {
		docs := make([]chromem.Document, len(chunks))
		for i, c := range chunks {
			docs[i] = chromem.Document{
				ID:        strconv.Itoa(c.Position),
				Content:   c.Text,
				Embedding: c.Embedding,
				Metadata: map[string]string{
					metaDocumentID: documentID,
					metaPosition:   strconv.Itoa(c.Position),
				},
			}
		}
		if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			_ = b.db.DeleteCollection(name)
			return fmt.Errorf("add chunks to %s: %w", name, err)
		}
	}

	b.mu.Lock()
	old, had := b.live[documentID]
	b.live[documentID] = name
	b.mu.Unlock()

	if had {
		if err := b.db.DeleteCollection(old); err != nil {
			b.log.Warn("drop replaced index generation", zap.String("collection", old), zap.Error(err))
		}
	}
	return nil
}

func (b *ChromemBackend) collection(documentID string) *chromem.Collection {
	// a concurrent Replace may drop the generation between lookup and open
	for range 2 {
		b.mu.RLock()
		name, ok := b.live[documentID]
		b.mu.RUnlock()
		if !ok {
			return nil
		}
		if col := b.db.GetCollection(name, noEmbed); col != nil {
			return col
		}
	}
	return nil
}

func (b *ChromemBackend) Search(ctx context.Context, documentID string, vec []float32, k int) ([]models.SearchResult, error) {
	col := b.collection(documentID)
	if col == nil {
		return nil, fmt.Errorf("document %s: %w", documentID, util.ErrNotFound)
	}
	n := min(k, col.Count())
	if n <= 0 {
		return []models.SearchResult{}, nil
	}
	hits, err := col.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query document %s: %w", documentID, err)
	}
	out := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		pos, _ := strconv.Atoi(h.Metadata[metaPosition])
		out = append(out, models.SearchResult{
			Text:       h.Content,
			DocumentID: documentID,
			Position:   pos,
			Score:      float64(h.Similarity),
		})
	}
	return out, nil
}

func (b *ChromemBackend) Delete(_ context.Context, documentID string) error {
	b.mu.Lock()
	name, ok := b.live[documentID]
	delete(b.live, documentID)
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("document %s: %w", documentID, util.ErrNotFound)
	}
	if err := b.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	return nil
}

// Documents lists the ids that currently have a live namespace.
func (b *ChromemBackend) Documents() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.live))
	for id := range b.live {
		ids = append(ids, id)
	}
	return ids
}
