// Package cli implements ragctl, a local front end to the index that needs
// neither the HTTP server nor a worker.
package cli

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"pythagorean/internal/app"
	"pythagorean/internal/config"
	"pythagorean/internal/logger"
	"pythagorean/internal/models"
	"pythagorean/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	indexDir string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Index documents and ask questions about them",
	Long: `ragctl keeps a persistent vector index on disk. Index files with
"ragctl index", then search or ask questions against one or more of them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&indexDir, "index-dir", defaultIndexDir(), "directory holding the index and catalog")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log component activity to stderr")
}

func defaultIndexDir() string {
	return config.Load().ChromemPath
}

func Execute() error {
	return rootCmd.Execute()
}

// Run executes the command line and returns the process exit code.
func Run() int {
	return exitCode(Execute())
}

// catalog records what was indexed, next to the vectors.
type catalog struct {
	Documents map[string]models.Document `json:"documents"`
}

type session struct {
	app         *app.App
	catalogPath string
	catalog     catalog
}

func openSession(ctx context.Context) (*session, error) {
	cfg := config.Load()
	cfg.StoreBackend = config.StoreMemory
	cfg.IndexBackend = config.IndexChromem
	cfg.ChromemPath = filepath.Join(indexDir, "vectors")
	cfg.IngestMode = config.IngestInline
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lg := zap.NewNop()
	if verbose {
		l, err := logger.New("debug", "console")
		if err != nil {
			return nil, err
		}
		lg = l
	}
	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return nil, err
	}
	s := &session{app: a, catalogPath: filepath.Join(indexDir, "catalog.json")}
	if _, err := util.ReadJSON(s.catalogPath, &s.catalog); err != nil {
		a.Close()
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if s.catalog.Documents == nil {
		s.catalog.Documents = map[string]models.Document{}
	}
	return s, nil
}

func (s *session) save() error {
	return util.WriteJSONAtomic(s.catalogPath, s.catalog)
}

func (s *session) close() { s.app.Close() }

func (s *session) lookup(id string) (models.Document, error) {
	doc, ok := s.catalog.Documents[id]
	if !ok {
		return models.Document{}, fmt.Errorf("document %s is not indexed: %w", id, util.ErrNotFound)
	}
	return doc, nil
}

// sortedDocuments lists the catalog oldest first.
func (s *session) sortedDocuments() []models.Document {
	docs := make([]models.Document, 0, len(s.catalog.Documents))
	for _, d := range s.catalog.Documents {
		docs = append(docs, d)
	}
	slices.SortFunc(docs, func(a, b models.Document) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return docs
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "ragctl:", err)
	return 1
}
