package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"pythagorean/internal/models"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var indexID string

var indexCmd = &cobra.Command{
	Use:   "index [file]",
	Short: "Extract, chunk and embed a file",
	Long: `Indexes a PDF, DOCX, XLSX, TXT or MD file. Re-indexing an existing id
replaces its chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexID, "id", "", "document id (random when empty)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if !s.app.Pipeline.Supported(path) {
		return fmt.Errorf("cannot index %s: unsupported file type", filepath.Base(path))
	}
	id := indexID
	if id == "" {
		id = uuid.NewString()[:8]
	}
	res, err := s.app.Pipeline.Run(ctx, id, path)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	s.catalog.Documents[id] = models.Document{
		ID:         id,
		Filename:   filepath.Base(path),
		FileType:   res.FileType,
		ChunkCount: res.Report.ChunksCreated,
		Status:     models.StatusReady,
		Dimension:  res.Report.Dimension,
		Metric:     res.Report.Metric,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.save(); err != nil {
		return err
	}
	cmd.Printf("Indexed %s as %s (%d chunks, %d dimensions)\n",
		filepath.Base(path), id, res.Report.ChunksCreated, res.Report.Dimension)
	return nil
}
